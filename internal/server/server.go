package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/invoicedesk/internal/audit/domain"
	authaction "github.com/smallbiznis/invoicedesk/internal/auth/action"
	authdomain "github.com/smallbiznis/invoicedesk/internal/auth/domain"
	"github.com/smallbiznis/invoicedesk/internal/auth/session"
	"github.com/smallbiznis/invoicedesk/internal/authorization"
	"github.com/smallbiznis/invoicedesk/internal/config"
	customerdomain "github.com/smallbiznis/invoicedesk/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/observability"
	obslogger "github.com/smallbiznis/invoicedesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicedesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/invoicedesk/internal/observability/tracing"
	"github.com/smallbiznis/invoicedesk/internal/providers/pdf"
	"github.com/smallbiznis/invoicedesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	dashboard    *config.DashboardHolder
	log          *zap.Logger
	authsvc      authdomain.Service
	loginHandler *authaction.Handler
	sessions     *session.Manager
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	invoiceSvc   invoicedomain.Service
	customerSvc  customerdomain.Service
	pdfProvider  pdf.Provider
	loginLimiter *ratelimit.LoginLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Dashboard    *config.DashboardHolder
	Log          *zap.Logger
	Authsvc      authdomain.Service
	LoginHandler *authaction.Handler
	Sessions     *session.Manager
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service `optional:"true"`
	InvoiceSvc   invoicedomain.Service
	CustomerSvc  customerdomain.Service
	PDFProvider  pdf.Provider
	LoginLimiter *ratelimit.LoginLimiter
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		dashboard:    p.Dashboard,
		log:          p.Log.Named("http.server"),
		authsvc:      p.Authsvc,
		loginHandler: p.LoginHandler,
		sessions:     p.Sessions,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		invoiceSvc:   p.InvoiceSvc,
		customerSvc:  p.CustomerSvc,
		pdfProvider:  p.PDFProvider,
		loginLimiter: p.LoginLimiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerDashboardRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	s.engine.POST("/login", s.LoginRateLimit(), s.Login)
	s.engine.POST("/logout", s.Logout)
	s.engine.GET("/me", s.WebAuthRequired(), s.Me)
}

// The listing path comes from the dashboard config at startup; changing it
// requires a restart, unlike the page size and cache TTL.
func (s *Server) registerDashboardRoutes() {
	dashboard := s.engine.Group("/dashboard", s.WebAuthRequired())

	invoicesPath := s.dashboard.Get().Invoices.ListPath
	invoices := s.engine.Group(invoicesPath, s.WebAuthRequired())
	{
		view := s.authorize(authorization.ObjectInvoice, authorization.ActionView)
		write := s.authorize(authorization.ObjectInvoice, authorization.ActionWrite)

		invoices.GET("", view, s.ListInvoices)
		invoices.POST("", write, s.CreateInvoice)
		invoices.POST("/strict", write, s.CreateInvoiceStrict)
		invoices.GET("/:id", view, s.GetInvoiceByID)
		invoices.POST("/:id/edit", write, s.UpdateInvoice)
		invoices.POST("/:id/edit/strict", write, s.UpdateInvoiceStrict)
		invoices.DELETE("/:id", write, s.DeleteInvoice)
		invoices.GET("/:id/pdf", view, s.RenderInvoicePDF)
	}

	dashboard.GET("/customers", s.authorize(authorization.ObjectCustomer, authorization.ActionView), s.ListCustomers)
	dashboard.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}

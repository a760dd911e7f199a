package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedesk/internal/cache"
	"github.com/smallbiznis/invoicedesk/internal/clock"
	"github.com/smallbiznis/invoicedesk/internal/config"
	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/invoice/form"
	"github.com/smallbiznis/invoicedesk/internal/observability/metrics"
	"github.com/smallbiznis/invoicedesk/pkg/db"
	"github.com/smallbiznis/invoicedesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"

	modeTolerant = "tolerant"
	modeStrict   = "strict"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Clock       clock.Clock
	Dashboard   *config.DashboardHolder
	Views       *cache.ViewCache
	Revalidator cache.Revalidator
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	clock       clock.Clock
	dashboard   *config.DashboardHolder
	views       *cache.ViewCache
	revalidator cache.Revalidator
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		clock:       p.Clock,
		dashboard:   p.Dashboard,
		views:       p.Views,
		revalidator: p.Revalidator,
		metrics:     p.Metrics,
	}
}

func (s *Service) CreateInvoice(ctx context.Context, prev domain.FormState, values map[string]string) (domain.Result, error) {
	s.logResubmission(opCreate, prev)

	input, verr := form.Parse(values)
	if verr != nil {
		return s.reject(ctx, opCreate, modeTolerant, verr.WithMessage(domain.MsgCreateRejected)), nil
	}
	return s.create(ctx, modeTolerant, input), nil
}

func (s *Service) CreateInvoiceStrict(ctx context.Context, values map[string]string) (domain.Result, error) {
	input, verr := form.Parse(values)
	if verr != nil {
		s.reject(ctx, opCreate, modeStrict, verr)
		return domain.Result{Phase: domain.PhaseRejected}, verr.WithMessage(domain.MsgCreateRejected)
	}
	return s.create(ctx, modeStrict, input), nil
}

func (s *Service) UpdateInvoice(ctx context.Context, id string, prev domain.FormState, values map[string]string) (domain.Result, error) {
	id, err := parseID(id)
	if err != nil {
		return domain.Result{}, err
	}
	s.logResubmission(opUpdate, prev)

	input, verr := form.Parse(values)
	if verr != nil {
		return s.reject(ctx, opUpdate, modeTolerant, verr.WithMessage(domain.MsgUpdateRejected)), nil
	}
	return s.update(ctx, modeTolerant, id, input), nil
}

func (s *Service) UpdateInvoiceStrict(ctx context.Context, id string, values map[string]string) (domain.Result, error) {
	id, err := parseID(id)
	if err != nil {
		return domain.Result{}, err
	}

	input, verr := form.Parse(values)
	if verr != nil {
		s.reject(ctx, opUpdate, modeStrict, verr)
		return domain.Result{Phase: domain.PhaseRejected}, verr.WithMessage(domain.MsgUpdateRejected)
	}
	return s.update(ctx, modeStrict, id, input), nil
}

// DeleteInvoice never redirects; the listing it was triggered from is
// refreshed in place.
func (s *Service) DeleteInvoice(ctx context.Context, id string) (domain.Result, error) {
	id, err := parseID(id)
	if err != nil {
		return domain.Result{}, err
	}

	if s.dashboard.Get().Invoices.FailDeletes {
		s.log.Warn("invoice deletes are disabled", zap.String("invoice_id", id))
		s.metrics.RecordInvoiceMutation(ctx, opDelete, modeTolerant, domain.PhaseFailed.String())
		return domain.Result{}, domain.ErrDeleteDisabled
	}

	if err := s.repo.Delete(ctx, s.db, id); err != nil {
		return s.fail(ctx, opDelete, modeTolerant, &domain.StoreError{Op: opDelete, Err: err}, domain.MsgDeleteFailed), nil
	}

	s.invalidate(ctx)
	s.record(ctx, opDelete, modeTolerant, domain.PhaseInvalidated)
	return domain.Result{Phase: domain.PhaseInvalidated, Message: domain.MsgDeleted}, nil
}

func (s *Service) create(ctx context.Context, mode string, input form.InvoiceInput) domain.Result {
	invoice := domain.Invoice{
		ID:         s.genID.Generate().String(),
		CustomerID: input.CustomerID,
		Amount:     input.MinorUnits(),
		Status:     input.Status,
		Date:       datatypes.Date(today(s.clock.Now())),
	}

	if err := s.repo.Insert(ctx, s.db, &invoice); err != nil {
		return s.fail(ctx, opCreate, mode, &domain.StoreError{Op: opCreate, Err: err}, domain.MsgCreateFailed)
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID),
		zap.String("mode", mode),
	)
	return s.redirect(ctx, opCreate, mode)
}

func (s *Service) update(ctx context.Context, mode, id string, input form.InvoiceInput) domain.Result {
	invoice := domain.Invoice{
		ID:         id,
		CustomerID: input.CustomerID,
		Amount:     input.MinorUnits(),
		Status:     input.Status,
	}

	if err := s.repo.Update(ctx, s.db, &invoice); err != nil {
		return s.fail(ctx, opUpdate, mode, &domain.StoreError{Op: opUpdate, Err: err}, domain.MsgUpdateFailed)
	}

	s.log.Info("invoice updated",
		zap.String("invoice_id", id),
		zap.String("mode", mode),
	)
	return s.redirect(ctx, opUpdate, mode)
}

func (s *Service) redirect(ctx context.Context, op, mode string) domain.Result {
	path := s.invalidate(ctx)
	s.record(ctx, op, mode, domain.PhaseRedirected)
	return domain.Result{Phase: domain.PhaseRedirected, Redirect: path}
}

func (s *Service) invalidate(ctx context.Context) string {
	path := s.dashboard.Get().Invoices.ListPath
	s.revalidator.Revalidate(ctx, path)
	return path
}

func (s *Service) reject(ctx context.Context, op, mode string, verr *form.ValidationError) domain.Result {
	s.log.Debug("invoice form rejected",
		zap.String("operation", op),
		zap.String("mode", mode),
		zap.Int("invalid_fields", len(verr.Fields)),
	)
	s.record(ctx, op, mode, domain.PhaseRejected)
	return domain.Result{
		Phase:   domain.PhaseRejected,
		Message: verr.Message,
		Errors:  verr.Fields,
	}
}

func (s *Service) fail(ctx context.Context, op, mode string, err *domain.StoreError, message string) domain.Result {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("mode", mode),
		zap.Error(err),
	}
	if db.IsForeignKeyErr(err) {
		fields = append(fields, zap.String("reason", "unknown_customer"))
	}
	s.log.Error("invoice store failed", fields...)
	s.record(ctx, op, mode, domain.PhaseFailed)
	return domain.Result{Phase: domain.PhaseFailed, Message: message}
}

func (s *Service) record(ctx context.Context, op, mode string, phase domain.Phase) {
	s.metrics.RecordInvoiceMutation(ctx, op, mode, phase.String())
}

func (s *Service) logResubmission(op string, prev domain.FormState) {
	if len(prev.Errors) == 0 && prev.Message == "" {
		return
	}
	s.log.Debug("invoice form resubmitted",
		zap.String("operation", op),
		zap.Int("previous_errors", len(prev.Errors)),
	)
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	cfg := s.dashboard.Get()
	page := req.Pagination.Normalize(cfg.Invoices.PageSize)
	query := strings.TrimSpace(req.Query)

	key := cache.ViewKey(cfg.Invoices.ListPath, url.Values{
		"page":      {strconv.Itoa(page.Page)},
		"page_size": {strconv.Itoa(page.PageSize)},
		"query":     {query},
	})
	if cached, ok := s.views.Get(key); ok {
		if resp, ok := cached.(domain.ListInvoiceResponse); ok {
			return resp, nil
		}
	}

	gen := s.views.Generation()
	filter := domain.ListInvoiceFilter{Query: query}
	total, err := s.repo.Count(ctx, s.db, filter)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	invoices := make([]domain.InvoiceRow, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := domain.ListInvoiceResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Invoices: invoices,
	}
	s.views.SetIfGeneration(key, resp, cfg.Cache.TTL, gen)
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.InvoiceRow, error) {
	id, err := parseID(id)
	if err != nil {
		return domain.InvoiceRow{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.InvoiceRow{}, err
	}
	if item == nil {
		return domain.InvoiceRow{}, domain.ErrNotFound
	}
	return *item, nil
}

func parseID(value string) (string, error) {
	id := strings.TrimSpace(value)
	if id == "" {
		return "", domain.ErrInvalidID
	}
	return id, nil
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

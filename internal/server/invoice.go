package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/providers/pdf"
	"github.com/smallbiznis/invoicedesk/pkg/db/pagination"
)

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Query string `form:"query"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Query:      strings.TrimSpace(query.Query),
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Invoices,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) CreateInvoice(c *gin.Context) {
	values, err := formValues(c)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.invoiceSvc.CreateInvoice(c.Request.Context(), previousState(c), values)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditMutation(c, "invoice.create", "", modeTolerant, res)
	respondResult(c, res)
}

func (s *Server) CreateInvoiceStrict(c *gin.Context) {
	values, err := formValues(c)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.invoiceSvc.CreateInvoiceStrict(c.Request.Context(), values)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditMutation(c, "invoice.create", "", modeStrict, res)
	respondResult(c, res)
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	values, err := formValues(c)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.invoiceSvc.UpdateInvoice(c.Request.Context(), c.Param("id"), previousState(c), values)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditMutation(c, "invoice.update", c.Param("id"), modeTolerant, res)
	respondResult(c, res)
}

func (s *Server) UpdateInvoiceStrict(c *gin.Context) {
	values, err := formValues(c)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.invoiceSvc.UpdateInvoiceStrict(c.Request.Context(), c.Param("id"), values)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditMutation(c, "invoice.update", c.Param("id"), modeStrict, res)
	respondResult(c, res)
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	res, err := s.invoiceSvc.DeleteInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditMutation(c, "invoice.delete", c.Param("id"), modeTolerant, res)
	respondResult(c, res)
}

func (s *Server) RenderInvoicePDF(c *gin.Context) {
	ctx := c.Request.Context()
	invoice, err := s.invoiceSvc.GetByID(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	receipt, err := pdf.ReceiptFromInvoice(invoice)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	doc, err := s.pdfProvider.GenerateReceipt(ctx, receipt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+receipt.Number+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

const (
	modeTolerant = "tolerant"
	modeStrict   = "strict"
)

// auditMutation records mutations that reached the store.
func (s *Server) auditMutation(c *gin.Context, action, invoiceID, mode string, res invoicedomain.Result) {
	switch res.Phase {
	case invoicedomain.PhaseRedirected, invoicedomain.PhaseInvalidated:
	default:
		return
	}
	s.recordAudit(c, action, "invoice", invoiceID, map[string]any{"mode": mode})
}

// respondResult turns a mutation result into navigation: a committed
// mutation redirects, everything else re-renders the form state.
func respondResult(c *gin.Context, res invoicedomain.Result) {
	if res.Redirect != "" {
		c.Redirect(http.StatusSeeOther, res.Redirect)
		return
	}

	status := http.StatusOK
	switch res.Phase {
	case invoicedomain.PhaseRejected:
		status = http.StatusUnprocessableEntity
	case invoicedomain.PhaseFailed:
		status = http.StatusInternalServerError
	}
	c.JSON(status, res.State())
}

package domain

import (
	"context"

	"github.com/smallbiznis/invoicedesk/pkg/db/pagination"
)

const (
	MsgCreateRejected = "Missing Fields. Failed to Create Invoice."
	MsgUpdateRejected = "Missing Fields. Failed to Update Invoice."
	MsgCreateFailed   = "Database Error: Failed to Create Invoice."
	MsgUpdateFailed   = "Database Error: Failed to Update Invoice."
	MsgDeleteFailed   = "Database Error: Failed to Delete Invoice."
	MsgDeleted        = "Deleted Invoice."
)

// Phase is where a mutation stopped.
type Phase int

const (
	PhaseReceived Phase = iota
	PhaseValidating
	PhaseRejected
	PhaseValidated
	PhaseMutating
	PhaseFailed
	PhaseCommitted
	PhaseInvalidated
	PhaseRedirected
)

var phaseNames = [...]string{
	"received",
	"validating",
	"rejected",
	"validated",
	"mutating",
	"failed",
	"committed",
	"invalidated",
	"redirected",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// FormState is what a form re-renders with after a rejected or failed
// submission and what it posts back on the next attempt.
type FormState struct {
	Message string      `json:"message,omitempty"`
	Errors  FieldErrors `json:"errors,omitempty"`
}

// Result tells the caller where to navigate or what to show. Redirect is
// only set once the mutation committed and the views were invalidated.
type Result struct {
	Phase    Phase       `json:"-"`
	Redirect string      `json:"redirect,omitempty"`
	Message  string      `json:"message,omitempty"`
	Errors   FieldErrors `json:"errors,omitempty"`
}

func (r Result) State() FormState {
	return FormState{Message: r.Message, Errors: r.Errors}
}

type ListInvoiceRequest struct {
	Query string
	pagination.Pagination
}

type ListInvoiceFilter struct {
	Query string
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []InvoiceRow `json:"invoices"`
}

type Service interface {
	// CreateInvoice and UpdateInvoice collect field errors into the
	// returned Result so the form can be shown again.
	CreateInvoice(ctx context.Context, prev FormState, values map[string]string) (Result, error)
	UpdateInvoice(ctx context.Context, id string, prev FormState, values map[string]string) (Result, error)

	// The strict variants return a *form.ValidationError instead.
	CreateInvoiceStrict(ctx context.Context, values map[string]string) (Result, error)
	UpdateInvoiceStrict(ctx context.Context, id string, values map[string]string) (Result, error)

	DeleteInvoice(ctx context.Context, id string) (Result, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (InvoiceRow, error)
}

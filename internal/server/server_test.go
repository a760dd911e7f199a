package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/invoicedesk/internal/audit/domain"
	authaction "github.com/smallbiznis/invoicedesk/internal/auth/action"
	authdomain "github.com/smallbiznis/invoicedesk/internal/auth/domain"
	"github.com/smallbiznis/invoicedesk/internal/auth/session"
	"github.com/smallbiznis/invoicedesk/internal/authorization"
	"github.com/smallbiznis/invoicedesk/internal/clock"
	"github.com/smallbiznis/invoicedesk/internal/config"
	customerdomain "github.com/smallbiznis/invoicedesk/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/invoice/form"
	"github.com/smallbiznis/invoicedesk/internal/providers/pdf"
	"github.com/smallbiznis/invoicedesk/internal/ratelimit"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const validToken = "session-token"

type fakeAuthService struct {
	role        string
	signInErr   error
	signOutArgs []string
	lastCreds   map[string]string
}

func (f *fakeAuthService) SignIn(ctx context.Context, provider string, creds map[string]string) (*authdomain.SignInResult, error) {
	f.lastCreds = creds
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &authdomain.SignInResult{
		Identity:  authdomain.Identity{UserID: "u1", Role: f.role},
		RawToken:  validToken,
		ExpiresAt: time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeAuthService) CreateUser(ctx context.Context, req authdomain.CreateUserRequest) (*authdomain.User, error) {
	return &authdomain.User{ID: "u1", Email: req.Email}, nil
}

func (f *fakeAuthService) SignOut(ctx context.Context, rawToken string) error {
	f.signOutArgs = append(f.signOutArgs, rawToken)
	return nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Identity, error) {
	if rawToken != validToken {
		return nil, authdomain.ErrSessionNotFound
	}
	return &authdomain.Identity{UserID: "u1", Email: "user@nextmail.com", Role: f.role}, nil
}

type fakeAuthz struct{}

func (fakeAuthz) Authorize(ctx context.Context, identity authdomain.Identity, object, action string) error {
	adminOnly := action == authorization.ActionWrite || object == authorization.ObjectAuditLog
	if adminOnly && identity.Role != authdomain.RoleAdmin {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeInvoiceService struct {
	result    invoicedomain.Result
	err       error
	lastID    string
	lastPrev  invoicedomain.FormState
	lastVals  map[string]string
	row       invoicedomain.InvoiceRow
	listCalls int
}

func (f *fakeInvoiceService) CreateInvoice(ctx context.Context, prev invoicedomain.FormState, values map[string]string) (invoicedomain.Result, error) {
	f.lastPrev, f.lastVals = prev, values
	return f.result, f.err
}

func (f *fakeInvoiceService) UpdateInvoice(ctx context.Context, id string, prev invoicedomain.FormState, values map[string]string) (invoicedomain.Result, error) {
	f.lastID, f.lastPrev, f.lastVals = id, prev, values
	return f.result, f.err
}

func (f *fakeInvoiceService) CreateInvoiceStrict(ctx context.Context, values map[string]string) (invoicedomain.Result, error) {
	f.lastVals = values
	return f.result, f.err
}

func (f *fakeInvoiceService) UpdateInvoiceStrict(ctx context.Context, id string, values map[string]string) (invoicedomain.Result, error) {
	f.lastID, f.lastVals = id, values
	return f.result, f.err
}

func (f *fakeInvoiceService) DeleteInvoice(ctx context.Context, id string) (invoicedomain.Result, error) {
	f.lastID = id
	return f.result, f.err
}

func (f *fakeInvoiceService) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	f.listCalls++
	return invoicedomain.ListInvoiceResponse{Invoices: []invoicedomain.InvoiceRow{f.row}}, nil
}

func (f *fakeInvoiceService) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceRow, error) {
	if id != f.row.ID {
		return invoicedomain.InvoiceRow{}, invoicedomain.ErrNotFound
	}
	return f.row, nil
}

type fakeAudit struct {
	entries []auditdomain.Entry
}

func (f *fakeAudit) Record(ctx context.Context, entry auditdomain.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type fakeCustomerService struct{}

func (fakeCustomerService) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (customerdomain.Customer, error) {
	return customerdomain.Customer{}, errors.New("not implemented")
}

func (fakeCustomerService) List(ctx context.Context) ([]customerdomain.Customer, error) {
	return []customerdomain.Customer{{ID: "c1", Name: "Delba de Oliveira"}}, nil
}

func (fakeCustomerService) GetByID(ctx context.Context, id string) (customerdomain.Customer, error) {
	return customerdomain.Customer{}, customerdomain.ErrNotFound
}

type testServer struct {
	engine   *gin.Engine
	auth     *fakeAuthService
	invoices *fakeInvoiceService
	audit    *fakeAudit
}

func newTestServer(t *testing.T, role string) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	dashboard := config.NewStaticDashboardHolder(config.DefaultDashboardConfig())
	auth := &fakeAuthService{role: role}
	invoices := &fakeInvoiceService{
		row: invoicedomain.InvoiceRow{
			ID:     "42",
			Name:   "Delba de Oliveira",
			Email:  "delba@oliveira.com",
			Amount: 15795,
			Status: invoicedomain.StatusPending,
			Date:   datatypes.Date(time.Date(2022, 12, 6, 0, 0, 0, 0, time.UTC)),
		},
	}
	log := zap.NewNop()
	audit := &fakeAudit{}

	NewServer(ServerParams{
		Gin:          engine,
		Cfg:          config.Config{},
		Dashboard:    dashboard,
		Log:          log,
		Authsvc:      auth,
		LoginHandler: authaction.NewHandler(auth, dashboard, log),
		Sessions:     session.NewManager(config.Config{}, clock.NewFakeClock(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))),
		AuthzSvc:     fakeAuthz{},
		AuditSvc:     audit,
		InvoiceSvc:   invoices,
		CustomerSvc:  fakeCustomerService{},
		PDFProvider:  pdf.New(),
		LoginLimiter: ratelimit.NewLoginLimiter(nil, dashboard, log),
	})

	return testServer{engine: engine, auth: auth, invoices: invoices, audit: audit}
}

func (ts testServer) do(method, path string, form url.Values, authed bool) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if authed {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: validToken})
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return resp.Error
}

func TestCreateInvoiceRedirectsOnCommit(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.invoices.result = invoicedomain.Result{Phase: invoicedomain.PhaseRedirected, Redirect: "/dashboard/invoices"}

	rec := ts.do(http.MethodPost, "/dashboard/invoices", url.Values{
		"customerId": {"c1"},
		"amount":     {"157.95"},
		"status":     {"pending"},
		"_state":     {`{"message":"Missing Fields. Failed to Create Invoice."}`},
	}, true)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard/invoices" {
		t.Fatalf("unexpected location %q", loc)
	}
	if ts.invoices.lastVals["amount"] != "157.95" {
		t.Fatalf("form values not forwarded: %v", ts.invoices.lastVals)
	}
	if _, ok := ts.invoices.lastVals["_state"]; ok {
		t.Fatalf("state field must not reach the validator")
	}
	if ts.invoices.lastPrev.Message != "Missing Fields. Failed to Create Invoice." {
		t.Fatalf("previous state not decoded: %+v", ts.invoices.lastPrev)
	}
}

func TestCreateInvoiceRejectedRendersFormState(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.invoices.result = invoicedomain.Result{
		Phase:   invoicedomain.PhaseRejected,
		Message: invoicedomain.MsgCreateRejected,
		Errors:  invoicedomain.FieldErrors{"customerId": {"Please select a customer."}},
	}

	rec := ts.do(http.MethodPost, "/dashboard/invoices", url.Values{"amount": {"1"}}, true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var state invoicedomain.FormState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Message != invoicedomain.MsgCreateRejected || len(state.Errors["customerId"]) != 1 {
		t.Fatalf("unexpected state %+v", state)
	}
	if len(ts.audit.entries) != 0 {
		t.Fatalf("rejected forms are not audited")
	}
}

func TestCreateInvoiceStoreFailureIs500(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.invoices.result = invoicedomain.Result{Phase: invoicedomain.PhaseFailed, Message: invoicedomain.MsgCreateFailed}

	rec := ts.do(http.MethodPost, "/dashboard/invoices", url.Values{}, true)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), invoicedomain.MsgCreateFailed) {
		t.Fatalf("missing message: %s", rec.Body.String())
	}
}

func TestStrictCreateValidationErrorIs422(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.invoices.result = invoicedomain.Result{Phase: invoicedomain.PhaseRejected}
	ts.invoices.err = &form.ValidationError{
		Fields: invoicedomain.FieldErrors{
			"status": {"Please select an invoice status."},
			"amount": {"Please enter an amount greater than $0."},
		},
		Message: invoicedomain.MsgCreateRejected,
	}

	rec := ts.do(http.MethodPost, "/dashboard/invoices/strict", url.Values{}, true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	payload := decodeError(t, rec)
	if payload.Type != "validation_error" || payload.Message != invoicedomain.MsgCreateRejected {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(payload.Errors) != 2 || payload.Errors[0].Field != "amount" || payload.Errors[1].Field != "status" {
		t.Fatalf("unexpected field errors %+v", payload.Errors)
	}
}

func TestUpdateInvoiceForwardsID(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.invoices.result = invoicedomain.Result{Phase: invoicedomain.PhaseRedirected, Redirect: "/dashboard/invoices"}

	rec := ts.do(http.MethodPost, "/dashboard/invoices/42/edit/strict", url.Values{"status": {"paid"}}, true)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if ts.invoices.lastID != "42" {
		t.Fatalf("expected id 42, got %q", ts.invoices.lastID)
	}
}

func TestDeleteInvoice(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.invoices.result = invoicedomain.Result{Phase: invoicedomain.PhaseInvalidated, Message: invoicedomain.MsgDeleted}

	rec := ts.do(http.MethodDelete, "/dashboard/invoices/42", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Location") != "" {
		t.Fatalf("delete must not redirect")
	}
	if !strings.Contains(rec.Body.String(), invoicedomain.MsgDeleted) {
		t.Fatalf("missing message: %s", rec.Body.String())
	}
	if len(ts.audit.entries) != 1 || ts.audit.entries[0].Action != "invoice.delete" || ts.audit.entries[0].TargetID != "42" {
		t.Fatalf("unexpected audit entries %+v", ts.audit.entries)
	}
}

func TestDeleteDisabledIs500(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.invoices.err = invoicedomain.ErrDeleteDisabled

	rec := ts.do(http.MethodDelete, "/dashboard/invoices/42", nil, true)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if payload := decodeError(t, rec); payload.Type != "internal_error" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestMutationsRequireWritePermission(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleViewer)

	rec := ts.do(http.MethodPost, "/dashboard/invoices", url.Values{}, true)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if ts.invoices.lastVals != nil {
		t.Fatalf("service must not be called")
	}

	rec = ts.do(http.MethodGet, "/dashboard/invoices", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("viewer should list invoices, got %d", rec.Code)
	}
}

func TestDashboardRequiresSession(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)

	rec := ts.do(http.MethodGet, "/dashboard/invoices", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if ts.invoices.listCalls != 0 {
		t.Fatalf("list must not run without a session")
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleViewer)

	rec := ts.do(http.MethodGet, "/dashboard/invoices/missing", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRenderInvoicePDF(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleViewer)

	rec := ts.do(http.MethodGet, "/dashboard/invoices/42/pdf", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("body is not a pdf")
	}
}

func TestListCustomers(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleViewer)

	rec := ts.do(http.MethodGet, "/dashboard/customers", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Delba de Oliveira") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestLoginSuccessSetsCookieAndRedirects(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)

	rec := ts.do(http.MethodPost, "/login", url.Values{"email": {"user@nextmail.com"}, "password": {"123456"}}, false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("unexpected location %q", loc)
	}
	cookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, session.DefaultCookieName+"="+validToken) || !strings.Contains(cookie, "HttpOnly") {
		t.Fatalf("unexpected cookie %q", cookie)
	}
}

func TestLoginTakesSessionMetadataFromConnection(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)

	values := url.Values{
		"email":      {"user@nextmail.com"},
		"password":   {"123456"},
		"user_agent": {"forged-agent"},
		"ip_address": {"10.9.9.9"},
	}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11)")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := ts.auth.lastCreds[authdomain.MetaUserAgent]; got != "Mozilla/5.0 (X11)" {
		t.Fatalf("expected request user agent, got %q", got)
	}
	if got := ts.auth.lastCreds[authdomain.MetaIPAddress]; got != "192.0.2.1" {
		t.Fatalf("expected connection address, got %q", got)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.auth.signInErr = &authdomain.AuthError{Kind: authdomain.KindCredentialsSignin}

	rec := ts.do(http.MethodPost, "/login", url.Values{"email": {"user@nextmail.com"}}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), authaction.MsgInvalidCredentials) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestLoginUnknownErrorPropagates(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.auth.signInErr = errors.New("connection refused")

	rec := ts.do(http.MethodPost, "/login", url.Values{}, false)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("driver error leaked: %s", rec.Body.String())
	}
}

func TestLoginBeyondBurstIsRateLimited(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.auth.signInErr = &authdomain.AuthError{Kind: authdomain.KindCredentialsSignin}
	burst := config.DefaultDashboardConfig().Login.Burst

	for i := 0; i < burst; i++ {
		rec := ts.do(http.MethodPost, "/login", url.Values{}, false)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
	}

	rec := ts.do(http.MethodPost, "/login", url.Values{}, false)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)

	rec := ts.do(http.MethodPost, "/logout", nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(ts.auth.signOutArgs) != 1 || ts.auth.signOutArgs[0] != validToken {
		t.Fatalf("unexpected sign out calls %v", ts.auth.signOutArgs)
	}
}

func TestAuditLogsAreAdminOnly(t *testing.T) {
	viewer := newTestServer(t, authdomain.RoleViewer)
	if rec := viewer.do(http.MethodGet, "/dashboard/audit-logs", nil, true); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

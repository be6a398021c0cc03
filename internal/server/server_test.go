package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/internal/auditcontext"
	"github.com/merceton/merceton/internal/authorization"
	billingdomain "github.com/merceton/merceton/internal/billing/domain"
	orderdomain "github.com/merceton/merceton/internal/order/domain"
	pricingdomain "github.com/merceton/merceton/internal/pricing/domain"
	"github.com/merceton/merceton/internal/validation"
	"go.uber.org/zap"
)

const testMerchantID = snowflake.ID(1001)

type fakeOrderService struct {
	orderdomain.Service
	result orderdomain.CreateOrderResult
	order  *orderdomain.Order
}

func (f *fakeOrderService) CreateOrder(ctx context.Context, input orderdomain.CreateOrderInput) orderdomain.CreateOrderResult {
	return f.result
}

func (f *fakeOrderService) Get(ctx context.Context, id snowflake.ID) (*orderdomain.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, orderdomain.ErrNotFound
	}
	return f.order, nil
}

type fakeBillingService struct {
	billingdomain.Service
	rows    []billingdomain.StatementRow
	lastReq billingdomain.StatementRequest
}

func (f *fakeBillingService) Statement(ctx context.Context, req billingdomain.StatementRequest) (*billingdomain.Statement, error) {
	f.lastReq = req
	statement := &billingdomain.Statement{MerchantID: req.MerchantID, From: req.From, To: req.To, Rows: f.rows}
	for _, row := range f.rows {
		statement.Summary.Add(row)
	}
	return statement, nil
}

func (f *fakeBillingService) InvoicePDF(ctx context.Context, req billingdomain.StatementRequest) ([]byte, error) {
	f.lastReq = req
	return []byte("%PDF-1.4"), nil
}

type fakeAuthz struct {
	admins    map[snowflake.ID]authorization.AdminUser
	forbidden bool
	lastActor string
}

func (f *fakeAuthz) Authorize(ctx context.Context, actor string, object string, action string) error {
	f.lastActor = actor
	if f.forbidden {
		return authorization.ErrForbidden
	}
	return nil
}

func (f *fakeAuthz) ResolveAdmin(ctx context.Context, id snowflake.ID) (authorization.AdminUser, error) {
	admin, ok := f.admins[id]
	if !ok {
		return authorization.AdminUser{}, authorization.ErrInvalidActor
	}
	return admin, nil
}

type fakePricingAdmin struct {
	pricingdomain.AdminService
	lastClear pricingdomain.ClearOverridesRequest
	actorID   string
}

func (f *fakePricingAdmin) ClearOverrides(ctx context.Context, req pricingdomain.ClearOverridesRequest) (*pricingdomain.MerchantFeeConfig, error) {
	f.lastClear = req
	_, f.actorID = auditcontext.ActorFromContext(ctx)
	if _, err := validation.Reason(req.Reason); err != nil {
		return nil, err
	}
	return &pricingdomain.MerchantFeeConfig{ID: snowflake.ID(77), MerchantID: req.MerchantID}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	return &Server{engine: engine, log: zap.NewNop()}
}

func doRequest(srv *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	srv.engine.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", resp.Body.String(), err)
	}
	return body
}

func merchantHeaders() map[string]string {
	return map[string]string{HeaderMerchantID: testMerchantID.String()}
}

func TestCreateOrderSuccess(t *testing.T) {
	srv := newTestServer(t)
	srv.orderSvc = &fakeOrderService{result: orderdomain.CreateOrderResult{
		Success: true,
		Order:   &orderdomain.Order{ID: 5, OrderNumber: "ORD-2025-001", MerchantID: testMerchantID},
	}}
	srv.registerPublicRoutes()

	resp := doRequest(srv, http.MethodPost, "/api/orders", `{"merchant_id":"1001"}`, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("expected success true, got %v", body["success"])
	}
	order, ok := body["order"].(map[string]any)
	if !ok || order["order_number"] != "ORD-2025-001" {
		t.Fatalf("unexpected order payload: %v", body["order"])
	}
}

func TestCreateOrderFailureUsesErrorKind(t *testing.T) {
	srv := newTestServer(t)
	srv.orderSvc = &fakeOrderService{result: orderdomain.Failed(orderdomain.ErrInsufficientStock)}
	srv.registerPublicRoutes()

	resp := doRequest(srv, http.MethodPost, "/api/orders", `{}`, nil)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", resp.Code)
	}
	body := decodeBody(t, resp)
	if body["success"] != false || body["error"] != "insufficient stock" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["order"]; ok {
		t.Fatal("failed order must not carry an order")
	}
}

func TestCreateOrderInternalFailureHidesCause(t *testing.T) {
	srv := newTestServer(t)
	cause := orderdomain.ErrCreateFailed.WithCause(errors.New("pq: connection reset"))
	srv.orderSvc = &fakeOrderService{result: orderdomain.Failed(cause)}
	srv.registerPublicRoutes()

	resp := doRequest(srv, http.MethodPost, "/api/orders", `{}`, nil)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "pq:") {
		t.Fatalf("internal cause leaked: %s", resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["error"] != "failed to create order" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestCreateOrderMalformedJSON(t *testing.T) {
	srv := newTestServer(t)
	srv.orderSvc = &fakeOrderService{}
	srv.registerPublicRoutes()

	resp := doRequest(srv, http.MethodPost, "/api/orders", `{"items":`, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if body := decodeBody(t, resp); body["success"] != false {
		t.Fatalf("expected success false, got %v", body)
	}
}

func TestStatementCSV(t *testing.T) {
	srv := newTestServer(t)
	billing := &fakeBillingService{rows: []billingdomain.StatementRow{{
		OrderNumber:  "ORD-2025-001",
		Date:         time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC),
		CustomerName: "Asha",
		TaxablePaise: 100000,
		CGSTPaise:    9000,
		SGSTPaise:    9000,
		TotalPaise:   118000,
		Status:       "NEW",
	}}}
	srv.billingSvc = billing
	srv.registerMerchantRoutes()

	resp := doRequest(srv, http.MethodGet, "/api/billing/statement.csv?from=2025-06-01&to=2025-06-30", "", merchantHeaders())
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if lines[0] != strings.Join(billingdomain.StatementHeader, ",") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "ORD-2025-001,2025-06-03,Asha,1000.00,90.00,90.00,0.00") {
		t.Fatalf("unexpected row %q", lines[1])
	}

	if billing.lastReq.MerchantID == nil || *billing.lastReq.MerchantID != testMerchantID {
		t.Fatal("statement must be scoped to the calling merchant")
	}
	wantTo := time.Date(2025, 6, 30, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	if !billing.lastReq.To.Equal(wantTo) {
		t.Fatalf("expected to at end of day, got %s", billing.lastReq.To)
	}
}

func TestInvoicePDFContentDisposition(t *testing.T) {
	srv := newTestServer(t)
	srv.billingSvc = &fakeBillingService{}
	srv.registerMerchantRoutes()

	target := "/api/billing/invoice.pdf?merchantId=1001&from=2025-06-01&to=2025-06-30"
	resp := doRequest(srv, http.MethodGet, target, "", merchantHeaders())
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", ct)
	}
	want := `attachment; filename="merceton-invoice-1001-2025-06-01-2025-06-30.pdf"`
	if got := resp.Header().Get("Content-Disposition"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestStatementSummarySkipsCancelled(t *testing.T) {
	srv := newTestServer(t)
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	srv.billingSvc = &fakeBillingService{rows: []billingdomain.StatementRow{
		{OrderNumber: "ORD-2025-001", Date: day, TaxablePaise: 100000, IGSTPaise: 18000, TotalPaise: 118000, Status: "DELIVERED"},
		{OrderNumber: "ORD-2025-002", Date: day, TaxablePaise: 50000, IGSTPaise: 9000, TotalPaise: 59000, Status: "CANCELLED"},
	}}
	srv.registerMerchantRoutes()

	resp := doRequest(srv, http.MethodGet, "/api/billing/summary?from=2025-06-01&to=2025-06-30", "", merchantHeaders())
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	summary, ok := decodeBody(t, resp)["summary"].(map[string]any)
	if !ok {
		t.Fatalf("missing summary: %s", resp.Body.String())
	}
	if summary["orders"] != float64(1) || summary["taxable_paise"] != float64(100000) || summary["gst_paise"] != float64(18000) || summary["total_paise"] != float64(118000) {
		t.Fatalf("unexpected summary %v", summary)
	}
}

func TestMerchantStatementRejectsOtherMerchant(t *testing.T) {
	srv := newTestServer(t)
	billing := &fakeBillingService{}
	srv.billingSvc = billing
	srv.registerMerchantRoutes()

	resp := doRequest(srv, http.MethodGet, "/api/billing/statement.csv?merchantId=2002&from=2025-06-01&to=2025-06-30", "", merchantHeaders())
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
	if billing.lastReq.MerchantID != nil {
		t.Fatal("billing service must not be called")
	}
}

func TestMerchantRoutesRequireMerchantHeader(t *testing.T) {
	srv := newTestServer(t)
	srv.billingSvc = &fakeBillingService{}
	srv.registerMerchantRoutes()

	resp := doRequest(srv, http.MethodGet, "/api/billing/summary", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestMerchantOrderHidesOtherMerchants(t *testing.T) {
	srv := newTestServer(t)
	srv.orderSvc = &fakeOrderService{order: &orderdomain.Order{ID: 9, MerchantID: 2002}}
	srv.registerMerchantRoutes()

	resp := doRequest(srv, http.MethodGet, "/api/orders/9", "", merchantHeaders())
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestAdminRoutesRequireActor(t *testing.T) {
	srv := newTestServer(t)
	srv.authzSvc = &fakeAuthz{}
	srv.pricingSvc = &fakePricingAdmin{}
	srv.registerAdminRoutes()

	resp := doRequest(srv, http.MethodPost, "/api/admin/merchants/1001/fee-config/overrides/clear", `{"reason":"cleanup"}`, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}

	resp = doRequest(srv, http.MethodPost, "/api/admin/merchants/1001/fee-config/overrides/clear", `{"reason":"cleanup"}`, map[string]string{HeaderActorID: "404"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for unknown admin, got %d", resp.Code)
	}
}

func TestAdminForbidden(t *testing.T) {
	srv := newTestServer(t)
	srv.authzSvc = &fakeAuthz{
		admins:    map[snowflake.ID]authorization.AdminUser{7: {ID: 7, Email: "support@merceton.test", Role: authorization.RoleSupport, IsActive: true}},
		forbidden: true,
	}
	pricing := &fakePricingAdmin{}
	srv.pricingSvc = pricing
	srv.registerAdminRoutes()

	resp := doRequest(srv, http.MethodPost, "/api/admin/merchants/1001/fee-config/overrides/clear", `{"reason":"cleanup"}`, map[string]string{HeaderActorID: "7"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
	if pricing.lastClear.MerchantID != 0 {
		t.Fatal("pricing service must not be called")
	}
}

func TestAdminMutationResponseShape(t *testing.T) {
	srv := newTestServer(t)
	authz := &fakeAuthz{admins: map[snowflake.ID]authorization.AdminUser{7: {ID: 7, Email: "ops@merceton.test", Role: authorization.RoleAdmin, IsActive: true}}}
	srv.authzSvc = authz
	pricing := &fakePricingAdmin{}
	srv.pricingSvc = pricing
	srv.registerAdminRoutes()

	headers := map[string]string{HeaderActorID: "7"}
	resp := doRequest(srv, http.MethodPost, "/api/admin/merchants/1001/fee-config/overrides/clear", `{"reason":"back to package terms"}`, headers)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("expected success true, got %v", body)
	}
	if body["merchant_id"] != "1001" && body["merchant_id"] != float64(1001) {
		t.Fatalf("expected entity fields at top level, got %v", body)
	}
	if pricing.lastClear.Reason != "back to package terms" || pricing.lastClear.MerchantID != testMerchantID {
		t.Fatalf("unexpected request %+v", pricing.lastClear)
	}
	if pricing.actorID != "7" || authz.lastActor != "admin:7" {
		t.Fatalf("expected admin 7 in context, got %q / %q", pricing.actorID, authz.lastActor)
	}

	resp = doRequest(srv, http.MethodPost, "/api/admin/merchants/1001/fee-config/overrides/clear", `{}`, headers)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without reason, got %d", resp.Code)
	}
	if body := decodeBody(t, resp); body["success"] != false {
		t.Fatalf("expected success false, got %v", body)
	}
}

func TestMapError(t *testing.T) {
	status, payload := mapError(&validation.Errors{Fields: []validation.FieldError{
		{Field: "reason", Code: "required", Message: "reason is required"},
		{Field: "status", Code: "oneof", Message: "status is invalid"},
	}})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if len(payload.Fields) != 2 || payload.Success {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if !strings.Contains(payload.Error, "reason is required") {
		t.Fatalf("expected first field message, got %q", payload.Error)
	}

	status, payload = mapError(apperror.Internal("db_down", "database unavailable"))
	if status != http.StatusInternalServerError || payload.Error != "internal server error" {
		t.Fatalf("internal errors must be masked, got %d %+v", status, payload)
	}

	status, _ = mapError(apperror.Conflict("dup", "duplicate"))
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}

	status, payload = mapError(errors.New("boom"))
	if status != http.StatusInternalServerError || payload.Code != "internal_error" {
		t.Fatalf("untagged errors are internal, got %d %+v", status, payload)
	}
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"labbooking/internal/model"
	"labbooking/internal/payment"
	"labbooking/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSecret = []byte("handler-test-secret")

// --- stub services ---

type stubRequestService struct {
	create  func(service.CreateRequestDTO) (service.CreateRequestResponse, error)
	decide  func(action, id, actor, notes string) error
	get     func(id string) (service.RequestResponse, error)
	list    func(service.RequestFilter) ([]service.RequestResponse, int64, error)
	retried string
	caller  service.Caller
}

func (s *stubRequestService) CreateRequest(_ context.Context, req service.CreateRequestDTO) (service.CreateRequestResponse, error) {
	return s.create(req)
}

func (s *stubRequestService) RetryPayment(_ context.Context, id string, caller service.Caller) (service.CreateRequestResponse, error) {
	s.retried, s.caller = id, caller
	return service.CreateRequestResponse{RequestID: id, PaymentID: "p-2"}, nil
}

func (s *stubRequestService) ApproveRequest(_ context.Context, id, actor, notes string) error {
	return s.decide("approve", id, actor, notes)
}

func (s *stubRequestService) RejectRequest(_ context.Context, id, actor, notes string) error {
	return s.decide("reject", id, actor, notes)
}

func (s *stubRequestService) CancelRequest(_ context.Context, id string, caller service.Caller, notes string) error {
	s.caller = caller
	return s.decide("cancel", id, caller.ID, notes)
}

func (s *stubRequestService) GetRequest(_ context.Context, id string, caller service.Caller) (service.RequestResponse, error) {
	s.caller = caller
	return s.get(id)
}

func (s *stubRequestService) ListRequests(_ context.Context, f service.RequestFilter) ([]service.RequestResponse, int64, error) {
	return s.list(f)
}

type stubReconciliationService struct {
	notify func(payment.Notification) (service.ReconcileResult, error)
	client func(orderID, status string) (service.ClientStatusResponse, error)
	resync func(orderID string) (service.ReconcileResult, error)
}

func (s *stubReconciliationService) HandleNotification(_ context.Context, n payment.Notification) (service.ReconcileResult, error) {
	return s.notify(n)
}

func (s *stubReconciliationService) ReportClientStatus(_ context.Context, orderID, status string) (service.ClientStatusResponse, error) {
	return s.client(orderID, status)
}

func (s *stubReconciliationService) Resync(_ context.Context, orderID string) (service.ReconcileResult, error) {
	return s.resync(orderID)
}

func (s *stubReconciliationService) Stats() service.ReconcileStats {
	return service.ReconcileStats{Applied: 3, Duplicate: 1}
}

type stubScheduleService struct {
	setStatus func(id, status, actor string) error
	list      func(service.ScheduleFilter) ([]service.ScheduleResponse, int64, error)
}

func (s *stubScheduleService) Materialize(context.Context, uuid.UUID) (string, bool, error) {
	return "", false, nil
}

func (s *stubScheduleService) SweepCompleted(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *stubScheduleService) SetStatus(_ context.Context, id, status, actor string) error {
	return s.setStatus(id, status, actor)
}

func (s *stubScheduleService) GetSchedule(_ context.Context, id string) (service.ScheduleResponse, error) {
	return service.ScheduleResponse{}, fmt.Errorf("%w: schedule", service.ErrNotFound)
}

func (s *stubScheduleService) ListSchedules(_ context.Context, f service.ScheduleFilter) ([]service.ScheduleResponse, int64, error) {
	return s.list(f)
}

func (s *stubScheduleService) RunSweeper(context.Context, time.Duration) {}

// --- helpers ---

func token(t *testing.T, sub, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newRouter(register ...func(*gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, fn := range register {
		fn(&r.RouterGroup)
	}
	return r
}

func do(t *testing.T, r http.Handler, method, path, bearer string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

// --- request routes ---

func TestCreateRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		result   service.CreateRequestResponse
		err      error
		wantCode int
		wantData bool
	}{
		{
			name:     "created",
			body:     service.CreateRequestDTO{RequesterID: "u-1"},
			result:   service.CreateRequestResponse{RequestID: "r-1", PaymentID: "p-1", TotalAmount: 50000, GatewaySnapToken: "tok"},
			wantCode: http.StatusCreated,
			wantData: true,
		},
		{
			name:     "malformed json",
			body:     "{",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "validation",
			body:     service.CreateRequestDTO{},
			err:      fmt.Errorf("%w: requesterId is required", service.ErrValidation),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "gateway down keeps ids",
			body:     service.CreateRequestDTO{RequesterID: "u-1"},
			result:   service.CreateRequestResponse{RequestID: "r-1", PaymentID: "p-1"},
			err:      fmt.Errorf("%w: payment gateway unavailable", service.ErrUpstream),
			wantCode: http.StatusInternalServerError,
			wantData: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubRequestService{create: func(service.CreateRequestDTO) (service.CreateRequestResponse, error) {
				return tt.result, tt.err
			}}
			r := newRouter(NewRequestHandler(svc, testSecret).RegisterRoutes)

			w, body := do(t, r, http.MethodPost, "/api/requests", "", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			data, _ := body["data"].(map[string]interface{})
			if tt.wantData {
				if data["requestId"] != "r-1" || data["paymentId"] != "p-1" {
					t.Fatalf("data = %v, want ids", data)
				}
			} else if data != nil {
				t.Fatalf("unexpected data %v", data)
			}
		})
	}
}

func TestRequestDecisions(t *testing.T) {
	var gotAction, gotActor, gotNotes string
	svc := &stubRequestService{decide: func(action, id, actor, notes string) error {
		gotAction, gotActor, gotNotes = action, actor, notes
		switch id {
		case "missing":
			return fmt.Errorf("%w: request", service.ErrNotFound)
		case "closed":
			return fmt.Errorf("%w: request is approved", service.ErrInvalidState)
		}
		return nil
	}}
	r := newRouter(NewRequestHandler(svc, testSecret).RegisterRoutes)
	admin := token(t, "admin-1", "admin")
	user := token(t, "user-1", "user")

	if w, _ := do(t, r, http.MethodPut, "/api/requests/r-1/reject", "", map[string]string{"adminNotes": "x"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", w.Code)
	}
	if w, _ := do(t, r, http.MethodPut, "/api/requests/r-1/approve", user, nil); w.Code != http.StatusForbidden {
		t.Fatalf("user approving: status = %d, want 403", w.Code)
	}

	w, _ := do(t, r, http.MethodPut, "/api/requests/r-1/reject", admin, map[string]string{"adminNotes": "damaged item"})
	if w.Code != http.StatusOK || gotAction != "reject" || gotActor != "admin-1" || gotNotes != "damaged item" {
		t.Fatalf("reject = %d %s/%s/%s", w.Code, gotAction, gotActor, gotNotes)
	}

	if w, _ := do(t, r, http.MethodPut, "/api/requests/r-1/cancel", user, nil); w.Code != http.StatusOK || svc.caller != (service.Caller{ID: "user-1"}) {
		t.Fatalf("user cancel = %d caller %+v", w.Code, svc.caller)
	}
	if w, _ := do(t, r, http.MethodPut, "/api/requests/r-1/cancel", admin, nil); w.Code != http.StatusOK || !svc.caller.Admin {
		t.Fatalf("admin cancel = %d caller %+v", w.Code, svc.caller)
	}
	if w, _ := do(t, r, http.MethodPut, "/api/requests/missing/approve", admin, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing: status = %d, want 404", w.Code)
	}
	if w, _ := do(t, r, http.MethodPut, "/api/requests/closed/approve", admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("closed: status = %d, want 400", w.Code)
	}
}

func TestListAndRetryRequests(t *testing.T) {
	var gotFilter service.RequestFilter
	svc := &stubRequestService{list: func(f service.RequestFilter) ([]service.RequestResponse, int64, error) {
		gotFilter = f
		return []service.RequestResponse{{ID: "r-1"}}, 1, nil
	}}
	r := newRouter(NewRequestHandler(svc, testSecret).RegisterRoutes)

	w, body := do(t, r, http.MethodGet, "/api/requests?status=pending_review&page=2&limit=500", token(t, "a", "admin"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotFilter.Status != "pending_review" || gotFilter.Page != 2 || gotFilter.Limit != 100 {
		t.Fatalf("filter = %+v", gotFilter)
	}
	if data := body["data"].(map[string]interface{}); data["total"] != float64(1) {
		t.Fatalf("data = %v", data)
	}

	w, _ = do(t, r, http.MethodPost, "/api/requests/r-9/payments", token(t, "u", "user"), nil)
	if w.Code != http.StatusCreated || svc.retried != "r-9" || svc.caller.ID != "u" || svc.caller.Admin {
		t.Fatalf("retry = %d, retried %q by %+v", w.Code, svc.retried, svc.caller)
	}
}

// --- payment routes ---

func TestHandleNotification(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		err      error
		wantCode int
		wantOK   bool
	}{
		{"applied", payment.Notification{OrderID: "o-1", TransactionStatus: "settlement"}, nil, http.StatusOK, true},
		{"unknown order acknowledged", payment.Notification{OrderID: "o-x", TransactionStatus: "settlement"}, fmt.Errorf("%w: payment o-x", service.ErrNotFound), http.StatusOK, true},
		{"bad signature", payment.Notification{OrderID: "o-1"}, service.ErrInvalidSignature, http.StatusUnauthorized, false},
		{"unknown status", payment.Notification{OrderID: "o-1", TransactionStatus: "voided"}, fmt.Errorf("%w: unknown transaction status", service.ErrValidation), http.StatusBadRequest, false},
		{"store down", payment.Notification{OrderID: "o-1", TransactionStatus: "settlement"}, fmt.Errorf("%w: db", service.ErrUpstream), http.StatusInternalServerError, false},
		{"malformed json", "not json", nil, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubReconciliationService{notify: func(payment.Notification) (service.ReconcileResult, error) {
				return service.ReconcileResult{Outcome: service.OutcomeApplied}, tt.err
			}}
			r := newRouter(NewPaymentHandler(svc, testSecret).RegisterRoutes)

			w, body := do(t, r, http.MethodPost, "/api/payments/notification", "", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantOK && body["status"] != "success" {
				t.Fatalf("body = %v, want status success", body)
			}
		})
	}
}

func TestClientStatusAndResync(t *testing.T) {
	svc := &stubReconciliationService{
		client: func(orderID, status string) (service.ClientStatusResponse, error) {
			return service.ClientStatusResponse{OrderID: orderID, Status: "pending", ClientStatus: status}, nil
		},
		resync: func(orderID string) (service.ReconcileResult, error) {
			return service.ReconcileResult{}, fmt.Errorf("%w: payment %s", service.ErrNotFound, orderID)
		},
	}
	r := newRouter(NewPaymentHandler(svc, testSecret).RegisterRoutes)

	w, body := do(t, r, http.MethodPut, "/api/payments/o-1/client-status", "", map[string]string{"status": "settlement"})
	if w.Code != http.StatusOK {
		t.Fatalf("client-status = %d", w.Code)
	}
	if data := body["data"].(map[string]interface{}); data["status"] != "pending" || data["clientStatus"] != "settlement" {
		t.Fatalf("data = %v", data)
	}

	if w, _ := do(t, r, http.MethodPost, "/api/payments/o-1/sync", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("sync without token = %d, want 401", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/api/payments/o-1/sync", token(t, "a", "admin"), nil); w.Code != http.StatusNotFound {
		t.Fatalf("sync unknown = %d, want 404", w.Code)
	}

	w, body = do(t, r, http.MethodGet, "/api/payments/reconcile-stats", token(t, "a", "admin"), nil)
	if w.Code != http.StatusOK || body["data"].(map[string]interface{})["applied"] != float64(3) {
		t.Fatalf("stats = %d %v", w.Code, body)
	}
}

// --- schedule routes ---

func TestScheduleRoutes(t *testing.T) {
	var gotActor string
	svc := &stubScheduleService{
		setStatus: func(id, status, actor string) error {
			gotActor = actor
			if status == "done" {
				return fmt.Errorf("%w: bad status", service.ErrValidation)
			}
			return nil
		},
		list: func(service.ScheduleFilter) ([]service.ScheduleResponse, int64, error) {
			return []service.ScheduleResponse{{ID: "SCH-000001"}}, 1, nil
		},
	}
	r := newRouter(NewScheduleHandler(svc, testSecret).RegisterRoutes)
	admin := token(t, "admin-1", "admin")

	if w, _ := do(t, r, http.MethodGet, "/api/schedules", token(t, "u", "user"), nil); w.Code != http.StatusForbidden {
		t.Fatalf("user list = %d, want 403", w.Code)
	}
	if w, _ := do(t, r, http.MethodGet, "/api/schedules", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodGet, "/api/schedules/SCH-404", admin, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get missing = %d, want 404", w.Code)
	}
	if w, _ := do(t, r, http.MethodPut, "/api/schedules/SCH-000001/status", admin, map[string]string{"status": "done"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status = %d, want 400", w.Code)
	}
	w, body := do(t, r, http.MethodPut, "/api/schedules/SCH-000001/status", admin, map[string]string{"status": "no_show"})
	if w.Code != http.StatusOK || gotActor != "admin-1" {
		t.Fatalf("set status = %d actor %q", w.Code, gotActor)
	}
	if data := body["data"].(map[string]interface{}); data["status"] != "no_show" {
		t.Fatalf("data = %v", data)
	}
}

type stubInventoryService struct {
	created service.CreateItemDTO
	actor   string
}

func (s *stubInventoryService) ListItems(_ context.Context, f service.ItemFilter) ([]service.ItemResponse, int64, error) {
	if f.Kind == "gadget" {
		return nil, 0, fmt.Errorf("%w: kind must be tool or reagent", service.ErrValidation)
	}
	return []service.ItemResponse{{ID: "i-1", Kind: "tool", Name: "Microscope"}}, 1, nil
}

func (s *stubInventoryService) CreateItem(_ context.Context, actor string, req service.CreateItemDTO) (service.ItemResponse, error) {
	s.created, s.actor = req, actor
	return service.ItemResponse{ID: "i-2", Kind: req.Kind, Name: req.Name}, nil
}

func (s *stubInventoryService) UpdateItem(_ context.Context, _, id string, _ service.UpdateItemDTO) (service.ItemResponse, error) {
	return service.ItemResponse{}, fmt.Errorf("%w: item", service.ErrNotFound)
}

func (s *stubInventoryService) DeleteItem(context.Context, string, string) error { return nil }

func TestInventoryRoutes(t *testing.T) {
	svc := &stubInventoryService{}
	r := newRouter(NewInventoryHandler(svc, testSecret).RegisterRoutes)
	admin := token(t, "admin-1", "admin")
	user := token(t, "user-1", "user")

	if w, _ := do(t, r, http.MethodGet, "/api/items", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list = %d, want 401", w.Code)
	}
	w, body := do(t, r, http.MethodGet, "/api/items?kind=tool", user, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("user list = %d", w.Code)
	}
	if data := body["data"].(map[string]interface{}); data["total"] != float64(1) {
		t.Fatalf("data = %v", data)
	}
	if w, _ := do(t, r, http.MethodGet, "/api/items?kind=gadget", user, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad kind = %d, want 400", w.Code)
	}

	payload := map[string]interface{}{"kind": "tool", "name": "Microscope", "price": 25000, "stock": 2}
	if w, _ := do(t, r, http.MethodPost, "/api/items", user, payload); w.Code != http.StatusForbidden {
		t.Fatalf("user create = %d, want 403", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/api/items", admin, map[string]interface{}{"kind": "gadget", "name": "x"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad payload = %d, want 400", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/api/items", admin, payload); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	if svc.actor != "admin-1" || svc.created.Stock != 2 {
		t.Fatalf("created = %+v by %q", svc.created, svc.actor)
	}

	if w, _ := do(t, r, http.MethodPut, "/api/items/i-9", admin, map[string]int{"stock": 1}); w.Code != http.StatusNotFound {
		t.Fatalf("update missing = %d, want 404", w.Code)
	}
	if w, _ := do(t, r, http.MethodDelete, "/api/items/i-1", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
}

type stubStatisticsService struct {
	start, end time.Time
}

func (s *stubStatisticsService) GetStatistics(_ context.Context, start, end time.Time) (model.StatisticsResponse, error) {
	s.start, s.end = start, end
	if end.Before(start) {
		return model.StatisticsResponse{}, fmt.Errorf("%w: range", service.ErrValidation)
	}
	return model.StatisticsResponse{TotalRequests: 4}, nil
}

func TestStatisticsRoute(t *testing.T) {
	svc := &stubStatisticsService{}
	r := newRouter(NewStatisticsHandler(svc, testSecret).RegisterRoutes)
	admin := token(t, "admin-1", "admin")

	if w, _ := do(t, r, http.MethodGet, "/api/statistics", token(t, "u", "user"), nil); w.Code != http.StatusForbidden {
		t.Fatalf("user = %d, want 403", w.Code)
	}
	if w, _ := do(t, r, http.MethodGet, "/api/statistics?start_date=yesterday", admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date = %d, want 400", w.Code)
	}
	if w, _ := do(t, r, http.MethodGet, "/api/statistics?start_date=2025-03-02T00:00:00Z&end_date=2025-03-01T00:00:00Z", admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("reversed = %d, want 400", w.Code)
	}

	w, body := do(t, r, http.MethodGet, "/api/statistics?start_date=2025-03-01T00:00:00Z&end_date=2025-03-31T00:00:00Z", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d", w.Code)
	}
	if svc.start.Day() != 1 || svc.end.Day() != 31 {
		t.Fatalf("range = %s..%s", svc.start, svc.end)
	}
	if data := body["data"].(map[string]interface{}); data["total_requests"] != float64(4) {
		t.Fatalf("data = %v", data)
	}
}

type stubAuditService struct {
	filter service.AuditLogFilter
}

func (s *stubAuditService) GetAuditLogs(_ context.Context, f service.AuditLogFilter) ([]service.AuditLogResponse, int64, error) {
	s.filter = f
	return []service.AuditLogResponse{{ID: "a-1", Action: f.Action}}, 1, nil
}

func TestAuditLogsRoute(t *testing.T) {
	svc := &stubAuditService{}
	r := newRouter(NewAuditHandler(svc, testSecret).RegisterRoutes)

	if w, _ := do(t, r, http.MethodGet, "/api/audit-logs", token(t, "user-1", "user"), nil); w.Code != http.StatusForbidden {
		t.Fatalf("user audit = %d, want 403", w.Code)
	}

	w, body := do(t, r, http.MethodGet, "/api/audit-logs?action=PAYMENT_ANOMALY&entityId=r-1&page=2&limit=5", token(t, "admin-1", "admin"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin audit = %d", w.Code)
	}
	if svc.filter.Action != "PAYMENT_ANOMALY" || svc.filter.EntityID != "r-1" || svc.filter.Page != 2 || svc.filter.Limit != 5 {
		t.Fatalf("filter = %+v", svc.filter)
	}
	data := body["data"].(map[string]interface{})
	if data["total"] != float64(1) || len(data["logs"].([]interface{})) != 1 {
		t.Fatalf("data = %v", data)
	}
}

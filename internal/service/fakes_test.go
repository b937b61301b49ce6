package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"labbooking/internal/model"
	"labbooking/internal/payment"
	"labbooking/internal/payment/mocks"
	"labbooking/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

// ledger is an in-memory stand-in for the PostgreSQL store. A transaction
// holds mu for its whole duration and is rolled back by restoring a snapshot,
// which gives the same serialization the row locks give in production.
type ledger struct {
	mu    sync.Mutex
	st    ledgerState
	clock time.Time

	assignFailures int
}

type ledgerState struct {
	requests  map[uuid.UUID]model.Request
	payments  map[uuid.UUID]model.Payment
	schedules map[string]model.Schedule
	inventory map[uuid.UUID]model.InventoryItem
	audits    []model.AuditLog
}

type fakeTxKey struct{}

var errConnReset = errors.New("connection reset by peer")

func newLedger() *ledger {
	return &ledger{
		st: ledgerState{
			requests:  map[uuid.UUID]model.Request{},
			payments:  map[uuid.UUID]model.Payment{},
			schedules: map[string]model.Schedule{},
			inventory: map[uuid.UUID]model.InventoryItem{},
		},
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s ledgerState) clone() ledgerState {
	c := ledgerState{
		requests:  make(map[uuid.UUID]model.Request, len(s.requests)),
		payments:  make(map[uuid.UUID]model.Payment, len(s.payments)),
		schedules: make(map[string]model.Schedule, len(s.schedules)),
		inventory: make(map[uuid.UUID]model.InventoryItem, len(s.inventory)),
		audits:    append([]model.AuditLog(nil), s.audits...),
	}
	for k, v := range s.requests {
		v.Items = append([]model.RequestItem(nil), v.Items...)
		c.requests[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.schedules {
		c.schedules[k] = v
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	return c
}

func (l *ledger) now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clock
}

func (l *ledger) advance(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = l.clock.Add(d)
}

func (l *ledger) tick() time.Time {
	l.clock = l.clock.Add(time.Millisecond)
	return l.clock
}

// do runs fn under the ledger lock unless ctx already carries a transaction.
func (l *ledger) do(ctx context.Context, fn func() error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}

func (l *ledger) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := l.st.clone()
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		l.st = snapshot
		return err
	}
	return nil
}

// --- seeding and inspection helpers ---

func (l *ledger) addItem(kind, name, price, unit string, stock int) uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	item := model.InventoryItem{
		ID:          uuid.New(),
		Kind:        kind,
		Name:        name,
		Price:       decimal.RequireFromString(price),
		PricingUnit: unit,
		Stock:       stock,
	}
	l.st.inventory[item.ID] = item
	return item.ID
}

func (l *ledger) stock(id uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.inventory[id].Stock
}

func (l *ledger) request(t *testing.T, id string) model.Request {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.st.requests[uuid.MustParse(id)]
	if !ok {
		t.Fatalf("request %s not stored", id)
	}
	return r
}

func (l *ledger) payment(t *testing.T, id string) model.Payment {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.st.payments[uuid.MustParse(id)]
	if !ok {
		t.Fatalf("payment %s not stored", id)
	}
	return p
}

func (l *ledger) paymentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.st.payments)
}

func (l *ledger) schedulesFor(requestID string) []model.Schedule {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Schedule
	for _, s := range l.st.schedules {
		if s.RequestID.String() == requestID {
			out = append(out, s)
		}
	}
	return out
}

func (l *ledger) addSchedule(s model.Schedule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.schedules[s.ID] = s
}

func (l *ledger) schedule(id string) model.Schedule {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.schedules[id]
}

func (l *ledger) auditActions(entityID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, a := range l.st.audits {
		if entityID == "" || a.EntityID == entityID {
			out = append(out, a.Action)
		}
	}
	return out
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// --- RequestRepository ---

type fakeRequestRepo struct{ *ledger }

func (r fakeRequestRepo) Create(ctx context.Context, req *model.Request) error {
	return r.do(ctx, func() error {
		if req.ID == uuid.Nil {
			req.ID = uuid.New()
		}
		req.CreatedAt = r.tick()
		req.UpdatedAt = req.CreatedAt
		for i := range req.Items {
			if req.Items[i].ID == uuid.Nil {
				req.Items[i].ID = uuid.New()
			}
			req.Items[i].RequestID = req.ID
		}
		stored := *req
		stored.Items = append([]model.RequestItem(nil), req.Items...)
		r.st.requests[req.ID] = stored
		return nil
	})
}

func (r fakeRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var out *model.Request
	err := r.do(ctx, func() error {
		req, ok := r.st.requests[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		req.Items = append([]model.RequestItem(nil), req.Items...)
		out = &req
		return nil
	})
	return out, err
}

func (r fakeRequestRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	return r.FindByID(ctx, id)
}

func (r fakeRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status, adminNotes string) error {
	return r.do(ctx, func() error {
		req, ok := r.st.requests[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		req.Status = status
		req.AdminNotes = adminNotes
		req.UpdatedAt = r.tick()
		r.st.requests[id] = req
		return nil
	})
}

func (r fakeRequestRepo) List(ctx context.Context, status string, page, limit int) ([]model.Request, int64, error) {
	var out []model.Request
	var total int64
	err := r.do(ctx, func() error {
		var all []model.Request
		for _, req := range r.st.requests {
			if status == "" || req.Status == status {
				all = append(all, req)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
		total = int64(len(all))
		out = paginate(all, page, limit)
		return nil
	})
	return out, total, err
}

// --- PaymentRepository ---

type fakePaymentRepo struct{ *ledger }

func (r fakePaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	return r.do(ctx, func() error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.CreatedAt = r.tick()
		p.UpdatedAt = p.CreatedAt
		r.st.payments[p.ID] = *p
		return nil
	})
}

func (r fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var out *model.Payment
	err := r.do(ctx, func() error {
		p, ok := r.st.payments[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r fakePaymentRepo) FindByRef(ctx context.Context, ref string) (*model.Payment, error) {
	var out *model.Payment
	err := r.do(ctx, func() error {
		for _, p := range r.st.payments {
			if p.Ref() == ref && ref != "" {
				out = &p
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
	return out, err
}

func (r fakePaymentRepo) FindByRefForUpdate(ctx context.Context, ref string) (*model.Payment, error) {
	return r.FindByRef(ctx, ref)
}

func (r fakePaymentRepo) FindLatestByRequestID(ctx context.Context, requestID uuid.UUID) (*model.Payment, error) {
	var out *model.Payment
	err := r.do(ctx, func() error {
		for _, p := range r.st.payments {
			if p.RequestID != requestID {
				continue
			}
			if out == nil || p.CreatedAt.After(out.CreatedAt) {
				cp := p
				out = &cp
			}
		}
		if out == nil {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return out, err
}

func (r fakePaymentRepo) AssignTransaction(ctx context.Context, id uuid.UUID, ref, token, redirectURL string) error {
	return r.do(ctx, func() error {
		if r.assignFailures > 0 {
			r.assignFailures--
			return errConnReset
		}
		p, ok := r.st.payments[id]
		if !ok || p.TransactionRef != nil {
			return repository.ErrTransactionRefAssigned
		}
		for _, other := range r.st.payments {
			if other.Ref() == ref {
				return gorm.ErrDuplicatedKey
			}
		}
		p.TransactionRef = &ref
		p.GatewayToken = token
		p.GatewayRedirectURL = redirectURL
		r.st.payments[id] = p
		return nil
	})
}

func (r fakePaymentRepo) Update(ctx context.Context, p *model.Payment) error {
	return r.do(ctx, func() error {
		if _, ok := r.st.payments[p.ID]; !ok {
			return gorm.ErrRecordNotFound
		}
		p.UpdatedAt = r.tick()
		r.st.payments[p.ID] = *p
		return nil
	})
}

func (r fakePaymentRepo) UpdateClientStatus(ctx context.Context, ref, status string) error {
	return r.do(ctx, func() error {
		for id, p := range r.st.payments {
			if p.Ref() == ref && ref != "" {
				p.ClientStatus = status
				r.st.payments[id] = p
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
}

// --- ScheduleRepository ---

type fakeScheduleRepo struct{ *ledger }

func (r fakeScheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	return r.do(ctx, func() error {
		if _, ok := r.st.schedules[s.ID]; ok {
			return gorm.ErrDuplicatedKey
		}
		for _, other := range r.st.schedules {
			if other.RequestID == s.RequestID {
				return gorm.ErrDuplicatedKey
			}
		}
		s.CreatedAt = r.tick()
		s.UpdatedAt = s.CreatedAt
		r.st.schedules[s.ID] = *s
		return nil
	})
}

func (r fakeScheduleRepo) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	var out *model.Schedule
	err := r.do(ctx, func() error {
		s, ok := r.st.schedules[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

func (r fakeScheduleRepo) FindByRequestID(ctx context.Context, requestID uuid.UUID) (*model.Schedule, error) {
	var out *model.Schedule
	err := r.do(ctx, func() error {
		for _, s := range r.st.schedules {
			if s.RequestID == requestID {
				out = &s
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
	return out, err
}

func (r fakeScheduleRepo) LockSequence(ctx context.Context, prefix string) error {
	return nil
}

func (r fakeScheduleRepo) MaxSequence(ctx context.Context, prefix string) (int, error) {
	var max int
	err := r.do(ctx, func() error {
		for id := range r.st.schedules {
			if !strings.HasPrefix(id, prefix) {
				continue
			}
			n, convErr := strconv.Atoi(strings.TrimPrefix(id, prefix))
			if convErr == nil && n > max {
				max = n
			}
		}
		return nil
	})
	return max, err
}

func (r fakeScheduleRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.do(ctx, func() error {
		s, ok := r.st.schedules[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		s.Status = status
		s.UpdatedAt = r.tick()
		r.st.schedules[id] = s
		return nil
	})
}

func (r fakeScheduleRepo) CompleteEnded(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.do(ctx, func() error {
		for id, s := range r.st.schedules {
			if s.Status == model.ScheduleStatusScheduled && s.EndDate.Before(now) {
				s.Status = model.ScheduleStatusCompleted
				r.st.schedules[id] = s
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r fakeScheduleRepo) List(ctx context.Context, status string, page, limit int) ([]model.Schedule, int64, error) {
	var out []model.Schedule
	var total int64
	err := r.do(ctx, func() error {
		var all []model.Schedule
		for _, s := range r.st.schedules {
			if status == "" || s.Status == status {
				all = append(all, s)
			}
		}
		sort.Slice(all, func(i, j int) bool {
			if len(all[i].ID) != len(all[j].ID) {
				return len(all[i].ID) > len(all[j].ID)
			}
			return all[i].ID > all[j].ID
		})
		total = int64(len(all))
		out = paginate(all, page, limit)
		return nil
	})
	return out, total, err
}

// --- InventoryRepository ---

type fakeInventoryRepo struct{ *ledger }

func (r fakeInventoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	var out *model.InventoryItem
	err := r.do(ctx, func() error {
		item, ok := r.st.inventory[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &item
		return nil
	})
	return out, err
}

func (r fakeInventoryRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	return r.FindByID(ctx, id)
}

func (r fakeInventoryRepo) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	return r.do(ctx, func() error {
		item, ok := r.st.inventory[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		item.Stock = stock
		r.st.inventory[id] = item
		return nil
	})
}

func (r fakeInventoryRepo) List(ctx context.Context, kind, search string, page, limit int) ([]model.InventoryItem, int64, error) {
	var out []model.InventoryItem
	var total int64
	err := r.do(ctx, func() error {
		var all []model.InventoryItem
		for _, item := range r.st.inventory {
			if kind != "" && item.Kind != kind {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(search)) {
				continue
			}
			all = append(all, item)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
		total = int64(len(all))
		out = paginate(all, page, limit)
		return nil
	})
	return out, total, err
}

func (r fakeInventoryRepo) Create(ctx context.Context, item *model.InventoryItem) error {
	return r.do(ctx, func() error {
		item.ID = uuid.New()
		item.CreatedAt = r.tick()
		item.UpdatedAt = item.CreatedAt
		r.st.inventory[item.ID] = *item
		return nil
	})
}

func (r fakeInventoryRepo) Update(ctx context.Context, item *model.InventoryItem) error {
	return r.do(ctx, func() error {
		if _, ok := r.st.inventory[item.ID]; !ok {
			return gorm.ErrRecordNotFound
		}
		item.UpdatedAt = r.tick()
		r.st.inventory[item.ID] = *item
		return nil
	})
}

func (r fakeInventoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.do(ctx, func() error {
		delete(r.st.inventory, id)
		return nil
	})
}

// --- AuditRepository ---

type fakeAuditRepo struct{ *ledger }

func (r fakeAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	return r.do(ctx, func() error {
		entry.ID = uuid.New()
		entry.CreatedAt = r.tick()
		r.st.audits = append(r.st.audits, *entry)
		return nil
	})
}

func (r fakeAuditRepo) List(ctx context.Context, filter repository.AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	var total int64
	err := r.do(ctx, func() error {
		var all []model.AuditLog
		for i := len(r.st.audits) - 1; i >= 0; i-- {
			a := r.st.audits[i]
			switch {
			case filter.EntityID != "" && a.EntityID != filter.EntityID:
			case filter.Action != "" && a.Action != filter.Action:
			case filter.ActorID != "" && a.ActorID != filter.ActorID:
			default:
				all = append(all, a)
			}
		}
		total = int64(len(all))
		out = paginate(all, page, limit)
		return nil
	})
	return out, total, err
}

// --- events ---

type recordedEvent struct {
	name string
	data map[string]interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(name string, data map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{name: name, data: data})
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

// --- harness ---

type harness struct {
	ledger     *ledger
	gateway    *mocks.MockGateway
	events     *recordingPublisher
	requests   RequestService
	schedules  ScheduleService
	reconciler ReconciliationService
	audits     AuditService
	inventory  InventoryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)

	l := newLedger()
	gw := mocks.NewMockGateway(ctrl)
	events := &recordingPublisher{}

	requestRepo := fakeRequestRepo{l}
	paymentRepo := fakePaymentRepo{l}
	scheduleRepo := fakeScheduleRepo{l}
	inventoryRepo := fakeInventoryRepo{l}
	auditRepo := fakeAuditRepo{l}

	schedules := NewScheduleService(scheduleRepo, requestRepo, auditRepo, l, events)
	requests := NewRequestService(requestRepo, paymentRepo, scheduleRepo, inventoryRepo, auditRepo, l, gw, events).(*requestService)
	requests.now = l.now
	return &harness{
		ledger:     l,
		gateway:    gw,
		events:     events,
		requests:   requests,
		schedules:  schedules,
		reconciler: NewReconciliationService(paymentRepo, requestRepo, auditRepo, l, schedules, gw, events),
		audits:     NewAuditService(auditRepo),
		inventory:  NewInventoryService(inventoryRepo, auditRepo, l, events),
	}
}

// expectCreate makes the gateway accept any number of transactions.
func (h *harness) expectCreate() {
	h.gateway.EXPECT().
		CreateTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req payment.TransactionRequest) (*payment.Transaction, error) {
			return &payment.Transaction{Token: "snap-" + req.OrderID, RedirectURL: "https://pay.example/" + req.OrderID}, nil
		}).
		AnyTimes()
}

// nestedRetry holds the outcome of a retry issued while the first gateway call
// was still in flight.
type nestedRetry struct {
	resp CreateRequestResponse
	err  error
}

// expectSlowFirstCreate answers gateway calls like expectCreate, but the first
// call retries the same request's payment before it returns, as a client would
// while the gateway is slow. beforeRetry, if set, runs just before the retry.
func (h *harness) expectSlowFirstCreate(t *testing.T, beforeRetry func()) *nestedRetry {
	nested := &nestedRetry{}
	calls := 0
	h.gateway.EXPECT().
		CreateTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req payment.TransactionRequest) (*payment.Transaction, error) {
			calls++
			if calls == 1 {
				if beforeRetry != nil {
					beforeRetry()
				}
				pay := h.ledger.payment(t, req.OrderID[:36])
				nested.resp, nested.err = h.requests.RetryPayment(ctx, pay.RequestID.String(), requester)
			}
			return &payment.Transaction{Token: "snap-" + req.OrderID, RedirectURL: "https://pay.example/" + req.OrderID}, nil
		}).
		AnyTimes()
	return nested
}

func (h *harness) acceptSignatures() {
	h.gateway.EXPECT().VerifySignature(gomock.Any()).Return(true).AnyTimes()
}

// create submits a one-line request for itemID and returns the response.
func (h *harness) create(t *testing.T, kind string, itemID uuid.UUID, qty int, start, end string) CreateRequestResponse {
	t.Helper()
	resp, err := h.requests.CreateRequest(context.Background(), CreateRequestDTO{
		RequesterID: "user-1",
		StartDate:   start,
		EndDate:     end,
		LineItems:   []LineItemRequest{{ItemKind: kind, ItemID: itemID.String(), Quantity: qty}},
		CustomerContact: &CustomerContact{
			Name:  "Dana",
			Email: "dana@example.com",
		},
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	return resp
}

func (h *harness) orderID(t *testing.T, paymentID string) string {
	t.Helper()
	ref := h.ledger.payment(t, paymentID).Ref()
	if ref == "" {
		t.Fatalf("payment %s has no transaction reference", paymentID)
	}
	return ref
}

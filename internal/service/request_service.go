package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"labbooking/internal/model"
	"labbooking/internal/payment"
	"labbooking/internal/repository"
	"labbooking/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type LineItemRequest struct {
	ItemKind string `json:"itemKind"`
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type CustomerContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreateRequestDTO struct {
	RequesterID     string            `json:"requesterId"`
	Notes           string            `json:"notes"`
	StartDate       string            `json:"startDate"` // YYYY-MM-DD or RFC3339
	EndDate         string            `json:"endDate"`
	LineItems       []LineItemRequest `json:"lineItems"`
	CustomerContact *CustomerContact  `json:"customerContact,omitempty"`
}

type CreateRequestResponse struct {
	RequestID          string  `json:"requestId"`
	PaymentID          string  `json:"paymentId"`
	TotalAmount        float64 `json:"totalAmount"`
	GatewaySnapToken   string  `json:"gatewaySnapToken"`
	GatewayRedirectURL string  `json:"gatewayRedirectUrl"`
}

type AdminDecisionDTO struct {
	AdminNotes string `json:"adminNotes"`
}

// Caller is the authenticated subject invoking an operation. Admins act on
// any request; everyone else only on requests they submitted.
type Caller struct {
	ID    string
	Admin bool
}

func (c Caller) owns(r *model.Request) bool {
	return c.Admin || (c.ID != "" && r.RequesterID == c.ID)
}

type RequestFilter struct {
	Status string
	Page   int
	Limit  int
}

type RequestItemResponse struct {
	ItemKind  string  `json:"itemKind"`
	ItemID    string  `json:"itemId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Subtotal  float64 `json:"subtotal"`
}

type RequestResponse struct {
	ID          string                `json:"id"`
	RequesterID string                `json:"requesterId"`
	Notes       string                `json:"notes"`
	StartDate   string                `json:"startDate"`
	EndDate     string                `json:"endDate"`
	Status      string                `json:"status"`
	AdminNotes  string                `json:"adminNotes"`
	TotalAmount float64               `json:"totalAmount"`
	LineItems   []RequestItemResponse `json:"lineItems"`
	CreatedAt   string                `json:"createdAt"`
}

// paymentOpenWindow bounds how long a payment without an order reference is
// treated as still being opened at the gateway. It must exceed the gateway
// call timeout.
const paymentOpenWindow = 2 * time.Minute

// --- Interface ---

// RequestService owns a borrowing request from submission until its payment
// clears, and the administrator decisions after that.
type RequestService interface {
	CreateRequest(ctx context.Context, req CreateRequestDTO) (CreateRequestResponse, error)
	RetryPayment(ctx context.Context, id string, caller Caller) (CreateRequestResponse, error)
	ApproveRequest(ctx context.Context, id, actorID, adminNotes string) error
	RejectRequest(ctx context.Context, id, actorID, adminNotes string) error
	CancelRequest(ctx context.Context, id string, caller Caller, adminNotes string) error
	GetRequest(ctx context.Context, id string, caller Caller) (RequestResponse, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]RequestResponse, int64, error)
}

type requestService struct {
	requestRepo   repository.RequestRepository
	paymentRepo   repository.PaymentRepository
	scheduleRepo  repository.ScheduleRepository
	inventoryRepo repository.InventoryRepository
	auditRepo     repository.AuditRepository
	txManager     repository.TransactionManager
	gateway       payment.Gateway
	events        EventPublisher
	now           func() time.Time
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	paymentRepo repository.PaymentRepository,
	scheduleRepo repository.ScheduleRepository,
	inventoryRepo repository.InventoryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	gateway payment.Gateway,
	events EventPublisher,
) RequestService {
	return &requestService{
		requestRepo:   requestRepo,
		paymentRepo:   paymentRepo,
		scheduleRepo:  scheduleRepo,
		inventoryRepo: inventoryRepo,
		auditRepo:     auditRepo,
		txManager:     txManager,
		gateway:       gateway,
		events:        events,
		now:           time.Now,
	}
}

// --- Implementation ---

type parsedLine struct {
	kind     string
	itemID   uuid.UUID
	quantity int
}

func (s *requestService) CreateRequest(ctx context.Context, req CreateRequestDTO) (CreateRequestResponse, error) {
	log.Printf("[request][service] create start requester_id=%q items=%d", req.RequesterID, len(req.LineItems))

	requesterID := strings.TrimSpace(req.RequesterID)
	if requesterID == "" {
		return CreateRequestResponse{}, validationError("requesterId is required")
	}
	if strings.TrimSpace(req.StartDate) == "" {
		return CreateRequestResponse{}, validationError("startDate is required")
	}
	if strings.TrimSpace(req.EndDate) == "" {
		return CreateRequestResponse{}, validationError("endDate is required")
	}
	if len(req.LineItems) == 0 {
		return CreateRequestResponse{}, validationError("lineItems must contain at least one item")
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return CreateRequestResponse{}, validationError("invalid startDate: " + err.Error())
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return CreateRequestResponse{}, validationError("invalid endDate: " + err.Error())
	}
	if endDate.Before(startDate) {
		return CreateRequestResponse{}, validationError("endDate must not be before startDate")
	}

	lines := make([]parsedLine, 0, len(req.LineItems))
	for i, li := range req.LineItems {
		kind := strings.ToLower(strings.TrimSpace(li.ItemKind))
		if kind != model.ItemKindTool && kind != model.ItemKindReagent {
			return CreateRequestResponse{}, validationError(fmt.Sprintf("lineItems[%d]: itemKind must be tool or reagent", i))
		}
		itemID, parseErr := uuid.Parse(strings.TrimSpace(li.ItemID))
		if parseErr != nil {
			return CreateRequestResponse{}, validationError(fmt.Sprintf("lineItems[%d]: invalid itemId", i))
		}
		if li.Quantity <= 0 {
			return CreateRequestResponse{}, validationError(fmt.Sprintf("lineItems[%d]: quantity must be positive", i))
		}
		lines = append(lines, parsedLine{kind: kind, itemID: itemID, quantity: li.Quantity})
	}

	var contact CustomerContact
	if req.CustomerContact != nil {
		contact = *req.CustomerContact
	}

	days := RentalDays(startDate, endDate)
	request := model.Request{
		RequesterID:   requesterID,
		Notes:         req.Notes,
		StartDate:     startDate,
		EndDate:       endDate,
		Status:        model.RequestStatusPendingPayment,
		CustomerName:  contact.Name,
		CustomerEmail: contact.Email,
		CustomerPhone: contact.Phone,
	}
	var pay model.Payment
	var gatewayItems []payment.LineItem

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request.ID = uuid.Nil
		request.Items = nil
		items, lockErr := s.reserveStock(txCtx, lines)
		if lockErr != nil {
			return lockErr
		}

		total := decimal.Zero
		gatewayItems = gatewayItems[:0]
		for i, line := range lines {
			item := items[line.itemID]
			subtotal := lineSubtotal(item, line.quantity, days)
			total = total.Add(subtotal)
			request.Items = append(request.Items, model.RequestItem{
				Position:  i,
				ItemKind:  line.kind,
				ItemID:    line.itemID,
				Quantity:  line.quantity,
				UnitPrice: item.Price,
				Subtotal:  subtotal,
			})
			gatewayItems = append(gatewayItems, payment.LineItem{
				ID:       item.ID.String(),
				Name:     item.Name,
				Price:    unitCharge(item, days),
				Quantity: line.quantity,
			})
		}

		if createErr := s.requestRepo.Create(txCtx, &request); createErr != nil {
			return fmt.Errorf("failed to create request: %w", createErr)
		}

		pay = model.Payment{
			RequestID: request.ID,
			Amount:    total,
			Status:    model.PaymentStatusPending,
		}
		if createErr := s.paymentRepo.Create(txCtx, &pay); createErr != nil {
			return fmt.Errorf("failed to create payment: %w", createErr)
		}

		return writeAudit(txCtx, s.auditRepo, requesterID, model.ActionCreateRequest, request.ID.String(), "request", map[string]interface{}{
			"payment_id": pay.ID.String(),
			"amount":     total.StringFixed(2),
			"days":       days,
			"items":      len(lines),
		})
	})
	if err != nil {
		log.Printf("[request][service] create failed requester_id=%s err=%v", requesterID, err)
		return CreateRequestResponse{}, err
	}
	log.Printf("[request][service] request stored request_id=%s payment_id=%s amount=%s", request.ID, pay.ID, pay.Amount.StringFixed(2))

	publish(s.events, event{EventRequestCreated, map[string]interface{}{
		"request_id": request.ID.String(),
		"status":     request.Status,
	}})

	return s.openTransaction(ctx, &request, &pay, gatewayItems)
}

// RetryPayment opens a fresh payment for a request whose previous attempt
// failed or never reached the gateway.
func (s *requestService) RetryPayment(ctx context.Context, id string, caller Caller) (CreateRequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return CreateRequestResponse{}, validationError("invalid request id")
	}

	var request *model.Request
	var pay model.Payment
	now := s.now()
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		request, findErr = s.requestRepo.FindByIDForUpdate(txCtx, requestID)
		if findErr != nil {
			return storeError("request", findErr)
		}
		if !caller.owns(request) {
			return fmt.Errorf("%w: request %s", ErrNotFound, id)
		}
		if request.Status != model.RequestStatusPendingPayment {
			return invalidStateError("request is " + request.Status + ", not awaiting payment")
		}

		latest, findErr := s.paymentRepo.FindLatestByRequestID(txCtx, requestID)
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return storeError("payment", findErr)
		}
		if latest != nil {
			switch {
			case latest.Status == model.PaymentStatusPaid:
				return invalidStateError("request is already paid")
			case latest.Status == model.PaymentStatusPending && latest.TransactionRef != nil:
				return invalidStateError("payment " + latest.ID.String() + " is still pending at the gateway")
			case latest.Status == model.PaymentStatusPending && now.Sub(latest.CreatedAt) < paymentOpenWindow:
				return invalidStateError("payment " + latest.ID.String() + " is still being opened, try again later")
			}
		}

		total := decimal.Zero
		for _, item := range request.Items {
			total = total.Add(item.Subtotal)
		}

		pay = model.Payment{
			RequestID: request.ID,
			Amount:    total,
			Status:    model.PaymentStatusPending,
		}
		if createErr := s.paymentRepo.Create(txCtx, &pay); createErr != nil {
			return fmt.Errorf("failed to create payment: %w", createErr)
		}

		return writeAudit(txCtx, s.auditRepo, caller.ID, model.ActionRetryPayment, request.ID.String(), "request", map[string]interface{}{
			"payment_id": pay.ID.String(),
			"amount":     total.StringFixed(2),
		})
	})
	if err != nil {
		log.Printf("[request][service] retry-payment failed request_id=%s err=%v", id, err)
		return CreateRequestResponse{}, err
	}

	days := RentalDays(request.StartDate, request.EndDate)
	gatewayItems := make([]payment.LineItem, 0, len(request.Items))
	for _, item := range request.Items {
		perUnit := item.UnitPrice
		if item.Quantity > 0 {
			perUnit = item.Subtotal.Div(decimal.NewFromInt(int64(item.Quantity)))
		}
		name := item.ItemKind
		if inv, findErr := s.inventoryRepo.FindByID(ctx, item.ItemID); findErr == nil {
			name = inv.Name
		}
		gatewayItems = append(gatewayItems, payment.LineItem{
			ID:       item.ItemID.String(),
			Name:     fmt.Sprintf("%s (%dd)", name, days),
			Price:    perUnit,
			Quantity: item.Quantity,
		})
	}

	return s.openTransaction(ctx, request, &pay, gatewayItems)
}

// openTransaction registers the payment with the gateway and stores the order
// reference. A gateway failure leaves the payment pending; the caller retries.
func (s *requestService) openTransaction(ctx context.Context, request *model.Request, pay *model.Payment, items []payment.LineItem) (CreateRequestResponse, error) {
	resp := CreateRequestResponse{
		RequestID:   request.ID.String(),
		PaymentID:   pay.ID.String(),
		TotalAmount: pay.Amount.InexactFloat64(),
	}

	if s.gateway == nil {
		log.Printf("[request][service] gateway not configured request_id=%s", request.ID)
		return resp, upstreamError("cannot open payment", payment.ErrGatewayNotConfigured)
	}

	orderID := payment.FormatOrderID(pay.ID.String(), time.Now())
	tx, err := s.gateway.CreateTransaction(ctx, payment.TransactionRequest{
		OrderID: orderID,
		Amount:  pay.Amount,
		Items:   items,
		Customer: payment.Customer{
			Name:  request.CustomerName,
			Email: request.CustomerEmail,
			Phone: request.CustomerPhone,
		},
	})
	if err != nil {
		log.Printf("[request][service] gateway create failed request_id=%s payment_id=%s err=%v", request.ID, pay.ID, err)
		return resp, upstreamError("payment gateway unavailable", err)
	}

	assign := func() error {
		return s.paymentRepo.AssignTransaction(ctx, pay.ID, orderID, tx.Token, tx.RedirectURL)
	}
	if err := assign(); err != nil {
		if errors.Is(err, repository.ErrTransactionRefAssigned) {
			return resp, invalidStateError("payment already has a gateway transaction")
		}
		log.Printf("[request][service] storing order reference failed, retrying once payment_id=%s err=%v", pay.ID, err)
		if err = assign(); err != nil {
			return resp, upstreamError("failed to store order reference", err)
		}
	}

	ref := orderID
	pay.TransactionRef = &ref
	pay.GatewayToken = tx.Token
	pay.GatewayRedirectURL = tx.RedirectURL

	log.Printf("[request][service] create success request_id=%s payment_id=%s order_id=%s", request.ID, pay.ID, orderID)
	resp.GatewaySnapToken = tx.Token
	resp.GatewayRedirectURL = tx.RedirectURL
	return resp, nil
}

func (s *requestService) ApproveRequest(ctx context.Context, id, actorID, adminNotes string) error {
	return s.decide(ctx, id, Caller{ID: actorID, Admin: true}, model.RequestStatusApproved, adminNotes)
}

func (s *requestService) RejectRequest(ctx context.Context, id, actorID, adminNotes string) error {
	if strings.TrimSpace(adminNotes) == "" {
		return validationError("adminNotes is required to reject a request")
	}
	return s.decide(ctx, id, Caller{ID: actorID, Admin: true}, model.RequestStatusRejected, adminNotes)
}

// CancelRequest is open to the requester and to administrators.
func (s *requestService) CancelRequest(ctx context.Context, id string, caller Caller, adminNotes string) error {
	return s.decide(ctx, id, caller, model.RequestStatusCancelled, adminNotes)
}

// decide applies one administrator or requester transition as a single
// transaction: status change, stock release, schedule cancellation and audit.
func (s *requestService) decide(ctx context.Context, id string, caller Caller, target, adminNotes string) error {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return validationError("invalid request id")
	}
	actorID := caller.ID
	log.Printf("[request][service] %s start request_id=%s actor=%q", target, id, actorID)

	var from string
	var cancelledSchedule string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, findErr := s.requestRepo.FindByIDForUpdate(txCtx, requestID)
		if findErr != nil {
			return storeError("request", findErr)
		}
		if !caller.owns(request) {
			return fmt.Errorf("%w: request %s", ErrNotFound, id)
		}
		from = request.Status

		switch target {
		case model.RequestStatusApproved, model.RequestStatusRejected:
			if request.Status != model.RequestStatusPendingReview {
				return invalidStateError("request is " + request.Status + ", expected " + model.RequestStatusPendingReview)
			}
		case model.RequestStatusCancelled:
			if request.IsTerminal() {
				return invalidStateError("request is already " + request.Status)
			}
		}

		notes := adminNotes
		if strings.TrimSpace(notes) == "" {
			notes = request.AdminNotes
		}
		if updateErr := s.requestRepo.UpdateStatus(txCtx, requestID, target, notes); updateErr != nil {
			return fmt.Errorf("failed to update request status: %w", updateErr)
		}

		if target == model.RequestStatusRejected || target == model.RequestStatusCancelled {
			if releaseErr := s.releaseStock(txCtx, request.Items); releaseErr != nil {
				return releaseErr
			}
			var cancelErr error
			cancelledSchedule, cancelErr = s.cancelSchedule(txCtx, requestID)
			if cancelErr != nil {
				return cancelErr
			}
		}

		return writeAudit(txCtx, s.auditRepo, actorID, actionFor(target), id, "request", map[string]interface{}{
			"from":        from,
			"to":          target,
			"admin_notes": notes,
		})
	})
	if err != nil {
		log.Printf("[request][service] %s failed request_id=%s err=%v", target, id, err)
		return err
	}
	log.Printf("[request][service] %s success request_id=%s from=%s", target, id, from)

	events := []event{{EventRequestStatusChanged, map[string]interface{}{
		"request_id": id,
		"from":       from,
		"status":     target,
	}}}
	if cancelledSchedule != "" {
		events = append(events, event{EventScheduleUpdated, map[string]interface{}{
			"schedule_id": cancelledSchedule,
			"status":      model.ScheduleStatusCancelled,
		}})
	}
	publish(s.events, events...)
	return nil
}

func actionFor(target string) string {
	switch target {
	case model.RequestStatusApproved:
		return model.ActionApproveRequest
	case model.RequestStatusRejected:
		return model.ActionRejectRequest
	default:
		return model.ActionCancelRequest
	}
}

// reserveStock locks every referenced inventory row in id order and takes the
// requested quantities out of stock.
func (s *requestService) reserveStock(ctx context.Context, lines []parsedLine) (map[uuid.UUID]*model.InventoryItem, error) {
	wanted := make(map[uuid.UUID]int, len(lines))
	kinds := make(map[uuid.UUID]string, len(lines))
	for _, line := range lines {
		wanted[line.itemID] += line.quantity
		if prev, ok := kinds[line.itemID]; ok && prev != line.kind {
			return nil, validationError("item " + line.itemID.String() + " listed with conflicting kinds")
		}
		kinds[line.itemID] = line.kind
	}

	items := make(map[uuid.UUID]*model.InventoryItem, len(wanted))
	for _, itemID := range sortedIDs(wanted) {
		item, err := s.inventoryRepo.FindByIDForUpdate(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kinds[itemID], itemID)
			}
			return nil, upstreamError("failed to lock inventory", err)
		}
		if item.Kind != kinds[itemID] {
			return nil, validationError("item " + itemID.String() + " is a " + item.Kind + ", not a " + kinds[itemID])
		}
		if item.Stock < wanted[itemID] {
			return nil, validationError(fmt.Sprintf("insufficient stock for %s (available: %d, requested: %d)", item.Name, item.Stock, wanted[itemID]))
		}
		if err := s.inventoryRepo.UpdateStock(ctx, itemID, item.Stock-wanted[itemID]); err != nil {
			return nil, fmt.Errorf("failed to reserve stock for %s: %w", item.Name, err)
		}
		items[itemID] = item
	}
	return items, nil
}

// releaseStock puts the quantities of a rejected or cancelled request back.
func (s *requestService) releaseStock(ctx context.Context, lines []model.RequestItem) error {
	returned := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		returned[line.ItemID] += line.Quantity
	}

	for _, itemID := range sortedIDs(returned) {
		item, err := s.inventoryRepo.FindByIDForUpdate(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("[request][service] release skipped, item gone item_id=%s", itemID)
				continue
			}
			return upstreamError("failed to lock inventory", err)
		}
		if err := s.inventoryRepo.UpdateStock(ctx, itemID, item.Stock+returned[itemID]); err != nil {
			return fmt.Errorf("failed to release stock for %s: %w", item.Name, err)
		}
	}
	return nil
}

// cancelSchedule cancels the request's visit if it is still scheduled and
// returns its id, or "" when nothing changed.
func (s *requestService) cancelSchedule(ctx context.Context, requestID uuid.UUID) (string, error) {
	if s.scheduleRepo == nil {
		return "", nil
	}
	schedule, err := s.scheduleRepo.FindByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", upstreamError("failed to load schedule", err)
	}
	if schedule.Status != model.ScheduleStatusScheduled {
		return "", nil
	}
	if err := s.scheduleRepo.UpdateStatus(ctx, schedule.ID, model.ScheduleStatusCancelled); err != nil {
		return "", fmt.Errorf("failed to cancel schedule %s: %w", schedule.ID, err)
	}
	return schedule.ID, nil
}

func (s *requestService) GetRequest(ctx context.Context, id string, caller Caller) (RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return RequestResponse{}, validationError("invalid request id")
	}
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return RequestResponse{}, storeError("request", err)
	}
	if !caller.owns(request) {
		return RequestResponse{}, fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	return toRequestResponse(*request), nil
}

func (s *requestService) ListRequests(ctx context.Context, filter RequestFilter) ([]RequestResponse, int64, error) {
	p := pagination.Normalize(filter.Page, filter.Limit)
	filter.Page, filter.Limit = p.Page, p.Limit

	requests, total, err := s.requestRepo.List(ctx, filter.Status, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch requests: %w", err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toRequestResponse(r))
	}
	return result, total, nil
}

// --- Helpers ---

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func sortedIDs(m map[uuid.UUID]int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func toRequestResponse(r model.Request) RequestResponse {
	resp := RequestResponse{
		ID:          r.ID.String(),
		RequesterID: r.RequesterID,
		Notes:       r.Notes,
		StartDate:   r.StartDate.Format("2006-01-02"),
		EndDate:     r.EndDate.Format("2006-01-02"),
		Status:      r.Status,
		AdminNotes:  r.AdminNotes,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		LineItems:   make([]RequestItemResponse, 0, len(r.Items)),
	}

	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Subtotal)
		resp.LineItems = append(resp.LineItems, RequestItemResponse{
			ItemKind:  item.ItemKind,
			ItemID:    item.ItemID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.InexactFloat64(),
			Subtotal:  item.Subtotal.InexactFloat64(),
		})
	}
	resp.TotalAmount = total.InexactFloat64()
	return resp
}

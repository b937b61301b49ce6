package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"labbooking/internal/model"
	"labbooking/internal/payment"
	"labbooking/internal/repository"

	"github.com/shopspring/decimal"
)

// Reconcile outcomes.
const (
	OutcomeApplied   = "applied"   // payment status moved
	OutcomeRefreshed = "refreshed" // still pending, gateway status recorded
	OutcomeDuplicate = "duplicate" // same terminal status again
	OutcomeIgnored   = "ignored"   // terminal payment asked to move elsewhere
)

type ReconcileResult struct {
	OrderID       string `json:"orderId"`
	PaymentID     string `json:"paymentId"`
	PaymentStatus string `json:"paymentStatus"`
	RequestStatus string `json:"requestStatus,omitempty"`
	ScheduleID    string `json:"scheduleId,omitempty"`
	Outcome       string `json:"outcome"`
}

type ClientStatusResponse struct {
	OrderID      string `json:"orderId"`
	Status       string `json:"status"`
	ClientStatus string `json:"clientStatus"`
}

// ReconcileStats counts outcomes since process start.
type ReconcileStats struct {
	Applied   int64 `json:"applied"`
	Refreshed int64 `json:"refreshed"`
	Duplicate int64 `json:"duplicate"`
	Ignored   int64 `json:"ignored"`
}

type ReconciliationService interface {
	HandleNotification(ctx context.Context, n payment.Notification) (ReconcileResult, error)
	ReportClientStatus(ctx context.Context, orderID, status string) (ClientStatusResponse, error)
	Resync(ctx context.Context, orderID string) (ReconcileResult, error)
	Stats() ReconcileStats
}

type reconciliationService struct {
	paymentRepo  repository.PaymentRepository
	requestRepo  repository.RequestRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	materializer ScheduleMaterializer
	gateway      payment.Gateway
	events       EventPublisher

	applied, refreshed, duplicate, ignored atomic.Int64
}

func NewReconciliationService(
	paymentRepo repository.PaymentRepository,
	requestRepo repository.RequestRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	materializer ScheduleMaterializer,
	gateway payment.Gateway,
	events EventPublisher,
) ReconciliationService {
	return &reconciliationService{
		paymentRepo:  paymentRepo,
		requestRepo:  requestRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		materializer: materializer,
		gateway:      gateway,
		events:       events,
	}
}

// MapGatewayStatus translates a gateway transaction/fraud status pair into a
// payment status.
//
//	capture + accept        -> paid
//	capture + anything else -> pending
//	settlement              -> paid
//	cancel, deny, expire    -> failed
//	pending                 -> pending
//
// Refund, chargeback and authorize notices return ErrUntrackedStatus.
func MapGatewayStatus(transactionStatus, fraudStatus string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "capture":
		if strings.EqualFold(strings.TrimSpace(fraudStatus), "accept") {
			return model.PaymentStatusPaid, nil
		}
		return model.PaymentStatusPending, nil
	case "settlement":
		return model.PaymentStatusPaid, nil
	case "cancel", "deny", "expire":
		return model.PaymentStatusFailed, nil
	case "pending":
		return model.PaymentStatusPending, nil
	case "refund", "partial_refund", "chargeback", "partial_chargeback", "authorize":
		return "", fmt.Errorf("%w: %s", ErrUntrackedStatus, transactionStatus)
	}
	return "", validationError("unknown transaction status " + transactionStatus)
}

// HandleNotification verifies and applies a gateway push notification.
func (s *reconciliationService) HandleNotification(ctx context.Context, n payment.Notification) (ReconcileResult, error) {
	log.Printf("[payment][reconcile] notification order_id=%s status=%s fraud=%s", n.OrderID, n.TransactionStatus, n.FraudStatus)

	if strings.TrimSpace(n.OrderID) == "" {
		return ReconcileResult{}, validationError("order_id is required")
	}
	if s.gateway != nil && !s.gateway.VerifySignature(n) {
		log.Printf("[payment][reconcile] signature mismatch order_id=%s", n.OrderID)
		return ReconcileResult{}, ErrInvalidSignature
	}
	return s.reconcile(ctx, n)
}

// Resync pulls the gateway's current view of orderID and applies it as if it
// had arrived by webhook.
func (s *reconciliationService) Resync(ctx context.Context, orderID string) (ReconcileResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return ReconcileResult{}, validationError("order id is required")
	}
	if s.gateway == nil {
		return ReconcileResult{}, upstreamError("cannot resync", payment.ErrGatewayNotConfigured)
	}

	n, err := s.gateway.TransactionStatus(ctx, orderID)
	if err != nil {
		log.Printf("[payment][reconcile] resync status check failed order_id=%s err=%v", orderID, err)
		return ReconcileResult{}, upstreamError("payment gateway unavailable", err)
	}
	if n.OrderID == "" {
		n.OrderID = orderID
	}
	return s.reconcile(ctx, *n)
}

func (s *reconciliationService) reconcile(ctx context.Context, n payment.Notification) (ReconcileResult, error) {
	target, err := MapGatewayStatus(n.TransactionStatus, n.FraudStatus)
	if errors.Is(err, ErrUntrackedStatus) {
		return s.acknowledge(ctx, n)
	}
	if err != nil {
		log.Printf("[payment][reconcile] rejected order_id=%s err=%v", n.OrderID, err)
		return ReconcileResult{}, err
	}

	var result ReconcileResult
	var requestID, requestFrom string
	var scheduleCreated bool

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		result = ReconcileResult{OrderID: n.OrderID}
		requestID, requestFrom, scheduleCreated = "", "", false

		pay, err := s.paymentRepo.FindByRefForUpdate(txCtx, n.OrderID)
		if err != nil {
			return storeError("payment "+n.OrderID, err)
		}
		result.PaymentID = pay.ID.String()
		result.PaymentStatus = pay.Status

		if pay.IsTerminal() {
			if pay.Status == target {
				result.Outcome = OutcomeDuplicate
				return nil
			}
			result.Outcome = OutcomeIgnored
			log.Printf("[payment][reconcile] anomaly: terminal payment asked to move order_id=%s status=%s requested=%s", n.OrderID, pay.Status, target)
			return writeAudit(txCtx, s.auditRepo, "", model.ActionPaymentAnomaly, pay.ID.String(), "payment", map[string]interface{}{
				"order_id":           n.OrderID,
				"status":             pay.Status,
				"requested_status":   target,
				"transaction_status": n.TransactionStatus,
			})
		}

		checkGrossAmount(n, pay)
		pay.GatewayStatus = n.TransactionStatus
		pay.FraudStatus = n.FraudStatus

		if target == model.PaymentStatusPending {
			result.Outcome = OutcomeRefreshed
			return s.paymentRepo.Update(txCtx, pay)
		}

		pay.Status = target
		if target == model.PaymentStatusPaid {
			paidAt := time.Now()
			pay.PaidAt = &paidAt
		}
		if err := s.paymentRepo.Update(txCtx, pay); err != nil {
			return upstreamError("failed to update payment", err)
		}
		result.Outcome = OutcomeApplied
		result.PaymentStatus = target

		if target == model.PaymentStatusFailed {
			return writeAudit(txCtx, s.auditRepo, "", model.ActionPaymentFailed, pay.ID.String(), "payment", map[string]interface{}{
				"order_id":           n.OrderID,
				"transaction_status": n.TransactionStatus,
			})
		}

		if err := writeAudit(txCtx, s.auditRepo, "", model.ActionPaymentPaid, pay.ID.String(), "payment", map[string]interface{}{
			"order_id":     n.OrderID,
			"amount":       pay.Amount.StringFixed(2),
			"payment_type": n.PaymentType,
		}); err != nil {
			return err
		}

		request, err := s.requestRepo.FindByIDForUpdate(txCtx, pay.RequestID)
		if err != nil {
			return storeError("request", err)
		}
		requestID = request.ID.String()
		result.RequestStatus = request.Status

		switch request.Status {
		case model.RequestStatusPendingPayment:
			requestFrom = request.Status
			if err := s.requestRepo.UpdateStatus(txCtx, request.ID, model.RequestStatusPendingReview, request.AdminNotes); err != nil {
				return upstreamError("failed to update request", err)
			}
			result.RequestStatus = model.RequestStatusPendingReview
		case model.RequestStatusPendingReview, model.RequestStatusApproved:
			// Only a settled payment moves a request past pending_payment, so
			// this request was already paid by another attempt.
			log.Printf("[payment][reconcile] anomaly: second payment settled request_id=%s order_id=%s", request.ID, n.OrderID)
			return writeAudit(txCtx, s.auditRepo, "", model.ActionPaymentAnomaly, pay.ID.String(), "payment", map[string]interface{}{
				"order_id":       n.OrderID,
				"request_id":     request.ID.String(),
				"request_status": request.Status,
				"reason":         "request already paid, refund required",
			})
		default:
			log.Printf("[payment][reconcile] anomaly: payment settled for %s request request_id=%s order_id=%s", request.Status, request.ID, n.OrderID)
			return writeAudit(txCtx, s.auditRepo, "", model.ActionPaymentAnomaly, pay.ID.String(), "payment", map[string]interface{}{
				"order_id":       n.OrderID,
				"request_id":     request.ID.String(),
				"request_status": request.Status,
				"reason":         "paid after request closed, refund required",
			})
		}

		scheduleID, created, err := s.materializer.Materialize(txCtx, request.ID)
		if err != nil {
			return err
		}
		result.ScheduleID, scheduleCreated = scheduleID, created
		return nil
	})
	if err != nil {
		log.Printf("[payment][reconcile] failed order_id=%s err=%v", n.OrderID, err)
		return ReconcileResult{}, err
	}

	s.count(result.Outcome)
	log.Printf("[payment][reconcile] done order_id=%s outcome=%s payment_status=%s schedule_id=%s", n.OrderID, result.Outcome, result.PaymentStatus, result.ScheduleID)

	if result.Outcome == OutcomeApplied {
		events := []event{{EventPaymentUpdated, map[string]interface{}{
			"payment_id": result.PaymentID,
			"order_id":   result.OrderID,
			"status":     result.PaymentStatus,
		}}}
		if requestFrom != "" {
			events = append(events, event{EventRequestStatusChanged, map[string]interface{}{
				"request_id": requestID,
				"from":       requestFrom,
				"status":     result.RequestStatus,
			}})
		}
		if scheduleCreated {
			events = append(events, event{EventScheduleCreated, map[string]interface{}{
				"schedule_id": result.ScheduleID,
				"status":      model.ScheduleStatusScheduled,
			}})
		}
		publish(s.events, events...)
	}
	return result, nil
}

// acknowledge records a notice the lifecycle does not act on so the gateway
// stops redelivering it. The payment is left as is.
func (s *reconciliationService) acknowledge(ctx context.Context, n payment.Notification) (ReconcileResult, error) {
	var result ReconcileResult
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		pay, err := s.paymentRepo.FindByRefForUpdate(txCtx, n.OrderID)
		if err != nil {
			return storeError("payment "+n.OrderID, err)
		}
		result = ReconcileResult{
			OrderID:       n.OrderID,
			PaymentID:     pay.ID.String(),
			PaymentStatus: pay.Status,
			Outcome:       OutcomeIgnored,
		}
		return writeAudit(txCtx, s.auditRepo, "", model.ActionPaymentNotice, pay.ID.String(), "payment", map[string]interface{}{
			"order_id":           n.OrderID,
			"status":             pay.Status,
			"transaction_status": n.TransactionStatus,
		})
	})
	if err != nil {
		log.Printf("[payment][reconcile] notice not recorded order_id=%s err=%v", n.OrderID, err)
		return ReconcileResult{}, err
	}

	s.count(result.Outcome)
	log.Printf("[payment][reconcile] notice acknowledged order_id=%s transaction_status=%s payment_status=%s", n.OrderID, n.TransactionStatus, result.PaymentStatus)
	return result, nil
}

// ReportClientStatus stores what the customer's browser saw. It is a hint for
// support staff and never moves the payment.
func (s *reconciliationService) ReportClientStatus(ctx context.Context, orderID, status string) (ClientStatusResponse, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if strings.TrimSpace(orderID) == "" {
		return ClientStatusResponse{}, validationError("order id is required")
	}
	if status == "" {
		return ClientStatusResponse{}, validationError("status is required")
	}
	if len(status) > 30 {
		return ClientStatusResponse{}, validationError("status is too long")
	}

	if err := s.paymentRepo.UpdateClientStatus(ctx, orderID, status); err != nil {
		return ClientStatusResponse{}, storeError("payment "+orderID, err)
	}
	pay, err := s.paymentRepo.FindByRef(ctx, orderID)
	if err != nil {
		return ClientStatusResponse{}, storeError("payment "+orderID, err)
	}

	log.Printf("[payment][client] reported order_id=%s client_status=%s status=%s", orderID, status, pay.Status)
	return ClientStatusResponse{OrderID: orderID, Status: pay.Status, ClientStatus: status}, nil
}

func (s *reconciliationService) Stats() ReconcileStats {
	return ReconcileStats{
		Applied:   s.applied.Load(),
		Refreshed: s.refreshed.Load(),
		Duplicate: s.duplicate.Load(),
		Ignored:   s.ignored.Load(),
	}
}

func (s *reconciliationService) count(outcome string) {
	switch outcome {
	case OutcomeApplied:
		s.applied.Add(1)
	case OutcomeRefreshed:
		s.refreshed.Add(1)
	case OutcomeDuplicate:
		s.duplicate.Add(1)
	case OutcomeIgnored:
		s.ignored.Add(1)
	}
}

// checkGrossAmount logs when the gateway reports a different amount than the
// one stored. The stored amount stays authoritative.
func checkGrossAmount(n payment.Notification, pay *model.Payment) {
	if n.GrossAmount == "" {
		return
	}
	gross, err := decimal.NewFromString(n.GrossAmount)
	if err != nil {
		log.Printf("[payment][reconcile] unparsable gross_amount order_id=%s gross_amount=%q", n.OrderID, n.GrossAmount)
		return
	}
	if !gross.Equal(pay.Amount.Round(0)) && !gross.Equal(pay.Amount) {
		log.Printf("[payment][reconcile] anomaly: amount mismatch order_id=%s stored=%s gross=%s", n.OrderID, pay.Amount.StringFixed(2), gross.StringFixed(2))
	}
}

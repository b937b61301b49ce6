package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"labbooking/internal/model"
	"labbooking/internal/repository"
	"labbooking/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScheduleFilter struct {
	Status string
	Page   int
	Limit  int
}

type ScheduleResponse struct {
	ID        string `json:"id"`
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	CreatedAt string `json:"createdAt"`
}

// ScheduleMaterializer turns a paid Request into its lab visit. It joins the
// caller's transaction when there is one.
type ScheduleMaterializer interface {
	Materialize(ctx context.Context, requestID uuid.UUID) (scheduleID string, created bool, err error)
}

type ScheduleService interface {
	ScheduleMaterializer
	SweepCompleted(ctx context.Context, now time.Time) (int64, error)
	SetStatus(ctx context.Context, id, status, actorID string) error
	GetSchedule(ctx context.Context, id string) (ScheduleResponse, error)
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]ScheduleResponse, int64, error)
	RunSweeper(ctx context.Context, interval time.Duration)
}

type scheduleService struct {
	scheduleRepo repository.ScheduleRepository
	requestRepo  repository.RequestRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	events       EventPublisher
}

func NewScheduleService(
	scheduleRepo repository.ScheduleRepository,
	requestRepo repository.RequestRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
) ScheduleService {
	return &scheduleService{
		scheduleRepo: scheduleRepo,
		requestRepo:  requestRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		events:       events,
	}
}

// Materialize returns the existing schedule for requestID or creates the next
// SCH- id under the sequence lock. The request row is locked first so two
// callers for the same request serialize before the existence check.
func (s *scheduleService) Materialize(ctx context.Context, requestID uuid.UUID) (string, bool, error) {
	var scheduleID string
	var created bool

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		scheduleID, created = "", false

		request, err := s.requestRepo.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			return storeError("request", err)
		}

		existing, err := s.scheduleRepo.FindByRequestID(txCtx, requestID)
		if err == nil {
			scheduleID = existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return upstreamError("failed to load schedule", err)
		}

		if err := s.scheduleRepo.LockSequence(txCtx, model.ScheduleIDPrefix); err != nil {
			return upstreamError("failed to lock schedule sequence", err)
		}
		last, err := s.scheduleRepo.MaxSequence(txCtx, model.ScheduleIDPrefix)
		if err != nil {
			return upstreamError("failed to read schedule sequence", err)
		}

		schedule := model.Schedule{
			ID:        fmt.Sprintf("%s%06d", model.ScheduleIDPrefix, last+1),
			RequestID: request.ID,
			Status:    model.ScheduleStatusScheduled,
			StartDate: request.StartDate,
			EndDate:   request.EndDate,
		}
		if err := s.scheduleRepo.Create(txCtx, &schedule); err != nil {
			if repository.IsUniqueViolation(err) {
				return invalidStateError("schedule already exists for request " + requestID.String())
			}
			return fmt.Errorf("failed to create schedule: %w", err)
		}

		if err := writeAudit(txCtx, s.auditRepo, "", model.ActionCreateSchedule, schedule.ID, "schedule", map[string]interface{}{
			"request_id": requestID.String(),
			"start_date": request.StartDate.Format("2006-01-02"),
			"end_date":   request.EndDate.Format("2006-01-02"),
		}); err != nil {
			return err
		}

		scheduleID, created = schedule.ID, true
		return nil
	})
	if err != nil {
		log.Printf("[schedule][service] materialize failed request_id=%s err=%v", requestID, err)
		return "", false, err
	}
	if created {
		log.Printf("[schedule][service] materialized schedule_id=%s request_id=%s", scheduleID, requestID)
	}
	return scheduleID, created, nil
}

// SweepCompleted flips every scheduled visit whose end date has passed.
func (s *scheduleService) SweepCompleted(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.scheduleRepo.CompleteEnded(ctx, now)
	if err != nil {
		return 0, upstreamError("failed to sweep schedules", err)
	}
	if n > 0 {
		log.Printf("[schedule][sweeper] completed=%d", n)
		publish(s.events, event{EventScheduleUpdated, map[string]interface{}{
			"status":    model.ScheduleStatusCompleted,
			"completed": n,
		}})
	}
	return n, nil
}

// SetStatus is an administrative override; any of the four states may be set
// from any other.
func (s *scheduleService) SetStatus(ctx context.Context, id, status, actorID string) error {
	status = strings.TrimSpace(status)
	if !model.IsValidScheduleStatus(status) {
		return validationError("status must be one of scheduled, completed, cancelled, no_show")
	}

	var from string
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		schedule, err := s.scheduleRepo.FindByID(txCtx, id)
		if err != nil {
			return storeError("schedule", err)
		}
		from = schedule.Status

		if err := s.scheduleRepo.UpdateStatus(txCtx, id, status); err != nil {
			return storeError("schedule", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateSchedule, id, "schedule", map[string]interface{}{
			"from": from,
			"to":   status,
		})
	})
	if err != nil {
		log.Printf("[schedule][service] set-status failed schedule_id=%s status=%s err=%v", id, status, err)
		return err
	}

	log.Printf("[schedule][service] set-status schedule_id=%s from=%s to=%s", id, from, status)
	publish(s.events, event{EventScheduleUpdated, map[string]interface{}{
		"schedule_id": id,
		"from":        from,
		"status":      status,
	}})
	return nil
}

func (s *scheduleService) GetSchedule(ctx context.Context, id string) (ScheduleResponse, error) {
	s.sweepQuietly(ctx)

	schedule, err := s.scheduleRepo.FindByID(ctx, id)
	if err != nil {
		return ScheduleResponse{}, storeError("schedule", err)
	}
	return toScheduleResponse(*schedule), nil
}

func (s *scheduleService) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]ScheduleResponse, int64, error) {
	p := pagination.Normalize(filter.Page, filter.Limit)
	filter.Page, filter.Limit = p.Page, p.Limit
	if filter.Status != "" && !model.IsValidScheduleStatus(filter.Status) {
		return nil, 0, validationError("unknown schedule status " + filter.Status)
	}

	s.sweepQuietly(ctx)

	schedules, total, err := s.scheduleRepo.List(ctx, filter.Status, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch schedules: %w", err)
	}

	result := make([]ScheduleResponse, 0, len(schedules))
	for _, sc := range schedules {
		result = append(result, toScheduleResponse(sc))
	}
	return result, total, nil
}

// RunSweeper sweeps on every tick until ctx is done.
func (s *scheduleService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Println("[schedule][sweeper] disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[schedule][sweeper] started interval=%s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[schedule][sweeper] stopped")
			return
		case now := <-ticker.C:
			if _, err := s.SweepCompleted(ctx, now); err != nil {
				log.Printf("[schedule][sweeper] sweep failed err=%v", err)
			}
		}
	}
}

// sweepQuietly runs a sweep before a read; a failed sweep does not fail the read.
func (s *scheduleService) sweepQuietly(ctx context.Context) {
	if _, err := s.SweepCompleted(ctx, time.Now()); err != nil {
		log.Printf("[schedule][service] read-path sweep failed err=%v", err)
	}
}

func toScheduleResponse(sc model.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:        sc.ID,
		RequestID: sc.RequestID.String(),
		Status:    sc.Status,
		StartDate: sc.StartDate.Format("2006-01-02"),
		EndDate:   sc.EndDate.Format("2006-01-02"),
		CreatedAt: sc.CreatedAt.Format(time.RFC3339),
	}
}

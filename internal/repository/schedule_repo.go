package repository

import (
	"context"
	"time"

	"labbooking/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.Schedule) error
	FindByID(ctx context.Context, id string) (*model.Schedule, error)
	FindByRequestID(ctx context.Context, requestID uuid.UUID) (*model.Schedule, error)
	LockSequence(ctx context.Context, prefix string) error
	MaxSequence(ctx context.Context, prefix string) (int, error)
	UpdateStatus(ctx context.Context, id, status string) error
	CompleteEnded(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context, status string, page, limit int) ([]model.Schedule, int64, error)
}

type scheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *model.Schedule) error {
	return GetDB(ctx, r.db).Create(schedule).Error
}

func (r *scheduleRepository) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	var schedule model.Schedule
	if err := GetDB(ctx, r.db).First(&schedule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) FindByRequestID(ctx context.Context, requestID uuid.UUID) (*model.Schedule, error) {
	var schedule model.Schedule
	if err := GetDB(ctx, r.db).Where("request_id = ?", requestID).First(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// LockSequence takes a transaction-scoped advisory lock on prefix. It must be
// called inside a transaction; the lock is released on commit or rollback.
func (r *scheduleRepository) LockSequence(ctx context.Context, prefix string) error {
	return GetDB(ctx, r.db).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error
}

// MaxSequence returns the highest numeric suffix among ids starting with prefix, or 0.
func (r *scheduleRepository) MaxSequence(ctx context.Context, prefix string) (int, error) {
	var max int
	err := GetDB(ctx, r.db).Model(&model.Schedule{}).
		Select("COALESCE(MAX(CAST(SUBSTRING(id FROM ?) AS INTEGER)), 0)", len(prefix)+1).
		Where("id LIKE ?", prefix+"%").
		Scan(&max).Error
	return max, err
}

func (r *scheduleRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res := GetDB(ctx, r.db).Model(&model.Schedule{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CompleteEnded flips every still-scheduled visit whose end date is before now.
func (r *scheduleRepository) CompleteEnded(ctx context.Context, now time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Schedule{}).
		Where("status = ? AND end_date < ?", model.ScheduleStatusScheduled, now).
		Update("status", model.ScheduleStatusCompleted)
	return res.RowsAffected, res.Error
}

func (r *scheduleRepository) List(ctx context.Context, status string, page, limit int) ([]model.Schedule, int64, error) {
	var schedules []model.Schedule
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Schedule{})
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := orderBySequence(db).Offset(offset).Limit(limit).Find(&schedules).Error; err != nil {
		return nil, 0, err
	}

	return schedules, total, nil
}

// orderBySequence sorts schedules newest first by their numeric suffix. Ids
// share one zero-padded prefix, so a longer id is always a later one.
func orderBySequence(db *gorm.DB) *gorm.DB {
	return db.Order("LENGTH(id) DESC, id DESC")
}

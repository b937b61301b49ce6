package repository

import (
	"context"
	"fmt"
	"time"

	"labbooking/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsRepository interface {
	CountRequestsByStatus(ctx context.Context, start, end time.Time) ([]model.StatusCount, error)
	PaidRevenue(ctx context.Context, start, end time.Time) (decimal.Decimal, int64, error)
	TopItems(ctx context.Context, start, end time.Time, limit int) ([]model.ItemRanking, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) CountRequestsByStatus(ctx context.Context, start, end time.Time) ([]model.StatusCount, error) {
	var counts []model.StatusCount
	if err := GetDB(ctx, r.db).Model(&model.Request{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", start, end).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	return counts, nil
}

// PaidRevenue sums payments whose settlement time falls in the window.
func (r *statisticsRepository) PaidRevenue(ctx context.Context, start, end time.Time) (decimal.Decimal, int64, error) {
	var result struct {
		Value decimal.Decimal
		Count int64
	}
	if err := GetDB(ctx, r.db).Model(&model.Payment{}).
		Select("COALESCE(SUM(amount), 0) as value, COUNT(*) as count").
		Where("status = ? AND paid_at >= ? AND paid_at <= ?", model.PaymentStatusPaid, start, end).
		Scan(&result).Error; err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to sum paid payments: %w", err)
	}
	return result.Value, result.Count, nil
}

// TopItems ranks items on requests that were paid for, i.e. awaiting review or approved.
func (r *statisticsRepository) TopItems(ctx context.Context, start, end time.Time, limit int) ([]model.ItemRanking, error) {
	var rankings []model.ItemRanking
	if err := GetDB(ctx, r.db).Table("request_items").
		Select("inventory_items.id as item_id, inventory_items.name as item_name, inventory_items.kind as item_kind, SUM(request_items.quantity) as total_quantity, SUM(request_items.subtotal) as total_value").
		Joins("JOIN inventory_items ON inventory_items.id = request_items.item_id").
		Joins("JOIN requests ON requests.id = request_items.request_id").
		Where("requests.status IN ? AND requests.created_at >= ? AND requests.created_at <= ?",
			[]string{model.RequestStatusPendingReview, model.RequestStatusApproved}, start, end).
		Group("inventory_items.id, inventory_items.name, inventory_items.kind").
		Order("total_quantity DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top items: %w", err)
	}
	return rankings, nil
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusCount is the number of requests created in a window that are currently in Status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// ItemRanking represents a catalog item ranked by borrowed quantity
type ItemRanking struct {
	ItemID        string          `json:"item_id"`
	ItemName      string          `json:"item_name"`
	ItemKind      string          `json:"item_kind"`
	TotalQuantity int             `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// StatisticsResponse aggregates lifecycle totals for the dashboard
type StatisticsResponse struct {
	RequestsByStatus   map[string]int64 `json:"requests_by_status"`
	TotalRequests      int64            `json:"total_requests"`
	PaidPayments       int64            `json:"paid_payments"`
	PaidRevenue        decimal.Decimal  `json:"paid_revenue"`
	TopItems           []ItemRanking    `json:"top_items"`
	TimeRangeStartDate time.Time        `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time        `json:"time_range_end_date"`
}

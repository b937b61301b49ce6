package service

import (
	"math"
	"time"

	"labbooking/internal/model"

	"github.com/shopspring/decimal"
)

// RentalDays returns the number of billable days between start and end,
// rounding partial days up, never less than one.
func RentalDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// unitCharge is what one unit of item costs for the whole borrowing period.
func unitCharge(item *model.InventoryItem, days int) decimal.Decimal {
	if item.IsTimeRated() {
		return item.Price.Mul(decimal.NewFromInt(int64(days)))
	}
	return item.Price
}

// lineSubtotal is price × quantity, times days for time-rated items.
func lineSubtotal(item *model.InventoryItem, quantity, days int) decimal.Decimal {
	return unitCharge(item, days).Mul(decimal.NewFromInt(int64(quantity)))
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemKind Enum Simulation
const (
	ItemKindTool    = "tool"
	ItemKindReagent = "reagent"
)

// PricingUnit constants. Tools are rented per day, reagents are consumed per unit.
const (
	PricingPerDay  = "day"
	PricingPerUnit = "unit"
)

// InventoryItem is a borrowable tool or reagent together with its availability counter.
type InventoryItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind        string          `gorm:"type:varchar(20);not null;index" json:"kind"` // tool, reagent
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	PricingUnit string          `gorm:"type:varchar(10);not null;default:'unit'" json:"pricing_unit"`
	Stock       int             `gorm:"type:int;default:0;not null;check:stock >= 0" json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// IsTimeRated reports whether the price is charged per day of the borrowing period.
func (i *InventoryItem) IsTimeRated() bool {
	return i.PricingUnit == PricingPerDay
}

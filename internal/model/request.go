package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestStatus constants
const (
	RequestStatusPendingPayment = "pending_payment"
	RequestStatusPendingReview  = "pending_review"
	RequestStatusApproved       = "approved"
	RequestStatusRejected       = "rejected"
	RequestStatusCancelled      = "cancelled"
)

// Request is a customer's submission to borrow tools and reagents for a date range.
type Request struct {
	ID            uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequesterID   string        `gorm:"type:varchar(64);not null;index" json:"requester_id"`
	Notes         string        `gorm:"type:text" json:"notes"`
	StartDate     time.Time     `gorm:"not null" json:"start_date"`
	EndDate       time.Time     `gorm:"not null" json:"end_date"`
	Status        string        `gorm:"type:varchar(30);not null;default:'pending_payment';index" json:"status"`
	AdminNotes    string        `gorm:"type:text" json:"admin_notes"`
	CustomerName  string        `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail string        `gorm:"type:varchar(255)" json:"customer_email"`
	CustomerPhone string        `gorm:"type:varchar(30)" json:"customer_phone"`
	Items         []RequestItem `gorm:"foreignKey:RequestID" json:"items"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsTerminal reports whether no further lifecycle transition is allowed.
func (r *Request) IsTerminal() bool {
	switch r.Status {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled:
		return true
	}
	return false
}

// RequestItem is one ordered line of a Request. UnitPrice is a snapshot of the
// catalog price at creation time.
type RequestItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	Position  int             `gorm:"type:int;not null" json:"position"`
	ItemKind  string          `gorm:"type:varchar(20);not null" json:"item_kind"` // tool, reagent
	ItemID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"item_id"`
	Quantity  int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
}

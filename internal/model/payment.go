package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus constants
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Payment is the monetary transaction tied to a Request. TransactionRef is the
// order reference shared with the gateway and is written at most once.
type Payment struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	Request            *Request        `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"-"`
	Amount             decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Status             string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TransactionRef     *string         `gorm:"type:varchar(64);uniqueIndex" json:"transaction_ref"`
	GatewayToken       string          `gorm:"type:varchar(255)" json:"gateway_token"`
	GatewayRedirectURL string          `gorm:"type:text" json:"gateway_redirect_url"`
	GatewayStatus      string          `gorm:"type:varchar(30)" json:"gateway_status"`
	FraudStatus        string          `gorm:"type:varchar(30)" json:"fraud_status"`
	ClientStatus       string          `gorm:"type:varchar(30)" json:"client_status"` // reported by the browser, informational only
	PaidAt             *time.Time      `json:"paid_at"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the payment has settled one way or the other.
func (p Payment) IsTerminal() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusFailed
}

// Ref returns the order reference or an empty string when not yet assigned.
func (p Payment) Ref() string {
	if p.TransactionRef == nil {
		return ""
	}
	return *p.TransactionRef
}

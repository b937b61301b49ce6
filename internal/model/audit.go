package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateRequest  = "CREATE_REQUEST"
	ActionApproveRequest = "APPROVE_REQUEST"
	ActionRejectRequest  = "REJECT_REQUEST"
	ActionCancelRequest  = "CANCEL_REQUEST"
	ActionRetryPayment   = "RETRY_PAYMENT"
	ActionPaymentPaid    = "PAYMENT_PAID"
	ActionPaymentFailed  = "PAYMENT_FAILED"
	ActionCreateSchedule = "CREATE_SCHEDULE"
	ActionUpdateSchedule = "UPDATE_SCHEDULE_STATUS"
	ActionPaymentAnomaly = "PAYMENT_ANOMALY"
	ActionPaymentNotice  = "PAYMENT_GATEWAY_NOTICE"
	ActionCreateItem     = "CREATE_ITEM"
	ActionUpdateItem     = "UPDATE_ITEM"
	ActionDeleteItem     = "DELETE_ITEM"
)

// AuditLog tracks Who, What, and When for lifecycle transitions
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID    string    `gorm:"type:varchar(64);index" json:"actor_id"` // empty for gateway callbacks
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(64);index" json:"entity_id"`
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string    `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleStatus constants
const (
	ScheduleStatusScheduled = "scheduled"
	ScheduleStatusCompleted = "completed"
	ScheduleStatusCancelled = "cancelled"
	ScheduleStatusNoShow    = "no_show"
)

// ScheduleIDPrefix prefixes every generated schedule id (SCH-000001, SCH-000002, ...).
const ScheduleIDPrefix = "SCH-"

// Schedule is the lab visit materialized once a Request's payment clears.
// The unique index on RequestID keeps it one-to-one with the Request.
type Schedule struct {
	ID        string    `gorm:"type:varchar(20);primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"request_id"`
	Request   *Request  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"-"`
	Status    string    `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null;index" json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsValidScheduleStatus reports whether status is one of the four schedule states.
func IsValidScheduleStatus(status string) bool {
	switch status {
	case ScheduleStatusScheduled, ScheduleStatusCompleted, ScheduleStatusCancelled, ScheduleStatusNoShow:
		return true
	}
	return false
}

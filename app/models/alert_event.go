package models

import "time"

const (
	AlertActionOpened   = "opened"
	AlertActionFixed    = "fixed"
	AlertActionResolved = "resolved"
)

// AlertEvent is an append-only audit record for alert transitions. Rows are
// never updated or deleted; the alert's mutable status can be reinterpreted
// later without losing what happened and when.
type AlertEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AlertID      uint      `gorm:"not null;index" json:"alert_id"`
	Actor        string    `gorm:"type:varchar(100);not null" json:"actor"`
	Action       string    `gorm:"type:varchar(20);not null" json:"action"`
	MetadataJSON string    `gorm:"type:text" json:"metadata_json,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

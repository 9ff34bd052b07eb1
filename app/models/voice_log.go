package models

import "time"

// VoiceLog is a transcribed work note with an estimated billable value.
type VoiceLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	ProjectID      uint      `gorm:"not null;index" json:"project_id"`
	Summary        string    `gorm:"type:text" json:"summary"`
	EstimatedCents int64     `gorm:"not null;default:0" json:"estimated_cents"`
	Billable       bool      `gorm:"not null;default:true" json:"billable"`
	InvoiceID      *uint     `gorm:"default:null;index" json:"invoice_id,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

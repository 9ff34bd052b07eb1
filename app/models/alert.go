package models

import (
	"time"
)

const (
	AlertTypeReceiptUnbilled        = "receipt_unbilled"
	AlertTypeScopeApprovedNoInvoice = "scope_approved_no_invoice"
	AlertTypeVoiceLogNoInvoice      = "voice_log_no_invoice"
	AlertTypeInvoiceNotSent         = "invoice_not_sent"

	AlertStatusOpen     = "open"
	AlertStatusFixed    = "fixed"
	AlertStatusResolved = "resolved"
)

// Alert is a detected instance of potentially unbilled or unresolved work.
// At most one open alert may exist per (user, type, source); the repository
// enforces this with a conditional insert, backed by the ux_alerts_open_source
// generated-column index in the migrations.
type Alert struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UUID           string     `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID         uint       `gorm:"not null;index:ix_alerts_user_type_source,priority:1" json:"user_id"`
	Type           string     `gorm:"type:varchar(40);not null;index:ix_alerts_user_type_source,priority:2" json:"type"`
	SourceID       uint       `gorm:"not null;index:ix_alerts_user_type_source,priority:3" json:"source_id"`
	AmountCents    int64      `gorm:"not null;default:0" json:"amount_cents"`
	Status         string     `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	ReasonResolved string     `gorm:"type:varchar(40);default:''" json:"reason_resolved,omitempty"`
	ResolvedNote   string     `gorm:"type:text" json:"resolved_note,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ResolvedAt     *time.Time `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
}

// IsOpen reports whether the alert can still be fixed or resolved.
func (a *Alert) IsOpen() bool {
	return a.Status == AlertStatusOpen
}

// IsTerminal reports whether the alert reached a final state.
func (a *Alert) IsTerminal() bool {
	return a.Status == AlertStatusFixed || a.Status == AlertStatusResolved
}

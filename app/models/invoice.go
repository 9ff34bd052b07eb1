package models

import "time"

const (
	InvoiceStatusDraft = "draft"
	InvoiceStatusSent  = "sent"
	InvoiceStatusPaid  = "paid"
	InvoiceStatusVoid  = "void"
)

// Invoice carries only the state the reconciliation engine needs; rendering,
// numbering and delivery belong to the CRUD side of the platform.
type Invoice struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	ProjectID         uint       `gorm:"not null;index" json:"project_id"`
	Status            string     `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	TotalCents        int64      `gorm:"not null;default:0" json:"total_cents"`
	ProviderPaymentID string     `gorm:"type:varchar(191);default:''" json:"provider_payment_id,omitempty"`
	SentAt            *time.Time `gorm:"type:timestamp;default:null" json:"sent_at,omitempty"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	LineItemSourceReceipt  = "receipt"
	LineItemSourceScope    = "scope"
	LineItemSourceVoiceLog = "voice_log"
	LineItemSourceManual   = "manual"
)

// InvoiceLineItem references the source item it bills so detection rules can
// answer "does any invoice line reference this scope/receipt/voice log".
type InvoiceLineItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	InvoiceID   uint      `gorm:"not null;index" json:"invoice_id"`
	Description string    `gorm:"type:text;not null" json:"description"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	SourceKind  string    `gorm:"type:varchar(20);not null;default:'manual';index:ix_invoice_line_items_source,priority:1" json:"source_kind"`
	SourceID    uint      `gorm:"not null;default:0;index:ix_invoice_line_items_source,priority:2" json:"source_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

package models

import "time"

// Receipt is a scanned expense the contractor may bill on to a client.
// InvoiceID is set once the receipt is attached to an invoice; the attach is
// a conditional update on invoice_id IS NULL.
type Receipt struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ProjectID   uint      `gorm:"not null;index" json:"project_id"`
	Merchant    string    `gorm:"type:varchar(200)" json:"merchant"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	Billable    bool      `gorm:"not null;default:true;index" json:"billable"`
	InvoiceID   *uint     `gorm:"default:null;index" json:"invoice_id,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsLinked reports whether the receipt already belongs to an invoice.
func (r *Receipt) IsLinked() bool {
	return r.InvoiceID != nil
}

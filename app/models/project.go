package models

import "time"

// Project groups receipts, scope proofs and invoices for one client job.
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name"`
	ClientEmail string    `gorm:"type:varchar(200)" json:"client_email"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

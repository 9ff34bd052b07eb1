package models

import "time"

// User is the contractor who owns alerts, approval requests and invoices.
// Authentication lives upstream; the engine only needs the ownership id and
// the contact fields notifications are addressed to.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150)" json:"name"`
	Email     string    `gorm:"uniqueIndex;type:varchar(200)" json:"email"`
	Phone     string    `gorm:"type:varchar(40)" json:"phone,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

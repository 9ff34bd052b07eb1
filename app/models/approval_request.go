package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusDeclined = "declined"
	ApprovalStatusExpired  = "expired"

	// ApprovalTokenTTL is fixed at creation and never extended.
	ApprovalTokenTTL = 24 * time.Hour
)

// ApprovalRequest (scope proof) is a token-gated, time-boxed request for a
// client to approve extra work before it is invoiced. The token is the only
// capability boundary for the client-facing flow.
type ApprovalRequest struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UUID               string     `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID             uint       `gorm:"not null;index" json:"user_id"`
	ProjectID          uint       `gorm:"not null;index" json:"project_id"`
	Description        string     `gorm:"type:text;not null" json:"description" validate:"required,min=3,max=2000"`
	EstimatedCostCents int64      `gorm:"not null" json:"estimated_cost_cents" validate:"required,gt=0"`
	PhotoURLsJSON      string     `gorm:"type:text" json:"photo_urls_json,omitempty"`
	ClientEmail        string     `gorm:"type:varchar(200);not null" json:"client_email" validate:"required,email"`
	ApprovalToken      string     `gorm:"type:varchar(100);uniqueIndex" json:"-"`
	TokenExpiresAt     time.Time  `gorm:"not null;index" json:"token_expires_at"`
	Status             string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	InvoiceLineItemID  *uint      `gorm:"default:null" json:"invoice_line_item_id,omitempty"`
	DecidedAt          *time.Time `gorm:"type:timestamp;default:null" json:"decided_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *ApprovalRequest) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

// GenerateApprovalToken creates an unguessable token and pins the expiry
// window relative to now.
func (r *ApprovalRequest) GenerateApprovalToken() error {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	r.ApprovalToken = hex.EncodeToString(b)
	r.TokenExpiresAt = time.Now().Add(ApprovalTokenTTL)
	return nil
}

// IsPending reports whether the request can still be decided.
func (r *ApprovalRequest) IsPending() bool {
	return r.Status == ApprovalStatusPending
}

// IsPastExpiry reports whether the token window has elapsed at the given time.
func (r *ApprovalRequest) IsPastExpiry(now time.Time) bool {
	return !now.Before(r.TokenExpiresAt)
}

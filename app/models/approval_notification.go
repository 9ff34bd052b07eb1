package models

import "time"

const (
	ApprovalNotificationReminder = "reminder"
	ApprovalNotificationExpiry   = "expiry"

	// ApprovalNotificationMaxAttempts bounds transient-failure retries so a
	// persistently failing provider cannot cause a reminder storm.
	ApprovalNotificationMaxAttempts = 3
)

// ApprovalNotification marks that a reminder or expiry notification exists for
// an approval request. The (request, type) unique index is what makes
// overlapping scheduler sweeps send each notification at most once; the row is
// created before the send is attempted.
type ApprovalNotification struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	ApprovalRequestID uint       `gorm:"not null;index:ux_approval_notifications_request_type,unique,priority:1" json:"approval_request_id"`
	Type              string     `gorm:"type:varchar(20);not null;index:ux_approval_notifications_request_type,unique,priority:2" json:"type"`
	SendAttempts      int        `gorm:"not null;default:0" json:"send_attempts"`
	LastError         string     `gorm:"type:text" json:"last_error,omitempty"`
	SentAt            *time.Time `gorm:"type:timestamp;default:null" json:"sent_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ShouldRetrySend reports whether another delivery attempt is allowed.
func (n *ApprovalNotification) ShouldRetrySend() bool {
	return n.SentAt == nil && n.SendAttempts < ApprovalNotificationMaxAttempts
}

package repository

import (
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"gorm.io/gorm"
)

// AlertRepository defines the interface for alert store operations. All state
// transitions are conditional updates; a transition only "won" if it reports
// true.
type AlertRepository interface {
	CreateIfNoOpen(alert *models.Alert) (bool, error)
	GetByID(id uint) (*models.Alert, error)
	GetByUUID(uuid string) (*models.Alert, error)
	FindOpenBySource(userID uint, alertType string, sourceID uint) (*models.Alert, error)
	ListOpenByUser(userID uint) ([]models.Alert, error)
	TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error)
	AppendEvent(event *models.AlertEvent) error
	ListEvents(alertID uint) ([]models.AlertEvent, error)
}

// ApprovalRepository defines the interface for approval request operations.
type ApprovalRepository interface {
	Create(req *models.ApprovalRequest) error
	GetByID(id uint) (*models.ApprovalRequest, error)
	GetByToken(token string) (*models.ApprovalRequest, error)
	ListByUser(userID uint, offset, limit int) ([]models.ApprovalRequest, error)
	Decide(id uint, to string, decidedAt time.Time) (bool, error)
	SetInvoiceLineItem(id uint, lineItemID uint) (bool, error)
	ListPendingExpiringBefore(now, deadline time.Time) ([]models.ApprovalRequest, error)
	ListPendingPastExpiry(now time.Time) ([]models.ApprovalRequest, error)
	CreateNotificationIfAbsent(requestID uint, notificationType string) (bool, *models.ApprovalNotification, error)
	RecordNotificationAttempt(id uint, sentAt *time.Time, sendErr string) error
}

// WebhookEventRepository is the idempotency ledger for provider events.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.ProcessedWebhookEvent) (bool, *models.ProcessedWebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
	GetByProviderEventID(provider, providerEventID string) (*models.ProcessedWebhookEvent, error)
}

// InvoiceRepository defines invoice and line item operations used by the
// engine. MarkPaid and MarkSent are idempotent conditional updates.
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByID(id uint) (*models.Invoice, error)
	FindDraftByProject(projectID uint) (*models.Invoice, error)
	CreateLineItem(item *models.InvoiceLineItem) error
	ListLineItems(invoiceID uint) ([]models.InvoiceLineItem, error)
	HasLineItemForSource(sourceKind string, sourceID uint) (bool, error)
	MarkPaid(id uint, providerPaymentID string, paidAt time.Time) (bool, error)
	MarkSent(id uint, sentAt time.Time) (bool, error)
	ListDraftsOlderThan(cutoff time.Time) ([]models.Invoice, error)
}

// ReceiptRepository defines receipt operations used by detection and fixes.
type ReceiptRepository interface {
	GetByID(id uint) (*models.Receipt, error)
	AttachToInvoice(receiptID, invoiceID uint) (bool, error)
}

// VoiceLogRepository defines voice log operations used by detection and fixes.
type VoiceLogRepository interface {
	GetByID(id uint) (*models.VoiceLog, error)
	AttachToInvoice(voiceLogID, invoiceID uint) (bool, error)
}

// UserRepository resolves contact details for notification addressing.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Alert        AlertRepository
	Approval     ApprovalRepository
	WebhookEvent WebhookEventRepository
	Invoice      InvoiceRepository
	Receipt      ReceiptRepository
	VoiceLog     VoiceLogRepository
	User         UserRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Alert:        NewAlertRepository(db),
		Approval:     NewApprovalRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Invoice:      NewInvoiceRepository(db),
		Receipt:      NewReceiptRepository(db),
		VoiceLog:     NewVoiceLogRepository(db),
		User:         NewUserRepository(db),
	}
}

package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/app/repository"
	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"gorm.io/gorm"
)

// Service covers the invoice lifecycle pieces the reconciliation engine
// touches. Every state change is reported to the alert engine so alerts whose
// preconditions no longer hold get fixed.
type Service struct {
	invoices repository.InvoiceRepository
	alerts   *alerts.Service
}

// NewService creates an invoicing service.
func NewService(invoices repository.InvoiceRepository, alertService *alerts.Service) *Service {
	return &Service{invoices: invoices, alerts: alertService}
}

// NewServiceFromDB creates an invoicing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, dispatcher notify.Dispatcher) *Service {
	return NewService(repository.NewInvoiceRepository(db), alerts.NewServiceFromDB(db, dispatcher))
}

// EnsureProjectDraft returns the project's most recent draft invoice,
// creating one if none exists.
func (s *Service) EnsureProjectDraft(ctx context.Context, userID, projectID uint) (*models.Invoice, error) {
	_ = ctx
	invoice, err := s.invoices.FindDraftByProject(projectID)
	if err == nil {
		return invoice, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	invoice = &models.Invoice{
		UserID:    userID,
		ProjectID: projectID,
		Status:    models.InvoiceStatusDraft,
	}
	if err := s.invoices.Create(invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// AddLineItem appends a line item and bumps the invoice total.
func (s *Service) AddLineItem(ctx context.Context, item *models.InvoiceLineItem) error {
	_ = ctx
	if item.AmountCents <= 0 {
		return fmt.Errorf("%w: line item amount must be positive", alerts.ErrValidation)
	}
	return s.invoices.CreateLineItem(item)
}

// SendInvoice moves a draft invoice to sent. Returns false without error when
// the invoice already left draft.
func (s *Service) SendInvoice(ctx context.Context, invoiceID uint) (bool, error) {
	invoice, err := s.invoices.GetByID(invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: invoice %d", alerts.ErrNotFound, invoiceID)
		}
		return false, err
	}
	sent, err := s.invoices.MarkSent(invoiceID, time.Now())
	if err != nil || !sent {
		return sent, err
	}
	return true, s.alerts.Ingest(ctx, alerts.DomainEvent{
		Kind:     alerts.EventInvoiceStateChanged,
		UserID:   invoice.UserID,
		SourceID: invoiceID,
		NewState: models.InvoiceStatusSent,
	})
}

// MarkInvoicePaid records a provider payment against the invoice. The update
// is conditional on the invoice not already being paid, so redelivered
// payment events are no-ops.
func (s *Service) MarkInvoicePaid(ctx context.Context, invoiceID uint, providerPaymentID string, paidAt time.Time) (bool, error) {
	invoice, err := s.invoices.GetByID(invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: invoice %d", alerts.ErrNotFound, invoiceID)
		}
		return false, err
	}
	paid, err := s.invoices.MarkPaid(invoiceID, providerPaymentID, paidAt)
	if err != nil || !paid {
		return paid, err
	}
	return true, s.alerts.Ingest(ctx, alerts.DomainEvent{
		Kind:     alerts.EventInvoiceStateChanged,
		UserID:   invoice.UserID,
		SourceID: invoiceID,
		NewState: models.InvoiceStatusPaid,
	})
}

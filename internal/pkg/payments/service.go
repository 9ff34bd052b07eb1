package payments

import (
	"context"
	"errors"
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/app/repository"
	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/env"
	"github.com/CrewBill/CrewBill/internal/pkg/invoicing"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Outcome is what a webhook delivery amounted to. Duplicate deliveries are
// acknowledged without reprocessing; senders retry on non-2xx, so duplicates
// must stay 2xx.
type Outcome struct {
	Duplicate   bool `json:"duplicate"`
	Ignored     bool `json:"ignored,omitempty"`
	InvoicePaid bool `json:"invoice_paid,omitempty"`
}

// Service handles payment provider webhooks: verify fail-closed, then ledger,
// then effect.
type Service struct {
	ledger    repository.WebhookEventRepository
	invoicing *invoicing.Service
}

// NewService creates a payments service.
func NewService(ledger repository.WebhookEventRepository, invoicingService *invoicing.Service) *Service {
	return &Service{ledger: ledger, invoicing: invoicingService}
}

// NewServiceFromDB creates a payments service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, dispatcher notify.Dispatcher) *Service {
	return NewService(repository.NewWebhookEventRepository(db), invoicing.NewServiceFromDB(db, dispatcher))
}

// HandleStripe verifies and processes a Stripe webhook delivery.
func (s *Service) HandleStripe(ctx context.Context, payload []byte, signatureHeader string) (*Outcome, error) {
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	if err := VerifyStripeSignature(payload, signatureHeader, secret, time.Now()); err != nil {
		return nil, err
	}
	event, err := ParseStripeEvent(payload)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, event, payload)
}

// HandleFlutterwave verifies and processes a Flutterwave webhook delivery.
func (s *Service) HandleFlutterwave(ctx context.Context, payload []byte, verifHash string) (*Outcome, error) {
	secret := env.GetEnv("FLW_WEBHOOK_SECRET", "")
	if err := VerifyFlutterwaveSignature(verifHash, secret); err != nil {
		return nil, err
	}
	event, err := ParseFlutterwaveEvent(payload)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, event, payload)
}

// HandleRevenueCat verifies and processes a RevenueCat webhook delivery.
func (s *Service) HandleRevenueCat(ctx context.Context, payload []byte, authorization string) (*Outcome, error) {
	token := env.GetEnv("REVENUECAT_WEBHOOK_TOKEN", "")
	if err := VerifyRevenueCatAuthorization(authorization, token); err != nil {
		return nil, err
	}
	event, err := ParseRevenueCatEvent(payload)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, event, payload)
}

// process claims the ledger row and, while the event has no clean recorded
// outcome, marks the invoice paid. Only a cleanly processed row short-circuits
// a redelivery: if the first attempt crashed or failed transiently, the retry
// the provider sends re-applies the (idempotent) mutation instead of
// acknowledging a payment that never landed.
func (s *Service) process(ctx context.Context, event *PaymentEvent, payload []byte) (*Outcome, error) {
	record := &models.ProcessedWebhookEvent{
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.EventType,
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	}
	created, stored, err := s.ledger.CreateIfNotExists(record)
	if err != nil {
		return nil, err
	}
	if !created {
		if stored.ProcessedAt != nil && stored.ProcessingError == "" {
			log.Infof("[Payments] Duplicate %s event %s acknowledged", event.Provider, event.ProviderEventID)
			return &Outcome{Duplicate: true}, nil
		}
		log.Infof("[Payments] Redelivered %s event %s has no clean outcome yet, reprocessing", event.Provider, event.ProviderEventID)
	}
	outcome := &Outcome{Duplicate: !created}

	if event.InvoiceID == 0 {
		if err := s.ledger.MarkProcessed(stored.ID, ""); err != nil {
			log.Errorf("[Payments] Marking event %s processed failed: %v", event.ProviderEventID, err)
		}
		outcome.Ignored = true
		return outcome, nil
	}

	paid, err := s.invoicing.MarkInvoicePaid(ctx, event.InvoiceID, event.ProviderPaymentID, event.PaidAt)
	if err != nil {
		if markErr := s.ledger.MarkProcessed(stored.ID, err.Error()); markErr != nil {
			log.Errorf("[Payments] Recording failure on event %s failed: %v", event.ProviderEventID, markErr)
		}
		if errors.Is(err, alerts.ErrNotFound) {
			// The row stays in the ledger with the error; nothing to retry.
			log.Warnf("[Payments] %s event %s references unknown invoice %d", event.Provider, event.ProviderEventID, event.InvoiceID)
			outcome.Ignored = true
			return outcome, nil
		}
		return nil, err
	}

	if err := s.ledger.MarkProcessed(stored.ID, ""); err != nil {
		log.Errorf("[Payments] Marking event %s processed failed: %v", event.ProviderEventID, err)
	}
	outcome.InvoicePaid = paid
	return outcome, nil
}

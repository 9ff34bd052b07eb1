package payments

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
)

// PaymentEvent is the provider-neutral shape the handler works with. Parsers
// return nil for event types the engine does not act on; those still go into
// the ledger so redeliveries stay cheap.
type PaymentEvent struct {
	Provider          string
	ProviderEventID   string
	EventType         string
	ProviderPaymentID string
	InvoiceID         uint
	AmountCents       int64
	PaidAt            time.Time
}

type stripePayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string            `json:"id"`
			AmountReceived int64             `json:"amount_received"`
			Created        int64             `json:"created"`
			Metadata       map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseStripeEvent extracts a payment from a Stripe event. Only
// payment_intent.succeeded is actionable; the invoice reference rides in the
// payment intent's metadata.
func ParseStripeEvent(payload []byte) (*PaymentEvent, error) {
	var p stripePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed stripe payload: %v", alerts.ErrValidation, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: stripe event without id", alerts.ErrValidation)
	}
	if p.Type != "payment_intent.succeeded" {
		return &PaymentEvent{Provider: models.WebhookProviderStripe, ProviderEventID: p.ID, EventType: p.Type}, nil
	}
	invoiceID, err := invoiceIDFromRef(p.Data.Object.Metadata["invoice_id"])
	if err != nil {
		return nil, err
	}
	return &PaymentEvent{
		Provider:          models.WebhookProviderStripe,
		ProviderEventID:   p.ID,
		EventType:         p.Type,
		ProviderPaymentID: p.Data.Object.ID,
		InvoiceID:         invoiceID,
		AmountCents:       p.Data.Object.AmountReceived,
		PaidAt:            time.Unix(p.Data.Object.Created, 0),
	}, nil
}

type flutterwavePayload struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64   `json:"id"`
		TxRef     string  `json:"tx_ref"`
		FlwRef    string  `json:"flw_ref"`
		Amount    float64 `json:"amount"`
		Status    string  `json:"status"`
		CreatedAt string  `json:"created_at"`
	} `json:"data"`
}

// ParseFlutterwaveEvent extracts a payment from a Flutterwave charge event.
// The invoice reference is the tx_ref the platform set when creating the
// payment link.
func ParseFlutterwaveEvent(payload []byte) (*PaymentEvent, error) {
	var p flutterwavePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed flutterwave payload: %v", alerts.ErrValidation, err)
	}
	if p.Data.ID == 0 {
		return nil, fmt.Errorf("%w: flutterwave event without id", alerts.ErrValidation)
	}
	eventID := strconv.FormatInt(p.Data.ID, 10)
	if p.Event != "charge.completed" || p.Data.Status != "successful" {
		return &PaymentEvent{Provider: models.WebhookProviderFlutterwave, ProviderEventID: eventID, EventType: p.Event}, nil
	}
	invoiceID, err := invoiceIDFromRef(p.Data.TxRef)
	if err != nil {
		return nil, err
	}
	paidAt := time.Now()
	if t, err := time.Parse(time.RFC3339, p.Data.CreatedAt); err == nil {
		paidAt = t
	}
	return &PaymentEvent{
		Provider:          models.WebhookProviderFlutterwave,
		ProviderEventID:   eventID,
		EventType:         p.Event,
		ProviderPaymentID: p.Data.FlwRef,
		InvoiceID:         invoiceID,
		AmountCents:       int64(math.Round(p.Data.Amount * 100)),
		PaidAt:            paidAt,
	}, nil
}

type revenueCatPayload struct {
	Event struct {
		ID            string  `json:"id"`
		Type          string  `json:"type"`
		AppUserID     string  `json:"app_user_id"`
		Price         float64 `json:"price"`
		TimestampMS   int64   `json:"event_timestamp_ms"`
		TransactionID string  `json:"transaction_id"`
	} `json:"event"`
}

// ParseRevenueCatEvent extracts a payment from a RevenueCat webhook. In-app
// invoice payments are NON_RENEWING_PURCHASE events whose app_user_id carries
// the invoice reference.
func ParseRevenueCatEvent(payload []byte) (*PaymentEvent, error) {
	var p revenueCatPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed revenuecat payload: %v", alerts.ErrValidation, err)
	}
	if p.Event.ID == "" {
		return nil, fmt.Errorf("%w: revenuecat event without id", alerts.ErrValidation)
	}
	if p.Event.Type != "NON_RENEWING_PURCHASE" {
		return &PaymentEvent{Provider: models.WebhookProviderRevenueCat, ProviderEventID: p.Event.ID, EventType: p.Event.Type}, nil
	}
	invoiceID, err := invoiceIDFromRef(p.Event.AppUserID)
	if err != nil {
		return nil, err
	}
	return &PaymentEvent{
		Provider:          models.WebhookProviderRevenueCat,
		ProviderEventID:   p.Event.ID,
		EventType:         p.Event.Type,
		ProviderPaymentID: p.Event.TransactionID,
		InvoiceID:         invoiceID,
		AmountCents:       int64(math.Round(p.Event.Price * 100)),
		PaidAt:            time.UnixMilli(p.Event.TimestampMS),
	}, nil
}

// invoiceIDFromRef accepts the "inv_<id>" references the platform hands to
// providers, or a bare numeric id.
func invoiceIDFromRef(ref string) (uint, error) {
	trimmed := strings.TrimPrefix(ref, "inv_")
	id, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid invoice reference %q", alerts.ErrValidation, ref)
	}
	return uint(id), nil
}

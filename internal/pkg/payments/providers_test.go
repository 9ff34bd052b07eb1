package payments

import (
	"testing"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStripeEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_123",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_456",
			"amount_received": 45000,
			"created": 1756600000,
			"metadata": {"invoice_id": "inv_9"}
		}}
	}`)

	ev, err := ParseStripeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookProviderStripe, ev.Provider)
	assert.Equal(t, "evt_123", ev.ProviderEventID)
	assert.Equal(t, "pi_456", ev.ProviderPaymentID)
	assert.Equal(t, uint(9), ev.InvoiceID)
	assert.Equal(t, int64(45000), ev.AmountCents)
}

func TestParseStripeEventIgnoresOtherTypes(t *testing.T) {
	ev, err := ParseStripeEvent([]byte(`{"id":"evt_1","type":"customer.created"}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ProviderEventID)
	assert.Zero(t, ev.InvoiceID)
}

func TestParseStripeEventRejectsMalformed(t *testing.T) {
	_, err := ParseStripeEvent([]byte(`not json`))
	assert.ErrorIs(t, err, alerts.ErrValidation)

	_, err = ParseStripeEvent([]byte(`{"type":"payment_intent.succeeded"}`))
	assert.ErrorIs(t, err, alerts.ErrValidation)
}

func TestParseFlutterwaveEvent(t *testing.T) {
	payload := []byte(`{
		"event": "charge.completed",
		"data": {
			"id": 8812,
			"tx_ref": "inv_14",
			"flw_ref": "FLW-REF-1",
			"amount": 450.00,
			"status": "successful",
			"created_at": "2026-08-20T10:00:00Z"
		}
	}`)

	ev, err := ParseFlutterwaveEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookProviderFlutterwave, ev.Provider)
	assert.Equal(t, "8812", ev.ProviderEventID)
	assert.Equal(t, uint(14), ev.InvoiceID)
	assert.Equal(t, int64(45000), ev.AmountCents)
}

func TestParseFlutterwaveEventIgnoresFailedCharge(t *testing.T) {
	payload := []byte(`{"event":"charge.completed","data":{"id":9,"status":"failed"}}`)
	ev, err := ParseFlutterwaveEvent(payload)
	require.NoError(t, err)
	assert.Zero(t, ev.InvoiceID)
}

func TestParseRevenueCatEvent(t *testing.T) {
	payload := []byte(`{
		"event": {
			"id": "rc_evt_1",
			"type": "NON_RENEWING_PURCHASE",
			"app_user_id": "inv_21",
			"price": 450.0,
			"event_timestamp_ms": 1756600000000,
			"transaction_id": "txn_77"
		}
	}`)

	ev, err := ParseRevenueCatEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookProviderRevenueCat, ev.Provider)
	assert.Equal(t, "rc_evt_1", ev.ProviderEventID)
	assert.Equal(t, uint(21), ev.InvoiceID)
	assert.Equal(t, int64(45000), ev.AmountCents)
	assert.Equal(t, "txn_77", ev.ProviderPaymentID)
}

func TestInvoiceIDFromRef(t *testing.T) {
	id, err := invoiceIDFromRef("inv_42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	id, err = invoiceIDFromRef("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = invoiceIDFromRef("")
	assert.ErrorIs(t, err, alerts.ErrValidation)
	_, err = invoiceIDFromRef("inv_zero")
	assert.ErrorIs(t, err, alerts.ErrValidation)
	_, err = invoiceIDFromRef("inv_0")
	assert.ErrorIs(t, err, alerts.ErrValidation)
}

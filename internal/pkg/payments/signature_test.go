package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stripeSig(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func stripeHeader(payload []byte, secret string, ts time.Time) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), stripeSig(payload, secret, ts))
}

func TestVerifyStripeSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	header := stripeHeader(payload, "whsec_test", now)
	assert.NoError(t, VerifyStripeSignature(payload, header, "whsec_test", now))

	// Wrong secret.
	assert.ErrorIs(t, VerifyStripeSignature(payload, header, "whsec_other", now), ErrSignatureInvalid)

	// Tampered payload.
	assert.ErrorIs(t, VerifyStripeSignature([]byte(`{"id":"evt_2"}`), header, "whsec_test", now), ErrSignatureInvalid)

	// Stale timestamp outside the tolerance window.
	stale := stripeHeader(payload, "whsec_test", now.Add(-10*time.Minute))
	assert.ErrorIs(t, VerifyStripeSignature(payload, stale, "whsec_test", now), ErrSignatureInvalid)

	// Missing pieces fail closed.
	assert.ErrorIs(t, VerifyStripeSignature(payload, "", "whsec_test", now), ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyStripeSignature(payload, header, "", now), ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyStripeSignature(payload, "v1=deadbeef", "whsec_test", now), ErrSignatureInvalid)
}

func TestVerifyStripeSignatureMultipleCandidates(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", now.Unix(),
		hex.EncodeToString([]byte("wrong-signature-entry")),
		stripeSig(payload, "whsec_test", now))
	assert.NoError(t, VerifyStripeSignature(payload, header, "whsec_test", now))
}

func TestVerifyFlutterwaveSignature(t *testing.T) {
	assert.NoError(t, VerifyFlutterwaveSignature("my-verif-hash", "my-verif-hash"))
	assert.ErrorIs(t, VerifyFlutterwaveSignature("other", "my-verif-hash"), ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyFlutterwaveSignature("", "my-verif-hash"), ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyFlutterwaveSignature("my-verif-hash", ""), ErrSignatureInvalid)
}

func TestVerifyRevenueCatAuthorization(t *testing.T) {
	assert.NoError(t, VerifyRevenueCatAuthorization("Bearer tok123", "tok123"))
	assert.NoError(t, VerifyRevenueCatAuthorization("tok123", "tok123"))
	assert.ErrorIs(t, VerifyRevenueCatAuthorization("Bearer wrong", "tok123"), ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyRevenueCatAuthorization("", "tok123"), ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyRevenueCatAuthorization("Bearer tok123", ""), ErrSignatureInvalid)
}

package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrSignatureInvalid marks a delivery whose authenticity check failed.
// Verification always runs before the ledger is consulted; an unauthenticated
// delivery must not learn whether an event id is known.
var ErrSignatureInvalid = errors.New("webhook signature verification failed")

// StripeSignatureTolerance bounds how old a signed Stripe timestamp may be.
const StripeSignatureTolerance = 5 * time.Minute

// VerifyStripeSignature checks a Stripe-Signature header (t=...,v1=...)
// against the raw payload. Any v1 entry may match; the timestamp must be
// within tolerance of now.
func VerifyStripeSignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" || secret == "" {
		return ErrSignatureInvalid
	}

	var timestamp int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return ErrSignatureInvalid
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return ErrSignatureInvalid
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > StripeSignatureTolerance || age < -StripeSignatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

// VerifyFlutterwaveSignature checks the verif-hash header, which carries the
// configured secret verbatim rather than a payload digest.
func VerifyFlutterwaveSignature(header, secret string) error {
	if header == "" || secret == "" {
		return ErrSignatureInvalid
	}
	if !hmac.Equal([]byte(header), []byte(secret)) {
		return ErrSignatureInvalid
	}
	return nil
}

// VerifyRevenueCatAuthorization checks the Authorization header RevenueCat
// sends with every webhook ("Bearer <token>").
func VerifyRevenueCatAuthorization(header, token string) error {
	if header == "" || token == "" {
		return ErrSignatureInvalid
	}
	presented := strings.TrimPrefix(header, "Bearer ")
	if !hmac.Equal([]byte(presented), []byte(token)) {
		return ErrSignatureInvalid
	}
	return nil
}

package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/database"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"github.com/CrewBill/CrewBill/internal/pkg/payments"
	"github.com/gofiber/fiber/v2"
)

// HandleStripeWebhook receives Stripe payment events. Verification runs
// before anything else; an unauthenticated delivery learns nothing about
// which event ids are known.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")
	return handleProviderWebhook(c, func(ctx context.Context, svc *payments.Service) (*payments.Outcome, error) {
		return svc.HandleStripe(ctx, rawBody, signature)
	})
}

// HandleFlutterwaveWebhook receives Flutterwave charge events.
func HandleFlutterwaveWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	verifHash := c.Get("verif-hash")
	return handleProviderWebhook(c, func(ctx context.Context, svc *payments.Service) (*payments.Outcome, error) {
		return svc.HandleFlutterwave(ctx, rawBody, verifHash)
	})
}

// HandleRevenueCatWebhook receives RevenueCat purchase events.
func HandleRevenueCatWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	authorization := c.Get("Authorization")
	return handleProviderWebhook(c, func(ctx context.Context, svc *payments.Service) (*payments.Outcome, error) {
		return svc.HandleRevenueCat(ctx, rawBody, authorization)
	})
}

func handleProviderWebhook(c *fiber.Ctx, handle func(context.Context, *payments.Service) (*payments.Outcome, error)) error {
	svc := payments.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := handle(ctx, svc)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrSignatureInvalid):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
		case errors.Is(err, alerts.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	resp := fiber.Map{"ok": true}
	if outcome.Duplicate {
		resp["duplicate"] = true
	}
	if outcome.Ignored {
		resp["ignored"] = true
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/database"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"github.com/gofiber/fiber/v2"
)

type fixAlertRequest struct {
	Action    string `json:"action"`
	InvoiceID uint   `json:"invoice_id"`
}

type resolveAlertRequest struct {
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

// HandleListAlerts returns the contractor's open alerts with the aggregate
// amount and its severity.
func HandleListAlerts(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	svc := alerts.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	overview, err := svc.GetOverview(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(overview)
}

// HandleAlertEvents returns an alert's append-only audit trail. Ownership is
// enforced in the service; other contractors' alerts look like 404s.
func HandleAlertEvents(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	alertID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	svc := alerts.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	trail, err := svc.ListAuditTrail(ctx, alertID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"events": trail})
}

// HandleFixAlert applies a remedial action. A lost race reports the alert's
// actual state as a conflict instead of pretending the fix happened.
func HandleFixAlert(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	alertID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req fixAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	svc := alerts.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	alert, err := svc.FixAlert(ctx, alertID, userID, alerts.FixAction(req.Action), alerts.FixParams{InvoiceID: req.InvoiceID})
	if err != nil {
		if errors.Is(err, alerts.ErrInvalidState) && alert != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  "alert already handled",
				"status": alert.Status,
			})
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(alert)
}

// HandleResolveAlert dismisses an alert with a reason from the closed enum.
func HandleResolveAlert(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	alertID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req resolveAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	svc := alerts.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	alert, err := svc.ResolveAlert(ctx, alertID, userID, alerts.ResolveReason(req.Reason), req.Note)
	if err != nil {
		if errors.Is(err, alerts.ErrInvalidState) && alert != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  "alert already handled",
				"status": alert.Status,
			})
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(alert)
}

package controllers

import (
	"context"
	"time"

	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/database"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"github.com/gofiber/fiber/v2"
)

// HandleIngestEvent is the internal boundary where the CRUD side of the
// platform reports domain events (receipt created, voice log created, invoice
// state changed) to the reconciliation engine.
func HandleIngestEvent(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	var ev alerts.DomainEvent
	if err := c.BodyParser(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	ev.UserID = userID
	if ev.SourceID == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "source_id is required"})
	}

	svc := alerts.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := svc.Ingest(ctx, ev); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

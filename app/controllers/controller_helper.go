package controllers

import (
	"errors"
	"strconv"

	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/approval"
	"github.com/gofiber/fiber/v2"
)

// currentUserID reads the authenticated contractor id the gateway injects.
// Authentication itself happens upstream; an absent header is a 401 here.
func currentUserID(c *fiber.Ctx) (uint, error) {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "missing X-User-ID header")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "invalid X-User-ID header")
	}
	return uint(id), nil
}

func paramUint(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

// respondError translates domain sentinels into HTTP statuses. Invalid-state
// outcomes are conflicts, not server errors; they are the expected result of
// two triggers racing for the same transition.
func respondError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	case errors.Is(err, approval.ErrExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "this approval has expired"})
	case errors.Is(err, alerts.ErrValidation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, alerts.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, alerts.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/approval"
	"github.com/CrewBill/CrewBill/internal/pkg/database"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"github.com/gofiber/fiber/v2"
)

type createApprovalRequest struct {
	ProjectID          uint   `json:"project_id"`
	Description        string `json:"description"`
	EstimatedCostCents int64  `json:"estimated_cost_cents"`
	ClientEmail        string `json:"client_email"`
	PhotoURLsJSON      string `json:"photo_urls_json"`
}

type approvalDecisionRequest struct {
	Decision string `json:"decision"`
}

// HandleCreateApproval creates a scope-proof approval request and mails the
// client their one-time approval link.
func HandleCreateApproval(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	var body createApprovalRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	req := &models.ApprovalRequest{
		UserID:             userID,
		ProjectID:          body.ProjectID,
		Description:        body.Description,
		EstimatedCostCents: body.EstimatedCostCents,
		ClientEmail:        body.ClientEmail,
		PhotoURLsJSON:      body.PhotoURLsJSON,
	}

	svc := approval.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := svc.CreateRequest(ctx, req); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// HandleListApprovals returns the contractor's approval requests.
func HandleListApprovals(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	svc := approval.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reqs, err := svc.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"approvals": reqs})
}

// HandleShowApproval is the client-facing read behind the emailed link. The
// token is the only credential; a pending request past its window reads as
// expired.
func HandleShowApproval(c *fiber.Ctx) error {
	token := c.Params("token")

	svc := approval.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := svc.GetByToken(ctx, token)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"description":          req.Description,
		"estimated_cost_cents": req.EstimatedCostCents,
		"status":               req.Status,
		"token_expires_at":     req.TokenExpiresAt,
	})
}

// HandleDecideApproval records the client's approve/decline. Expired windows
// and already-decided requests come back as client-visible outcomes, never as
// server errors.
func HandleDecideApproval(c *fiber.Ctx) error {
	token := c.Params("token")
	var body approvalDecisionRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	svc := approval.NewServiceFromDB(database.GetDB(), notify.GetDispatcher())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := svc.Respond(ctx, token, body.Decision)
	if err != nil {
		if errors.Is(err, approval.ErrExpired) {
			return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "this approval has expired"})
		}
		if errors.Is(err, alerts.ErrInvalidState) && req != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  "this request was already decided",
				"status": req.Status,
			})
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": req.Status})
}

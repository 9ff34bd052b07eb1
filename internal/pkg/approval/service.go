package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/app/repository"
	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/env"
	"github.com/CrewBill/CrewBill/internal/pkg/invoicing"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrExpired marks a decision attempted after the token window elapsed.
// Clients see "this approval has expired", never a server error.
var ErrExpired = errors.New("approval request has expired")

// ReminderWindow is how far before token expiry the reminder sweep starts
// trying to notify the client. With hourly sweeps this leaves at least a
// dozen attempts inside the window.
const ReminderWindow = 13 * time.Hour

// Service runs the scope-proof approval workflow: token-gated requests with a
// fixed 24h decision window, decided at most once.
type Service struct {
	approvals  repository.ApprovalRepository
	users      repository.UserRepository
	invoicing  *invoicing.Service
	alerts     *alerts.Service
	dispatcher notify.Dispatcher
}

// NewService creates an approval service.
func NewService(
	approvals repository.ApprovalRepository,
	users repository.UserRepository,
	invoicingService *invoicing.Service,
	alertService *alerts.Service,
	dispatcher notify.Dispatcher,
) *Service {
	return &Service{
		approvals:  approvals,
		users:      users,
		invoicing:  invoicingService,
		alerts:     alertService,
		dispatcher: dispatcher,
	}
}

// NewServiceFromDB creates an approval service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, dispatcher notify.Dispatcher) *Service {
	repos := repository.NewRepositories(db)
	alertService := alerts.NewServiceFromDB(db, dispatcher)
	invoicingService := invoicing.NewService(repos.Invoice, alertService)
	return NewService(repos.Approval, repos.User, invoicingService, alertService, dispatcher)
}

// CreateRequest validates and persists a new approval request, then mails the
// client their approval link. The token and its expiry are fixed here and
// never extended.
func (s *Service) CreateRequest(ctx context.Context, req *models.ApprovalRequest) error {
	_ = ctx
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", alerts.ErrValidation, err)
	}
	req.UUID = uuid.New().String()
	req.Status = models.ApprovalStatusPending
	if err := req.GenerateApprovalToken(); err != nil {
		return err
	}
	if err := s.approvals.Create(req); err != nil {
		return err
	}

	if !s.dispatcher.Send(notify.Notification{
		Channel:    notify.ChannelEmail,
		Recipient:  req.ClientEmail,
		TemplateID: "approval_request",
		Vars: map[string]string{
			"subject":      "Approval needed for additional work",
			"description":  req.Description,
			"approval_url": approvalURL(req.ApprovalToken),
			"expires_at":   req.TokenExpiresAt.UTC().Format(time.RFC3339),
		},
		DedupKey: fmt.Sprintf("approval:%s:created", req.UUID),
	}) {
		log.Warnf("[Approval] Request %s created but client notification not dispatched", req.UUID)
	}
	return nil
}

// GetByToken loads the request a client-facing page renders. A pending
// request past its window is lazily expired first, so readers never see a
// pending-but-dead request.
func (s *Service) GetByToken(ctx context.Context, token string) (*models.ApprovalRequest, error) {
	_ = ctx
	req, err := s.approvals.GetByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: approval token", alerts.ErrNotFound)
		}
		return nil, err
	}
	if req.IsPending() && req.IsPastExpiry(time.Now()) {
		return s.expireOne(req)
	}
	return req, nil
}

// Respond records the client's decision. Exactly one of a concurrent
// approve/decline/expire wins; losers are told the actual outcome.
func (s *Service) Respond(ctx context.Context, token, decision string) (*models.ApprovalRequest, error) {
	if decision != models.ApprovalStatusApproved && decision != models.ApprovalStatusDeclined {
		return nil, fmt.Errorf("%w: decision must be approved or declined", alerts.ErrValidation)
	}

	req, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case models.ApprovalStatusExpired:
		return req, ErrExpired
	case models.ApprovalStatusApproved, models.ApprovalStatusDeclined:
		return req, alerts.ErrInvalidState
	}

	now := time.Now()
	won, err := s.approvals.Decide(req.ID, decision, now)
	if err != nil {
		return req, err
	}
	if !won {
		current, err := s.approvals.GetByID(req.ID)
		if err != nil {
			return req, err
		}
		if current.Status == models.ApprovalStatusExpired {
			return current, ErrExpired
		}
		return current, alerts.ErrInvalidState
	}
	req.Status = decision
	req.DecidedAt = &now

	if decision == models.ApprovalStatusApproved {
		s.billApprovedScope(ctx, req)
	}
	s.notifyContractorDecision(req, decision)
	return req, nil
}

// billApprovedScope puts the approved work on the project's draft invoice,
// exactly once. The invoice_line_item_id IS NULL guard is the only thing
// standing between a retried approval and a double-billed client, so a lost
// claim aborts before any line item exists.
func (s *Service) billApprovedScope(ctx context.Context, req *models.ApprovalRequest) {
	invoice, err := s.invoicing.EnsureProjectDraft(ctx, req.UserID, req.ProjectID)
	if err != nil {
		log.Errorf("[Approval] Request %s approved but draft invoice unavailable: %v", req.UUID, err)
		s.ingestScopeApproved(ctx, req)
		return
	}
	item := &models.InvoiceLineItem{
		InvoiceID:   invoice.ID,
		Description: req.Description,
		AmountCents: req.EstimatedCostCents,
		SourceKind:  models.LineItemSourceScope,
		SourceID:    req.ID,
	}
	if err := s.invoicing.AddLineItem(ctx, item); err != nil {
		log.Errorf("[Approval] Request %s approved but line item not created: %v", req.UUID, err)
		s.ingestScopeApproved(ctx, req)
		return
	}
	linked, err := s.approvals.SetInvoiceLineItem(req.ID, item.ID)
	if err != nil {
		log.Errorf("[Approval] Request %s approved but line item link failed: %v", req.UUID, err)
	} else if !linked {
		log.Warnf("[Approval] Request %s already linked to a line item, keeping the existing link", req.UUID)
	}
	s.ingestScopeApproved(ctx, req)
}

// ingestScopeApproved lets the alert engine open a scope_approved_no_invoice
// alert if billing the scope did not stick.
func (s *Service) ingestScopeApproved(ctx context.Context, req *models.ApprovalRequest) {
	if err := s.alerts.Ingest(ctx, alerts.DomainEvent{
		Kind:     alerts.EventScopeApproved,
		UserID:   req.UserID,
		SourceID: req.ID,
	}); err != nil {
		log.Errorf("[Approval] Alert ingest for approved request %s failed: %v", req.UUID, err)
	}
}

// ExpireDue transitions every pending request past its window to expired and
// returns the ones this call won. Each row is claimed individually, so a
// client decision racing the sweep loses at most that one row.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) ([]models.ApprovalRequest, error) {
	_ = ctx
	due, err := s.approvals.ListPendingPastExpiry(now)
	if err != nil {
		return nil, err
	}
	var expired []models.ApprovalRequest
	for _, req := range due {
		won, err := s.approvals.Decide(req.ID, models.ApprovalStatusExpired, now)
		if err != nil {
			log.Errorf("[Approval] Expiring request %s failed: %v", req.UUID, err)
			continue
		}
		if won {
			req.Status = models.ApprovalStatusExpired
			req.DecidedAt = &now
			expired = append(expired, req)
		}
	}
	return expired, nil
}

// ListPendingExpiringBefore returns pending requests whose window closes
// between now and the deadline, for the reminder sweep.
func (s *Service) ListPendingExpiringBefore(ctx context.Context, now, deadline time.Time) ([]models.ApprovalRequest, error) {
	_ = ctx
	return s.approvals.ListPendingExpiringBefore(now, deadline)
}

// ListByUser returns the contractor's requests, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uint, offset, limit int) ([]models.ApprovalRequest, error) {
	_ = ctx
	return s.approvals.ListByUser(userID, offset, limit)
}

func (s *Service) expireOne(req *models.ApprovalRequest) (*models.ApprovalRequest, error) {
	now := time.Now()
	won, err := s.approvals.Decide(req.ID, models.ApprovalStatusExpired, now)
	if err != nil {
		return req, err
	}
	if won {
		req.Status = models.ApprovalStatusExpired
		req.DecidedAt = &now
		return req, nil
	}
	return s.approvals.GetByID(req.ID)
}

func (s *Service) notifyContractorDecision(req *models.ApprovalRequest, decision string) {
	user, err := s.users.GetByID(req.UserID)
	if err != nil {
		log.Warnf("[Approval] Cannot address decision notification, user %d lookup failed: %v", req.UserID, err)
		return
	}
	if !s.dispatcher.Send(notify.Notification{
		Channel:    notify.ChannelEmail,
		Recipient:  user.Email,
		TemplateID: "approval_decided",
		Vars: map[string]string{
			"subject":     fmt.Sprintf("Your approval request was %s", decision),
			"description": req.Description,
			"decision":    decision,
		},
		DedupKey: fmt.Sprintf("approval:%s:%s", req.UUID, decision),
	}) {
		log.Warnf("[Approval] Decision notification for request %s not dispatched", req.UUID)
	}
}

func approvalURL(token string) string {
	return fmt.Sprintf("%s/approve/%s", env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), token)
}

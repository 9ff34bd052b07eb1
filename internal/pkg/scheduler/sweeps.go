package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/app/repository"
	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/approval"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
)

// Sweeper holds the periodic reconciliation passes the manager drives. Each
// sweep is safe to run concurrently with client traffic and with overlapping
// instances of itself: transitions are conditional and notifications are
// claimed through unique marker rows before sending.
type Sweeper struct {
	approvals  repository.ApprovalRepository
	invoices   repository.InvoiceRepository
	users      repository.UserRepository
	approvalS  *approval.Service
	alertS     *alerts.Service
	dispatcher notify.Dispatcher
}

// NewSweeper creates a sweeper over the given services and repositories.
func NewSweeper(
	approvals repository.ApprovalRepository,
	invoices repository.InvoiceRepository,
	users repository.UserRepository,
	approvalService *approval.Service,
	alertService *alerts.Service,
	dispatcher notify.Dispatcher,
) *Sweeper {
	return &Sweeper{
		approvals:  approvals,
		invoices:   invoices,
		users:      users,
		approvalS:  approvalService,
		alertS:     alertService,
		dispatcher: dispatcher,
	}
}

// RunReminderSweep sends at most one reminder to each client whose approval
// window closes soon. The marker row is claimed before the send; failed sends
// retry on later sweeps up to the attempt bound.
func (s *Sweeper) RunReminderSweep(now time.Time) error {
	due, err := s.approvals.ListPendingExpiringBefore(now, now.Add(approval.ReminderWindow))
	if err != nil {
		return err
	}
	for _, req := range due {
		created, marker, err := s.approvals.CreateNotificationIfAbsent(req.ID, models.ApprovalNotificationReminder)
		if err != nil {
			log.Errorf("[Scheduler] Claiming reminder for request %s failed: %v", req.UUID, err)
			continue
		}
		if !created && !marker.ShouldRetrySend() {
			continue
		}
		s.attemptSend(marker, notify.Notification{
			Channel:    notify.ChannelEmail,
			Recipient:  req.ClientEmail,
			TemplateID: "approval_reminder",
			Vars: map[string]string{
				"subject":     "Reminder: approval window closing soon",
				"description": req.Description,
				"expires_at":  req.TokenExpiresAt.UTC().Format(time.RFC3339),
			},
			DedupKey: fmt.Sprintf("approval:%s:reminder:%d", req.UUID, marker.SendAttempts+1),
		})
	}
	return nil
}

// RunExpirySweep expires overdue approval requests and tells the contractor
// about each one this sweep expired.
func (s *Sweeper) RunExpirySweep(now time.Time) error {
	expired, err := s.approvalS.ExpireDue(context.Background(), now)
	if err != nil {
		return err
	}
	for _, req := range expired {
		created, marker, err := s.approvals.CreateNotificationIfAbsent(req.ID, models.ApprovalNotificationExpiry)
		if err != nil {
			log.Errorf("[Scheduler] Claiming expiry notice for request %s failed: %v", req.UUID, err)
			continue
		}
		if !created && !marker.ShouldRetrySend() {
			continue
		}
		user, err := s.users.GetByID(req.UserID)
		if err != nil {
			log.Warnf("[Scheduler] Cannot address expiry notice, user %d lookup failed: %v", req.UserID, err)
			continue
		}
		s.attemptSend(marker, notify.Notification{
			Channel:    notify.ChannelEmail,
			Recipient:  user.Email,
			TemplateID: "approval_expired",
			Vars: map[string]string{
				"subject":     "An approval request expired without a decision",
				"description": req.Description,
			},
			DedupKey: fmt.Sprintf("approval:%s:expiry:%d", req.UUID, marker.SendAttempts+1),
		})
	}
	return nil
}

// RunStaleDraftSweep opens invoice_not_sent alerts for drafts that sat unsent
// past the threshold. Re-running is harmless: open-alert dedup absorbs it.
func (s *Sweeper) RunStaleDraftSweep(now time.Time) error {
	stale, err := s.invoices.ListDraftsOlderThan(now.Add(-alerts.DraftUnsentThreshold))
	if err != nil {
		return err
	}
	for _, invoice := range stale {
		if err := s.alertS.OpenDraftUnsentAlert(context.Background(), invoice); err != nil {
			log.Errorf("[Scheduler] Opening stale-draft alert for invoice %d failed: %v", invoice.ID, err)
		}
	}
	return nil
}

func (s *Sweeper) attemptSend(marker *models.ApprovalNotification, n notify.Notification) {
	var sentAt *time.Time
	var sendErr string
	if s.dispatcher.Send(n) {
		now := time.Now()
		sentAt = &now
	} else {
		sendErr = "dispatch failed"
	}
	if err := s.approvals.RecordNotificationAttempt(marker.ID, sentAt, sendErr); err != nil {
		log.Errorf("[Scheduler] Recording notification attempt %d failed: %v", marker.ID, err)
	}
}

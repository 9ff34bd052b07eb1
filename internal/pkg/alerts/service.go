package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/app/repository"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DraftUnsentThreshold is how long a draft invoice may sit unsent before the
// durational sweep opens an invoice_not_sent alert. 72h keeps it clearly
// apart from the 24h approval token window while still catching drafts within
// a weekly billing cycle.
const DraftUnsentThreshold = 72 * time.Hour

const systemActor = "system"

// Service applies detection rules to ingested domain events and drives the
// alert fix/resolve state machine. All transitions go through conditional
// updates in the repository; the service never does read-then-write on
// status.
type Service struct {
	alerts     repository.AlertRepository
	receipts   repository.ReceiptRepository
	voiceLogs  repository.VoiceLogRepository
	invoices   repository.InvoiceRepository
	approvals  repository.ApprovalRepository
	users      repository.UserRepository
	dispatcher notify.Dispatcher
}

// NewService creates an alert service from injected repositories.
func NewService(
	alerts repository.AlertRepository,
	receipts repository.ReceiptRepository,
	voiceLogs repository.VoiceLogRepository,
	invoices repository.InvoiceRepository,
	approvals repository.ApprovalRepository,
	users repository.UserRepository,
	dispatcher notify.Dispatcher,
) *Service {
	return &Service{
		alerts:     alerts,
		receipts:   receipts,
		voiceLogs:  voiceLogs,
		invoices:   invoices,
		approvals:  approvals,
		users:      users,
		dispatcher: dispatcher,
	}
}

// NewServiceFromDB creates an alert service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, dispatcher notify.Dispatcher) *Service {
	repos := repository.NewRepositories(db)
	return NewService(repos.Alert, repos.Receipt, repos.VoiceLog, repos.Invoice, repos.Approval, repos.User, dispatcher)
}

// Ingest runs the detection rules for one domain event. Callers invoke it
// synchronously after their own transaction commits; duplicate ingestion of
// the same event is harmless because alert creation dedups on open alerts and
// fixes are conditional.
func (s *Service) Ingest(ctx context.Context, ev DomainEvent) error {
	_ = ctx
	switch ev.Kind {
	case EventReceiptCreated:
		receipt, err := s.receipts.GetByID(ev.SourceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: receipt %d", ErrNotFound, ev.SourceID)
			}
			return err
		}
		facts := SourceFacts{
			AmountCents:     receipt.AmountCents,
			Billable:        receipt.Billable,
			LinkedToInvoice: receipt.IsLinked(),
		}
		return s.applyMutation(receipt.UserID, EvaluateReceiptCreated(receipt.ID, facts), ev.Kind)

	case EventVoiceLogCreated:
		vl, err := s.voiceLogs.GetByID(ev.SourceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: voice log %d", ErrNotFound, ev.SourceID)
			}
			return err
		}
		facts := SourceFacts{
			AmountCents:     vl.EstimatedCents,
			Billable:        vl.Billable,
			LinkedToInvoice: vl.InvoiceID != nil,
		}
		return s.applyMutation(vl.UserID, EvaluateVoiceLogCreated(vl.ID, facts), ev.Kind)

	case EventScopeApproved:
		scope, err := s.approvals.GetByID(ev.SourceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: scope %d", ErrNotFound, ev.SourceID)
			}
			return err
		}
		hasLine, err := s.invoices.HasLineItemForSource(models.LineItemSourceScope, scope.ID)
		if err != nil {
			return err
		}
		facts := SourceFacts{
			AmountCents:    scope.EstimatedCostCents,
			HasInvoiceLine: hasLine,
		}
		return s.applyMutation(scope.UserID, EvaluateScopeApproved(scope.ID, facts), ev.Kind)

	case EventInvoiceStateChanged:
		return s.ingestInvoiceStateChanged(ev)
	}
	return fmt.Errorf("%w: unknown event kind %q", ErrValidation, ev.Kind)
}

func (s *Service) ingestInvoiceStateChanged(ev DomainEvent) error {
	mut := EvaluateInvoiceStateChanged(ev.SourceID, ev.NewState)
	if mut == nil {
		return nil
	}
	s.fixOpenAlertBySource(ev.UserID, mut.AlertType, mut.SourceID, ev.Kind)

	// Billing the invoice also falsifies the preconditions of alerts on the
	// sources its line items reference.
	items, err := s.invoices.ListLineItems(ev.SourceID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if alertType, ok := sourceAlertType(item.SourceKind); ok {
			s.fixOpenAlertBySource(ev.UserID, alertType, item.SourceID, ev.Kind)
		}
	}
	return nil
}

// applyMutation persists a rule's decision. A nil mutation means the rule
// matched nothing.
func (s *Service) applyMutation(userID uint, mut *AlertMutation, origin EventKind) error {
	if mut == nil {
		return nil
	}
	switch mut.Op {
	case OpOpen:
		alert := &models.Alert{
			UUID:        uuid.New().String(),
			UserID:      userID,
			Type:        mut.AlertType,
			SourceID:    mut.SourceID,
			AmountCents: mut.AmountCents,
			Status:      models.AlertStatusOpen,
		}
		created, err := s.alerts.CreateIfNoOpen(alert)
		if err != nil {
			return err
		}
		if !created {
			// An open alert for this source already exists.
			return nil
		}
		s.appendAuditEvent(alert.ID, systemActor, models.AlertActionOpened, OpenedMetadata{
			Event:       origin,
			AmountCents: mut.AmountCents,
		})
		s.notifyContractor(userID, "money_alert_opened", fmt.Sprintf("alert:%s:opened", alert.UUID), map[string]string{
			"subject":    "Money alert: work may be going unbilled",
			"alert_type": mut.AlertType,
		})
		return nil
	case OpFix:
		s.fixOpenAlertBySource(userID, mut.AlertType, mut.SourceID, origin)
		return nil
	}
	return fmt.Errorf("%w: unknown mutation op %q", ErrValidation, mut.Op)
}

// fixOpenAlertBySource fixes the matching open alert if one exists. Losing
// the conditional update means another trigger already handled it.
func (s *Service) fixOpenAlertBySource(userID uint, alertType string, sourceID uint, origin EventKind) {
	alert, err := s.alerts.FindOpenBySource(userID, alertType, sourceID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Alerts] Lookup for open %s alert on source %d failed: %v", alertType, sourceID, err)
		}
		return
	}
	won, err := s.alerts.TransitionStatus(alert.ID, models.AlertStatusOpen, models.AlertStatusFixed, nil)
	if err != nil {
		log.Errorf("[Alerts] Auto-fix of alert %d failed: %v", alert.ID, err)
		return
	}
	if won {
		s.appendAuditEvent(alert.ID, systemActor, models.AlertActionFixed, OpenedMetadata{Event: origin, AmountCents: alert.AmountCents})
	}
}

// FixAlert applies a remedial action to an open alert. Exactly one concurrent
// caller wins the open -> fixed transition; losers get ErrInvalidState along
// with the alert's actual state so they can report "already handled". Alerts
// belong to one contractor; another caller's id gets ErrNotFound, never a
// hint that the alert exists.
func (s *Service) FixAlert(ctx context.Context, alertID, userID uint, action FixAction, params FixParams) (*models.Alert, error) {
	_ = ctx
	alert, err := s.loadOwnedAlert(alertID, userID)
	if err != nil {
		return nil, err
	}

	if !FixActionAllowed(alert.Type, action) {
		return alert, fmt.Errorf("%w: action %q does not apply to %s alerts", ErrValidation, action, alert.Type)
	}
	if action == FixAttachToInvoice {
		if params.InvoiceID == 0 {
			return alert, fmt.Errorf("%w: attach_to_invoice requires invoice_id", ErrValidation)
		}
		if _, err := s.invoices.GetByID(params.InvoiceID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return alert, fmt.Errorf("%w: invoice %d does not exist", ErrValidation, params.InvoiceID)
			}
			return alert, err
		}
	}

	won, err := s.alerts.TransitionStatus(alert.ID, models.AlertStatusOpen, models.AlertStatusFixed, nil)
	if err != nil {
		return alert, err
	}
	if !won {
		current, err := s.alerts.GetByID(alertID)
		if err != nil {
			return alert, err
		}
		return current, ErrInvalidState
	}
	alert.Status = models.AlertStatusFixed

	s.appendAuditEvent(alert.ID, userActor(userID), models.AlertActionFixed, FixedMetadata{
		Action:    action,
		InvoiceID: params.InvoiceID,
	})

	// The transition is committed. Side effects complete or are logged as a
	// degraded outcome; they are never rolled back.
	if err := s.performFixSideEffects(alert, action, params); err != nil {
		log.Warnf("[Alerts] Alert %d fixed but side effects incomplete: %v", alert.ID, err)
	}

	s.notifyContractor(alert.UserID, "money_alert_fixed", fmt.Sprintf("alert:%s:fixed", alert.UUID), map[string]string{
		"subject":    "Money alert fixed",
		"alert_type": alert.Type,
	})
	return alert, nil
}

func (s *Service) performFixSideEffects(alert *models.Alert, action FixAction, params FixParams) error {
	switch action {
	case FixAttachToInvoice:
		return s.attachReceiptToInvoice(alert, params.InvoiceID)
	case FixCreateInvoice:
		return s.createInvoiceFromSource(alert)
	case FixSendInvoice:
		sent, err := s.invoices.MarkSent(alert.SourceID, time.Now())
		if err != nil {
			return err
		}
		if sent {
			return s.Ingest(context.Background(), DomainEvent{
				Kind:     EventInvoiceStateChanged,
				UserID:   alert.UserID,
				SourceID: alert.SourceID,
				NewState: models.InvoiceStatusSent,
			})
		}
		return nil
	}
	return fmt.Errorf("%w: unknown fix action %q", ErrValidation, action)
}

func (s *Service) attachReceiptToInvoice(alert *models.Alert, invoiceID uint) error {
	receipt, err := s.receipts.GetByID(alert.SourceID)
	if err != nil {
		return err
	}
	attached, err := s.receipts.AttachToInvoice(receipt.ID, invoiceID)
	if err != nil {
		return err
	}
	if !attached {
		// Someone already attached it; nothing more to bill.
		return nil
	}
	return s.invoices.CreateLineItem(&models.InvoiceLineItem{
		InvoiceID:   invoiceID,
		Description: fmt.Sprintf("Receipt: %s", receipt.Merchant),
		AmountCents: receipt.AmountCents,
		SourceKind:  models.LineItemSourceReceipt,
		SourceID:    receipt.ID,
	})
}

// createInvoiceFromSource creates a draft invoice on the source's project
// with one line item derived from the source.
func (s *Service) createInvoiceFromSource(alert *models.Alert) error {
	var (
		projectID   uint
		description string
		sourceKind  string
		amountCents = alert.AmountCents
	)

	switch alert.Type {
	case models.AlertTypeReceiptUnbilled:
		receipt, err := s.receipts.GetByID(alert.SourceID)
		if err != nil {
			return err
		}
		projectID = receipt.ProjectID
		description = fmt.Sprintf("Receipt: %s", receipt.Merchant)
		sourceKind = models.LineItemSourceReceipt
		amountCents = receipt.AmountCents
	case models.AlertTypeScopeApprovedNoInvoice:
		scope, err := s.approvals.GetByID(alert.SourceID)
		if err != nil {
			return err
		}
		projectID = scope.ProjectID
		description = scope.Description
		sourceKind = models.LineItemSourceScope
		amountCents = scope.EstimatedCostCents
	case models.AlertTypeVoiceLogNoInvoice:
		vl, err := s.voiceLogs.GetByID(alert.SourceID)
		if err != nil {
			return err
		}
		projectID = vl.ProjectID
		description = vl.Summary
		sourceKind = models.LineItemSourceVoiceLog
		amountCents = vl.EstimatedCents
	default:
		return fmt.Errorf("%w: create_invoice does not apply to %s alerts", ErrValidation, alert.Type)
	}

	invoice := &models.Invoice{
		UserID:    alert.UserID,
		ProjectID: projectID,
		Status:    models.InvoiceStatusDraft,
	}
	if err := s.invoices.Create(invoice); err != nil {
		return err
	}
	if err := s.invoices.CreateLineItem(&models.InvoiceLineItem{
		InvoiceID:   invoice.ID,
		Description: description,
		AmountCents: amountCents,
		SourceKind:  sourceKind,
		SourceID:    alert.SourceID,
	}); err != nil {
		return err
	}

	switch sourceKind {
	case models.LineItemSourceReceipt:
		_, err := s.receipts.AttachToInvoice(alert.SourceID, invoice.ID)
		return err
	case models.LineItemSourceVoiceLog:
		_, err := s.voiceLogs.AttachToInvoice(alert.SourceID, invoice.ID)
		return err
	}
	return nil
}

// ResolveAlert dismisses an open alert with a reason from the closed enum.
// Only the owning contractor's id passes the ownership check.
func (s *Service) ResolveAlert(ctx context.Context, alertID, userID uint, reason ResolveReason, note string) (*models.Alert, error) {
	_ = ctx
	if !ValidResolveReason(reason) {
		return nil, fmt.Errorf("%w: invalid resolve reason %q", ErrValidation, reason)
	}

	alert, err := s.loadOwnedAlert(alertID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	won, err := s.alerts.TransitionStatus(alert.ID, models.AlertStatusOpen, models.AlertStatusResolved, map[string]interface{}{
		"reason_resolved": string(reason),
		"resolved_note":   note,
		"resolved_at":     &now,
	})
	if err != nil {
		return alert, err
	}
	if !won {
		current, err := s.alerts.GetByID(alertID)
		if err != nil {
			return alert, err
		}
		return current, ErrInvalidState
	}
	alert.Status = models.AlertStatusResolved
	alert.ReasonResolved = string(reason)
	alert.ResolvedNote = note
	alert.ResolvedAt = &now

	s.appendAuditEvent(alert.ID, userActor(userID), models.AlertActionResolved, ResolvedMetadata{
		Reason: reason,
		Note:   note,
	})
	return alert, nil
}

// Overview is the read model for the contractor's alert list.
type Overview struct {
	Alerts     []models.Alert `json:"alerts"`
	TotalCents int64          `json:"total_cents"`
	Severity   Severity       `json:"severity"`
}

// GetOverview lists open alerts with severity recomputed from the aggregate.
func (s *Service) GetOverview(ctx context.Context, userID uint) (*Overview, error) {
	_ = ctx
	open, err := s.alerts.ListOpenByUser(userID)
	if err != nil {
		return nil, err
	}
	total := TotalOpenCents(open)
	return &Overview{
		Alerts:     open,
		TotalCents: total,
		Severity:   Classify(total),
	}, nil
}

// ListAuditTrail returns the append-only event history for an alert the
// caller owns.
func (s *Service) ListAuditTrail(ctx context.Context, alertID, userID uint) ([]models.AlertEvent, error) {
	_ = ctx
	if _, err := s.loadOwnedAlert(alertID, userID); err != nil {
		return nil, err
	}
	return s.alerts.ListEvents(alertID)
}

// loadOwnedAlert loads an alert and enforces contractor ownership. A foreign
// alert id is indistinguishable from a missing one.
func (s *Service) loadOwnedAlert(alertID, userID uint) (*models.Alert, error) {
	alert, err := s.alerts.GetByID(alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: alert %d", ErrNotFound, alertID)
		}
		return nil, err
	}
	if alert.UserID != userID {
		return nil, fmt.Errorf("%w: alert %d", ErrNotFound, alertID)
	}
	return alert, nil
}

func userActor(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// OpenDraftUnsentAlert opens an invoice_not_sent alert for a stale draft.
// Called by the scheduler's durational sweep; the open-alert dedup makes
// repeated sweeps harmless.
func (s *Service) OpenDraftUnsentAlert(ctx context.Context, invoice models.Invoice) error {
	_ = ctx
	return s.applyMutation(invoice.UserID, &AlertMutation{
		Op:          OpOpen,
		AlertType:   models.AlertTypeInvoiceNotSent,
		SourceID:    invoice.ID,
		AmountCents: invoice.TotalCents,
	}, EventInvoiceStateChanged)
}

func (s *Service) appendAuditEvent(alertID uint, actor, action string, meta EventMetadata) {
	encoded, err := EncodeMetadata(meta)
	if err != nil {
		log.Errorf("[Alerts] Failed to encode audit metadata for alert %d: %v", alertID, err)
		encoded = ""
	}
	if err := s.alerts.AppendEvent(&models.AlertEvent{
		AlertID:      alertID,
		Actor:        actor,
		Action:       action,
		MetadataJSON: encoded,
	}); err != nil {
		log.Errorf("[Alerts] Failed to append audit event for alert %d: %v", alertID, err)
	}
}

func (s *Service) notifyContractor(userID uint, templateID, dedupKey string, vars map[string]string) {
	if s.dispatcher == nil {
		return
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		log.Warnf("[Alerts] Cannot address notification, user %d lookup failed: %v", userID, err)
		return
	}
	if !s.dispatcher.Send(notify.Notification{
		Channel:    notify.ChannelEmail,
		Recipient:  user.Email,
		TemplateID: templateID,
		Vars:       vars,
		DedupKey:   dedupKey,
	}) {
		log.Warnf("[Alerts] Notification %s for user %d not dispatched", templateID, userID)
	}
}

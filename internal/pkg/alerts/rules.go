package alerts

import "github.com/CrewBill/CrewBill/app/models"

// SourceFacts are the precomputed inputs a detection rule needs. The service
// gathers them from storage; the rules themselves stay pure so they can be
// reasoned about and tested without I/O.
type SourceFacts struct {
	AmountCents     int64
	Billable        bool
	LinkedToInvoice bool
	HasInvoiceLine  bool
}

// MutationOp says what a rule wants done to the alert store.
type MutationOp string

const (
	OpOpen MutationOp = "open"
	OpFix  MutationOp = "fix"
)

// AlertMutation is zero-or-one store change produced by a rule.
type AlertMutation struct {
	Op          MutationOp
	AlertType   string
	SourceID    uint
	AmountCents int64
}

// EvaluateReceiptCreated opens a receipt_unbilled alert for a billable,
// unlinked receipt. The open-alert dedup happens at the store, not here.
func EvaluateReceiptCreated(receiptID uint, f SourceFacts) *AlertMutation {
	if !f.Billable || f.LinkedToInvoice {
		return nil
	}
	return &AlertMutation{
		Op:          OpOpen,
		AlertType:   models.AlertTypeReceiptUnbilled,
		SourceID:    receiptID,
		AmountCents: f.AmountCents,
	}
}

// EvaluateScopeApproved opens a scope_approved_no_invoice alert when no
// invoice line references the scope item yet.
func EvaluateScopeApproved(scopeID uint, f SourceFacts) *AlertMutation {
	if f.HasInvoiceLine {
		return nil
	}
	return &AlertMutation{
		Op:          OpOpen,
		AlertType:   models.AlertTypeScopeApprovedNoInvoice,
		SourceID:    scopeID,
		AmountCents: f.AmountCents,
	}
}

// EvaluateVoiceLogCreated opens a voice_log_no_invoice alert for a billable,
// unlinked voice log.
func EvaluateVoiceLogCreated(voiceLogID uint, f SourceFacts) *AlertMutation {
	if !f.Billable || f.LinkedToInvoice {
		return nil
	}
	return &AlertMutation{
		Op:          OpOpen,
		AlertType:   models.AlertTypeVoiceLogNoInvoice,
		SourceID:    voiceLogID,
		AmountCents: f.AmountCents,
	}
}

// EvaluateInvoiceStateChanged fixes alerts whose precondition the new state
// falsified: a sent or paid invoice is no longer "drafted and unsent".
func EvaluateInvoiceStateChanged(invoiceID uint, newState string) *AlertMutation {
	switch newState {
	case models.InvoiceStatusSent, models.InvoiceStatusPaid:
		return &AlertMutation{
			Op:        OpFix,
			AlertType: models.AlertTypeInvoiceNotSent,
			SourceID:  invoiceID,
		}
	}
	return nil
}

// sourceAlertType maps an invoice line source kind to the alert type its
// billing falsifies.
func sourceAlertType(sourceKind string) (string, bool) {
	switch sourceKind {
	case models.LineItemSourceReceipt:
		return models.AlertTypeReceiptUnbilled, true
	case models.LineItemSourceScope:
		return models.AlertTypeScopeApprovedNoInvoice, true
	case models.LineItemSourceVoiceLog:
		return models.AlertTypeVoiceLogNoInvoice, true
	}
	return "", false
}

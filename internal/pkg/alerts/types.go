package alerts

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/CrewBill/CrewBill/app/models"
)

var (
	// ErrInvalidState marks a transition attempted on a non-open alert. This
	// is expected under concurrency: callers translate it into "already
	// handled", not a server error.
	ErrInvalidState = errors.New("alert is not open")
	// ErrNotFound marks an unknown alert id.
	ErrNotFound = errors.New("alert not found")
	// ErrValidation marks a malformed fix/resolve request.
	ErrValidation = errors.New("validation failed")
)

// EventKind identifies a domain event entering the ingest boundary.
type EventKind string

const (
	EventReceiptCreated      EventKind = "receipt_created"
	EventScopeApproved       EventKind = "scope_approved"
	EventVoiceLogCreated     EventKind = "voice_log_created"
	EventInvoiceStateChanged EventKind = "invoice_state_changed"
)

// DomainEvent is the ingest payload. SourceID refers to the receipt, scope
// proof, voice log or invoice the event is about.
type DomainEvent struct {
	Kind     EventKind `json:"kind"`
	UserID   uint      `json:"user_id"`
	SourceID uint      `json:"source_id"`
	NewState string    `json:"new_state,omitempty"` // invoice_state_changed only
}

// FixAction is the closed set of remedial actions, parameterized by alert
// type.
type FixAction string

const (
	FixAttachToInvoice FixAction = "attach_to_invoice"
	FixCreateInvoice   FixAction = "create_invoice"
	FixSendInvoice     FixAction = "send_invoice"
)

// FixParams carries the parameters a fix action needs.
type FixParams struct {
	InvoiceID uint `json:"invoice_id,omitempty"`
}

var allowedFixActions = map[string][]FixAction{
	models.AlertTypeReceiptUnbilled:        {FixAttachToInvoice, FixCreateInvoice},
	models.AlertTypeScopeApprovedNoInvoice: {FixCreateInvoice},
	models.AlertTypeVoiceLogNoInvoice:      {FixCreateInvoice},
	models.AlertTypeInvoiceNotSent:         {FixSendInvoice},
}

// FixActionAllowed reports whether the action applies to the alert type.
func FixActionAllowed(alertType string, action FixAction) bool {
	for _, a := range allowedFixActions[alertType] {
		if a == action {
			return true
		}
	}
	return false
}

// ResolveReason is the closed reason enum for explicit dismissals.
type ResolveReason string

const (
	ReasonIncludedInContract ResolveReason = "included_in_contract"
	ReasonWarranty           ResolveReason = "warranty"
	ReasonPersonal           ResolveReason = "personal"
	ReasonCustomerRefused    ResolveReason = "customer_refused"
	ReasonOther              ResolveReason = "other"
)

// ValidResolveReason reports whether the reason is in the closed enum.
func ValidResolveReason(r ResolveReason) bool {
	switch r {
	case ReasonIncludedInContract, ReasonWarranty, ReasonPersonal, ReasonCustomerRefused, ReasonOther:
		return true
	}
	return false
}

// EventMetadata is the tagged metadata attached to audit trail entries. Each
// variant validates itself at construction time; untyped blobs are not
// accepted.
type EventMetadata interface {
	MetadataKind() string
	Validate() error
}

// OpenedMetadata records what opened an alert.
type OpenedMetadata struct {
	Event       EventKind `json:"event"`
	AmountCents int64     `json:"amount_cents"`
}

func (m OpenedMetadata) MetadataKind() string { return "opened" }

func (m OpenedMetadata) Validate() error {
	if m.Event == "" {
		return fmt.Errorf("%w: opened metadata requires an event kind", ErrValidation)
	}
	return nil
}

// FixedMetadata records which remedial action fixed an alert.
type FixedMetadata struct {
	Action    FixAction `json:"action"`
	InvoiceID uint      `json:"invoice_id,omitempty"`
}

func (m FixedMetadata) MetadataKind() string { return "fixed" }

func (m FixedMetadata) Validate() error {
	if m.Action == "" {
		return fmt.Errorf("%w: fixed metadata requires an action", ErrValidation)
	}
	return nil
}

// ResolvedMetadata records the dismissal reason.
type ResolvedMetadata struct {
	Reason ResolveReason `json:"reason"`
	Note   string        `json:"note,omitempty"`
}

func (m ResolvedMetadata) MetadataKind() string { return "resolved" }

func (m ResolvedMetadata) Validate() error {
	if !ValidResolveReason(m.Reason) {
		return fmt.Errorf("%w: invalid resolve reason %q", ErrValidation, m.Reason)
	}
	return nil
}

// EncodeMetadata validates and serializes metadata with its discriminator.
func EncodeMetadata(m EventMetadata) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	wrapped, err := json.Marshal(map[string]json.RawMessage{
		m.MetadataKind(): payload,
	})
	if err != nil {
		return "", err
	}
	return string(wrapped), nil
}

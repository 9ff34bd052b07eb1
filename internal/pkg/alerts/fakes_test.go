package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/app/repository"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"gorm.io/gorm"
)

// In-memory repository fakes with the same conditional-update semantics as
// the GORM implementations, guarded by a mutex so concurrency tests exercise
// the single-winner guarantee.

type memAlertRepo struct {
	mu     sync.Mutex
	seq    uint
	alerts map[uint]*models.Alert
	events []models.AlertEvent
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: make(map[uint]*models.Alert)}
}

func (r *memAlertRepo) CreateIfNoOpen(alert *models.Alert) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.UserID == alert.UserID && a.Type == alert.Type && a.SourceID == alert.SourceID && a.Status == models.AlertStatusOpen {
			return false, nil
		}
	}
	r.seq++
	alert.ID = r.seq
	alert.CreatedAt = time.Now()
	stored := *alert
	r.alerts[alert.ID] = &stored
	return true, nil
}

func (r *memAlertRepo) GetByID(id uint) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memAlertRepo) GetByUUID(uuid string) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.UUID == uuid {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAlertRepo) FindOpenBySource(userID uint, alertType string, sourceID uint) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.UserID == userID && a.Type == alertType && a.SourceID == sourceID && a.Status == models.AlertStatusOpen {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAlertRepo) ListOpenByUser(userID uint) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for _, a := range r.alerts {
		if a.UserID == userID && a.Status == models.AlertStatusOpen {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memAlertRepo) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	if v, ok := updates["reason_resolved"].(string); ok {
		a.ReasonResolved = v
	}
	if v, ok := updates["resolved_note"].(string); ok {
		a.ResolvedNote = v
	}
	if v, ok := updates["resolved_at"].(*time.Time); ok {
		a.ResolvedAt = v
	}
	return true, nil
}

func (r *memAlertRepo) AppendEvent(event *models.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uint(len(r.events) + 1)
	event.CreatedAt = time.Now()
	r.events = append(r.events, *event)
	return nil
}

func (r *memAlertRepo) ListEvents(alertID uint) ([]models.AlertEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AlertEvent
	for _, e := range r.events {
		if e.AlertID == alertID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memReceiptRepo struct {
	mu       sync.Mutex
	receipts map[uint]*models.Receipt
}

func newMemReceiptRepo() *memReceiptRepo {
	return &memReceiptRepo{receipts: make(map[uint]*models.Receipt)}
}

func (r *memReceiptRepo) put(receipt models.Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts[receipt.ID] = &receipt
}

func (r *memReceiptRepo) GetByID(id uint) (*models.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.receipts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *memReceiptRepo) AttachToInvoice(receiptID, invoiceID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.receipts[receiptID]
	if !ok || rec.InvoiceID != nil {
		return false, nil
	}
	rec.InvoiceID = &invoiceID
	return true, nil
}

type memVoiceLogRepo struct {
	mu   sync.Mutex
	logs map[uint]*models.VoiceLog
}

func newMemVoiceLogRepo() *memVoiceLogRepo {
	return &memVoiceLogRepo{logs: make(map[uint]*models.VoiceLog)}
}

func (r *memVoiceLogRepo) put(vl models.VoiceLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[vl.ID] = &vl
}

func (r *memVoiceLogRepo) GetByID(id uint) (*models.VoiceLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vl, ok := r.logs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *vl
	return &copied, nil
}

func (r *memVoiceLogRepo) AttachToInvoice(voiceLogID, invoiceID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vl, ok := r.logs[voiceLogID]
	if !ok || vl.InvoiceID != nil {
		return false, nil
	}
	vl.InvoiceID = &invoiceID
	return true, nil
}

type memInvoiceRepo struct {
	mu       sync.Mutex
	seq      uint
	itemSeq  uint
	invoices map[uint]*models.Invoice
	items    []models.InvoiceLineItem
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{invoices: make(map[uint]*models.Invoice)}
}

func (r *memInvoiceRepo) put(invoice models.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if invoice.ID > r.seq {
		r.seq = invoice.ID
	}
	r.invoices[invoice.ID] = &invoice
}

func (r *memInvoiceRepo) Create(invoice *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	invoice.ID = r.seq
	invoice.CreatedAt = time.Now()
	stored := *invoice
	r.invoices[invoice.ID] = &stored
	return nil
}

func (r *memInvoiceRepo) GetByID(id uint) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *inv
	return &copied, nil
}

func (r *memInvoiceRepo) FindDraftByProject(projectID uint) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.ProjectID == projectID && inv.Status == models.InvoiceStatusDraft {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memInvoiceRepo) CreateLineItem(item *models.InvoiceLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[item.InvoiceID]
	if !ok {
		return fmt.Errorf("invoice %d not found", item.InvoiceID)
	}
	r.itemSeq++
	item.ID = r.itemSeq
	item.CreatedAt = time.Now()
	r.items = append(r.items, *item)
	inv.TotalCents += item.AmountCents
	return nil
}

func (r *memInvoiceRepo) ListLineItems(invoiceID uint) ([]models.InvoiceLineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.InvoiceLineItem
	for _, item := range r.items {
		if item.InvoiceID == invoiceID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) HasLineItemForSource(sourceKind string, sourceID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.SourceKind == sourceKind && item.SourceID == sourceID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memInvoiceRepo) MarkPaid(id uint, providerPaymentID string, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.Status == models.InvoiceStatusPaid {
		return false, nil
	}
	inv.Status = models.InvoiceStatusPaid
	inv.ProviderPaymentID = providerPaymentID
	inv.PaidAt = &paidAt
	return true, nil
}

func (r *memInvoiceRepo) MarkSent(id uint, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.Status != models.InvoiceStatusDraft {
		return false, nil
	}
	inv.Status = models.InvoiceStatusSent
	inv.SentAt = &sentAt
	return true, nil
}

func (r *memInvoiceRepo) ListDraftsOlderThan(cutoff time.Time) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Invoice
	for _, inv := range r.invoices {
		if inv.Status == models.InvoiceStatusDraft && !inv.CreatedAt.After(cutoff) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

// memApprovalRepo only implements what the alert engine touches; the embedded
// interface panics on anything else.
type memApprovalRepo struct {
	repository.ApprovalRepository
	mu   sync.Mutex
	reqs map[uint]*models.ApprovalRequest
}

func newMemApprovalRepo() *memApprovalRepo {
	return &memApprovalRepo{reqs: make(map[uint]*models.ApprovalRequest)}
}

func (r *memApprovalRepo) put(req models.ApprovalRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs[req.ID] = &req
}

func (r *memApprovalRepo) GetByID(id uint) (*models.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *req
	return &copied, nil
}

type memUserRepo struct {
	users map[uint]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[uint]*models.User{
		1: {ID: 1, Name: "Sam Carpenter", Email: "sam@example.com"},
	}}
}

func (r *memUserRepo) GetByID(id uint) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (d *recordingDispatcher) Send(n notify.Notification) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return true
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type testEnv struct {
	alerts     *memAlertRepo
	receipts   *memReceiptRepo
	voiceLogs  *memVoiceLogRepo
	invoices   *memInvoiceRepo
	approvals  *memApprovalRepo
	users      *memUserRepo
	dispatcher *recordingDispatcher
	svc        *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		alerts:     newMemAlertRepo(),
		receipts:   newMemReceiptRepo(),
		voiceLogs:  newMemVoiceLogRepo(),
		invoices:   newMemInvoiceRepo(),
		approvals:  newMemApprovalRepo(),
		users:      newMemUserRepo(),
		dispatcher: &recordingDispatcher{},
	}
	env.svc = NewService(env.alerts, env.receipts, env.voiceLogs, env.invoices, env.approvals, env.users, env.dispatcher)
	return env
}

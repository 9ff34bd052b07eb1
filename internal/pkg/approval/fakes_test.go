package approval

import (
	"sync"
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/CrewBill/CrewBill/app/repository"
	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/invoicing"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"gorm.io/gorm"
)

type memApprovalRepo struct {
	mu            sync.Mutex
	seq           uint
	reqs          map[uint]*models.ApprovalRequest
	notifSeq      uint
	notifications map[[2]interface{}]*models.ApprovalNotification
}

func newMemApprovalRepo() *memApprovalRepo {
	return &memApprovalRepo{
		reqs:          make(map[uint]*models.ApprovalRequest),
		notifications: make(map[[2]interface{}]*models.ApprovalNotification),
	}
}

func (r *memApprovalRepo) Create(req *models.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	req.ID = r.seq
	req.CreatedAt = time.Now()
	stored := *req
	r.reqs[req.ID] = &stored
	return nil
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

func (r *memApprovalRepo) GetByToken(token string) (*models.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.reqs {
		if req.ApprovalToken == token {
			copied := *req
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memApprovalRepo) ListByUser(userID uint, offset, limit int) ([]models.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ApprovalRequest
	for _, req := range r.reqs {
		if req.UserID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *memApprovalRepo) Decide(id uint, to string, decidedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[id]
	if !ok || req.Status != models.ApprovalStatusPending {
		return false, nil
	}
	req.Status = to
	req.DecidedAt = &decidedAt
	return true, nil
}

func (r *memApprovalRepo) SetInvoiceLineItem(id uint, lineItemID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[id]
	if !ok || req.InvoiceLineItemID != nil {
		return false, nil
	}
	req.InvoiceLineItemID = &lineItemID
	return true, nil
}

func (r *memApprovalRepo) ListPendingExpiringBefore(now, deadline time.Time) ([]models.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ApprovalRequest
	for _, req := range r.reqs {
		if req.Status == models.ApprovalStatusPending && !req.TokenExpiresAt.After(deadline) && req.TokenExpiresAt.After(now) {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *memApprovalRepo) ListPendingPastExpiry(now time.Time) ([]models.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ApprovalRequest
	for _, req := range r.reqs {
		if req.Status == models.ApprovalStatusPending && !req.TokenExpiresAt.After(now) {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *memApprovalRepo) CreateNotificationIfAbsent(requestID uint, notificationType string) (bool, *models.ApprovalNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]interface{}{requestID, notificationType}
	if existing, ok := r.notifications[key]; ok {
		copied := *existing
		return false, &copied, nil
	}
	r.notifSeq++
	stored := &models.ApprovalNotification{
		ID:                r.notifSeq,
		ApprovalRequestID: requestID,
		Type:              notificationType,
		CreatedAt:         time.Now(),
	}
	r.notifications[key] = stored
	copied := *stored
	return true, &copied, nil
}

func (r *memApprovalRepo) RecordNotificationAttempt(id uint, sentAt *time.Time, sendErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			n.SendAttempts++
			n.SentAt = sentAt
			n.LastError = sendErr
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// setExpiry rewrites the stored token window, for tests that need an already
// elapsed window without waiting.
func (r *memApprovalRepo) setExpiry(id uint, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.reqs[id]; ok {
		req.TokenExpiresAt = at
	}
}

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
	return true, nil
}

func (r *memAlertRepo) AppendEvent(event *models.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *memAlertRepo) ListEvents(alertID uint) ([]models.AlertEvent, error) {
	return nil, nil
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
	r.itemSeq++
	item.ID = r.itemSeq
	r.items = append(r.items, *item)
	if inv, ok := r.invoices[item.InvoiceID]; ok {
		inv.TotalCents += item.AmountCents
	}
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
	return nil, nil
}

type memUserRepo struct{}

func (memUserRepo) GetByID(id uint) (*models.User, error) {
	return &models.User{ID: id, Name: "Sam Carpenter", Email: "sam@example.com"}, nil
}

// Unused by the approval flow; embedded interfaces panic if touched.
type stubReceiptRepo struct{ repository.ReceiptRepository }
type stubVoiceLogRepo struct{ repository.VoiceLogRepository }

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

func (d *recordingDispatcher) byTemplate(templateID string) []notify.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.Notification
	for _, n := range d.sent {
		if n.TemplateID == templateID {
			out = append(out, n)
		}
	}
	return out
}

type testEnv struct {
	approvals  *memApprovalRepo
	invoices   *memInvoiceRepo
	alertRepo  *memAlertRepo
	dispatcher *recordingDispatcher
	alertS     *alerts.Service
	svc        *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		approvals:  newMemApprovalRepo(),
		invoices:   newMemInvoiceRepo(),
		alertRepo:  newMemAlertRepo(),
		dispatcher: &recordingDispatcher{},
	}
	env.alertS = alerts.NewService(env.alertRepo, stubReceiptRepo{}, stubVoiceLogRepo{}, env.invoices, env.approvals, memUserRepo{}, env.dispatcher)
	invoicingS := invoicing.NewService(env.invoices, env.alertS)
	env.svc = NewService(env.approvals, memUserRepo{}, invoicingS, env.alertS, env.dispatcher)
	return env
}

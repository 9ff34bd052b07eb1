package repository

import (
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"gorm.io/gorm"
)

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates an invoice repository backed by GORM.
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

func (r *invoiceRepository) GetByID(id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.First(&invoice, id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindDraftByProject(projectID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.
		Where("project_id = ? AND status = ?", projectID, models.InvoiceStatusDraft).
		Order("created_at DESC").
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) CreateLineItem(item *models.InvoiceLineItem) error {
	if err := r.db.Create(item).Error; err != nil {
		return err
	}
	return r.db.Model(&models.Invoice{}).
		Where("id = ?", item.InvoiceID).
		Update("total_cents", gorm.Expr("total_cents + ?", item.AmountCents)).Error
}

func (r *invoiceRepository) ListLineItems(invoiceID uint) ([]models.InvoiceLineItem, error) {
	var items []models.InvoiceLineItem
	err := r.db.Where("invoice_id = ?", invoiceID).Order("id ASC").Find(&items).Error
	return items, err
}

func (r *invoiceRepository) HasLineItemForSource(sourceKind string, sourceID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.InvoiceLineItem{}).
		Where("source_kind = ? AND source_id = ?", sourceKind, sourceID).
		Count(&count).Error
	return count > 0, err
}

// MarkPaid sets the invoice to paid unless it already is. Designed as "set
// status to paid", not "apply payment", so webhook redelivery is harmless.
func (r *invoiceRepository) MarkPaid(id uint, providerPaymentID string, paidAt time.Time) (bool, error) {
	tx := r.db.Model(&models.Invoice{}).
		Where("id = ? AND status <> ?", id, models.InvoiceStatusPaid).
		Updates(map[string]interface{}{
			"status":              models.InvoiceStatusPaid,
			"provider_payment_id": providerPaymentID,
			"paid_at":             &paidAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *invoiceRepository) MarkSent(id uint, sentAt time.Time) (bool, error) {
	tx := r.db.Model(&models.Invoice{}).
		Where("id = ? AND status = ?", id, models.InvoiceStatusDraft).
		Updates(map[string]interface{}{
			"status":  models.InvoiceStatusSent,
			"sent_at": &sentAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *invoiceRepository) ListDraftsOlderThan(cutoff time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.
		Where("status = ? AND created_at <= ?", models.InvoiceStatusDraft, cutoff).
		Find(&invoices).Error
	return invoices, err
}

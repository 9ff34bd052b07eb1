package repository

import (
	"time"

	"github.com/CrewBill/CrewBill/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type approvalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository creates an approval repository backed by GORM.
func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(req *models.ApprovalRequest) error {
	return r.db.Create(req).Error
}

func (r *approvalRepository) GetByID(id uint) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	if err := r.db.First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) GetByToken(token string) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	if err := r.db.Where("approval_token = ?", token).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) ListByUser(userID uint, offset, limit int) ([]models.ApprovalRequest, error) {
	var reqs []models.ApprovalRequest
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&reqs).Error
	return reqs, err
}

// Decide applies the pending -> terminal transition. Client decisions and the
// scheduler expiry sweep race through this same conditional update; zero rows
// affected means the other trigger already won.
func (r *approvalRepository) Decide(id uint, to string, decidedAt time.Time) (bool, error) {
	tx := r.db.Model(&models.ApprovalRequest{}).
		Where("id = ? AND status = ?", id, models.ApprovalStatusPending).
		Updates(map[string]interface{}{
			"status":     to,
			"decided_at": &decidedAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// SetInvoiceLineItem records the line item created for an approval, guarded
// against double application by the IS NULL condition.
func (r *approvalRepository) SetInvoiceLineItem(id uint, lineItemID uint) (bool, error) {
	tx := r.db.Model(&models.ApprovalRequest{}).
		Where("id = ? AND invoice_line_item_id IS NULL", id).
		Update("invoice_line_item_id", lineItemID)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListPendingExpiringBefore returns pending requests whose window closes
// inside (now, deadline]. Both bounds come from the caller so sweeps observe
// one consistent clock.
func (r *approvalRepository) ListPendingExpiringBefore(now, deadline time.Time) ([]models.ApprovalRequest, error) {
	var reqs []models.ApprovalRequest
	err := r.db.
		Where("status = ? AND token_expires_at <= ? AND token_expires_at > ?", models.ApprovalStatusPending, deadline, now).
		Find(&reqs).Error
	return reqs, err
}

func (r *approvalRepository) ListPendingPastExpiry(now time.Time) ([]models.ApprovalRequest, error) {
	var reqs []models.ApprovalRequest
	err := r.db.
		Where("status = ? AND token_expires_at <= ?", models.ApprovalStatusPending, now).
		Find(&reqs).Error
	return reqs, err
}

// CreateNotificationIfAbsent inserts the (request, type) marker row if it does
// not exist yet. The unique index plus DoNothing makes overlapping sweeps
// agree on a single creator.
func (r *approvalRepository) CreateNotificationIfAbsent(requestID uint, notificationType string) (bool, *models.ApprovalNotification, error) {
	record := &models.ApprovalNotification{
		ApprovalRequestID: requestID,
		Type:              notificationType,
	}
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "approval_request_id"},
			{Name: "type"},
		},
		DoNothing: true,
	}).Create(record)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.ApprovalNotification
	if err := r.db.Where("approval_request_id = ? AND type = ?", requestID, notificationType).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *approvalRepository) RecordNotificationAttempt(id uint, sentAt *time.Time, sendErr string) error {
	return r.db.Model(&models.ApprovalNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"send_attempts": gorm.Expr("send_attempts + 1"),
			"sent_at":       sentAt,
			"last_error":    sendErr,
		}).Error
}

package repository

import (
	"github.com/CrewBill/CrewBill/app/models"
	"gorm.io/gorm"
)

type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a receipt repository backed by GORM.
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) GetByID(id uint) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.First(&receipt, id).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

// AttachToInvoice links the receipt to an invoice unless another caller
// already did.
func (r *receiptRepository) AttachToInvoice(receiptID, invoiceID uint) (bool, error) {
	tx := r.db.Model(&models.Receipt{}).
		Where("id = ? AND invoice_id IS NULL", receiptID).
		Update("invoice_id", invoiceID)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

type voiceLogRepository struct {
	db *gorm.DB
}

// NewVoiceLogRepository creates a voice log repository backed by GORM.
func NewVoiceLogRepository(db *gorm.DB) VoiceLogRepository {
	return &voiceLogRepository{db: db}
}

func (r *voiceLogRepository) GetByID(id uint) (*models.VoiceLog, error) {
	var vl models.VoiceLog
	if err := r.db.First(&vl, id).Error; err != nil {
		return nil, err
	}
	return &vl, nil
}

func (r *voiceLogRepository) AttachToInvoice(voiceLogID, invoiceID uint) (bool, error) {
	tx := r.db.Model(&models.VoiceLog{}).
		Where("id = ? AND invoice_id IS NULL", voiceLogID).
		Update("invoice_id", invoiceID)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

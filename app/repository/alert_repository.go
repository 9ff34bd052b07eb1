package repository

import (
	"github.com/CrewBill/CrewBill/app/models"
	"gorm.io/gorm"
)

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates an alert repository backed by GORM.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// CreateIfNoOpen inserts the alert unless an open alert for the same
// (user, type, source) already exists. The INSERT ... SELECT WHERE NOT EXISTS
// form keeps the check and the insert in one statement, so concurrent
// detections for the same source produce exactly one open alert.
func (r *alertRepository) CreateIfNoOpen(alert *models.Alert) (bool, error) {
	res := r.db.Exec(`
		INSERT INTO alerts (uuid, user_id, type, source_id, amount_cents, status, reason_resolved, resolved_note, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?, '', '', NOW(), NOW() FROM DUAL
		WHERE NOT EXISTS (
			SELECT 1 FROM alerts
			WHERE user_id = ? AND type = ? AND source_id = ? AND status = ?
		)`,
		alert.UUID, alert.UserID, alert.Type, alert.SourceID, alert.AmountCents, models.AlertStatusOpen,
		alert.UserID, alert.Type, alert.SourceID, models.AlertStatusOpen,
	)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, r.db.Where("uuid = ?", alert.UUID).First(alert).Error
}

func (r *alertRepository) GetByID(id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) GetByUUID(uuid string) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.Where("uuid = ?", uuid).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) FindOpenBySource(userID uint, alertType string, sourceID uint) (*models.Alert, error) {
	var alert models.Alert
	err := r.db.
		Where("user_id = ? AND type = ? AND source_id = ? AND status = ?", userID, alertType, sourceID, models.AlertStatusOpen).
		First(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) ListOpenByUser(userID uint) ([]models.Alert, error) {
	var alerts []models.Alert
	err := r.db.
		Where("user_id = ? AND status = ?", userID, models.AlertStatusOpen).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

// TransitionStatus applies `UPDATE alerts SET ... WHERE id = ? AND status = ?`.
// The returned bool reports whether this caller won the transition.
func (r *alertRepository) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	tx := r.db.Model(&models.Alert{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *alertRepository) AppendEvent(event *models.AlertEvent) error {
	return r.db.Create(event).Error
}

func (r *alertRepository) ListEvents(alertID uint) ([]models.AlertEvent, error) {
	var events []models.AlertEvent
	err := r.db.
		Where("alert_id = ?", alertID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	return events, err
}

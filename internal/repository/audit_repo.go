package repository

import (
	"shift-tracker-bot/internal/models"

	"gorm.io/gorm"
)

// AuditRepository is append-only: no update, no delete.
type AuditRepository interface {
	Create(record *models.AuditRecord) error
	ListByUser(tenantID, userID string, limit int) ([]*models.AuditRecord, error)
}

type GormAuditRepository struct {
	db *gorm.DB
}

func NewGormAuditRepository(db *gorm.DB) (AuditRepository, error) {
	if err := db.AutoMigrate(&models.AuditRecord{}); err != nil {
		return nil, err
	}
	return &GormAuditRepository{db: db}, nil
}

func (r *GormAuditRepository) Create(record *models.AuditRecord) error {
	return r.db.Create(record).Error
}

func (r *GormAuditRepository) ListByUser(tenantID, userID string, limit int) ([]*models.AuditRecord, error) {
	var records []*models.AuditRecord
	query := r.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("ts DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

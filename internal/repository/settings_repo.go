package repository

import (
	"errors"

	"shift-tracker-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SettingsRepository interface {
	Get(tenantID string) (*models.TenantSettings, error)
	Save(settings *models.TenantSettings) error
	ListConfigured() ([]*models.TenantSettings, error)
	SetLastReportMarker(tenantID, marker string) error
}

type GormSettingsRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormSettingsRepository(db *gorm.DB, logger *logrus.Logger) (SettingsRepository, error) {
	if err := db.AutoMigrate(&models.TenantSettings{}); err != nil {
		return nil, err
	}
	return &GormSettingsRepository{db: db, logger: logger}, nil
}

// Get returns the tenant's settings, or defaults when no row exists yet.
func (r *GormSettingsRepository) Get(tenantID string) (*models.TenantSettings, error) {
	var settings models.TenantSettings
	err := r.db.First(&settings, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSettings(tenantID), nil
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to get tenant settings")
		return nil, err
	}
	return &settings, nil
}

func (r *GormSettingsRepository) Save(settings *models.TenantSettings) error {
	if err := settings.Validate(); err != nil {
		r.logger.WithError(err).WithField("tenant_id", settings.TenantID).
			Warn("Rejecting invalid tenant settings")
		return err
	}

	if err := r.db.Save(settings).Error; err != nil {
		r.logger.WithError(err).Error("Failed to save tenant settings")
		return err
	}

	r.logger.WithField("tenant_id", settings.TenantID).Info("Tenant settings saved")
	return nil
}

// ListConfigured returns tenants that can receive automatic reports.
func (r *GormSettingsRepository) ListConfigured() ([]*models.TenantSettings, error) {
	var rows []*models.TenantSettings
	err := r.db.Where("report_time <> '' AND report_interval_days > 0 AND report_channel <> ''").
		Find(&rows).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to list configured tenants")
		return nil, err
	}
	return rows, nil
}

func (r *GormSettingsRepository) SetLastReportMarker(tenantID, marker string) error {
	err := r.db.Model(&models.TenantSettings{}).
		Where("tenant_id = ?", tenantID).
		Update("last_report_marker", marker).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to persist report marker")
	}
	return err
}

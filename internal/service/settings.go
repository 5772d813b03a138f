package service

import (
	"fmt"

	"shift-tracker-bot/internal/apperr"
	"shift-tracker-bot/internal/models"
	"shift-tracker-bot/internal/repository"

	"github.com/sirupsen/logrus"
)

// SettingsService guards tenant configuration behind the privilege flag.
type SettingsService struct {
	repo   repository.SettingsRepository
	logger *logrus.Logger
}

func NewSettingsService(repo repository.SettingsRepository, logger *logrus.Logger) *SettingsService {
	return &SettingsService{repo: repo, logger: logger}
}

func (s *SettingsService) Get(tenantID string) (*models.TenantSettings, error) {
	return s.repo.Get(tenantID)
}

// Update applies mutate to the tenant's settings and saves the result.
// Validation happens on save.
func (s *SettingsService) Update(tenantID string, actor Actor, mutate func(*models.TenantSettings)) (*models.TenantSettings, error) {
	if !actor.Privileged {
		return nil, fmt.Errorf("settings are administrator-owned: %w", apperr.ErrForbidden)
	}

	settings, err := s.repo.Get(tenantID)
	if err != nil {
		return nil, err
	}
	mutate(settings)

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperr.ErrInvalidArgument)
	}
	if err := s.repo.Save(settings); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"actor_id":  actor.UserID,
	}).Info("Tenant settings updated")
	return settings, nil
}

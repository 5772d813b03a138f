package repository

import (
	"errors"

	"shift-tracker-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LeaderboardRow is one aggregated leaderboard entry.
type LeaderboardRow struct {
	UserID       string
	TotalSeconds int64
}

// ErrOpenShiftExists is returned by CreateExclusive when the member
// already holds an active or paused shift.
var ErrOpenShiftExists = errors.New("an open shift already exists")

type ShiftRepository interface {
	Create(shift *models.Shift) error
	CreateExclusive(shift *models.Shift) error
	Update(shift *models.Shift) error
	GetByID(id uint) (*models.Shift, error)
	GetOpenByUser(tenantID, userID string) (*models.Shift, error)
	ListByUser(tenantID, userID string, limit int) ([]*models.Shift, error)
	ListOpen(tenantID, userID string, beforeTS int64) ([]*models.Shift, error)
	SumByUser(tenantID string, fromTS, toTS int64, typeFilter string) (map[string]int64, error)
	Leaderboard(tenantID, typeFilter string, limit, offset int) ([]LeaderboardRow, error)
	DeleteByID(id uint) error
}

type GormShiftRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormShiftRepository(db *gorm.DB, logger *logrus.Logger) (*GormShiftRepository, error) {
	if err := db.AutoMigrate(&models.Shift{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate shifts table")
		return nil, err
	}

	logger.Info("Shift repository initialized")
	return &GormShiftRepository{db: db, logger: logger}, nil
}

func (r *GormShiftRepository) Create(shift *models.Shift) error {
	if !shift.IsValid() {
		r.logger.WithFields(logrus.Fields{
			"tenant_id": shift.TenantID,
			"user_id":   shift.UserID,
		}).Warn("Invalid shift data")
		return errors.New("invalid shift data")
	}

	if err := r.db.Create(shift).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create shift")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":      shift.ID,
		"user_id": shift.UserID,
		"type":    shift.Type,
	}).Info("Shift created")
	return nil
}

// CreateExclusive inserts the shift only if the member holds no open
// shift, check and insert inside one transaction so two concurrent
// starts cannot both pass the check.
func (r *GormShiftRepository) CreateExclusive(shift *models.Shift) error {
	if !shift.IsValid() {
		r.logger.WithFields(logrus.Fields{
			"tenant_id": shift.TenantID,
			"user_id":   shift.UserID,
		}).Warn("Invalid shift data")
		return errors.New("invalid shift data")
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Shift{}).
			Where("tenant_id = ? AND user_id = ? AND status IN (?,?)",
				shift.TenantID, shift.UserID,
				models.ShiftStatusActive, models.ShiftStatusPaused).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrOpenShiftExists
		}
		return tx.Create(shift).Error
	})
	if err != nil {
		if !errors.Is(err, ErrOpenShiftExists) {
			r.logger.WithError(err).Error("Failed to create shift")
		}
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":      shift.ID,
		"user_id": shift.UserID,
		"type":    shift.Type,
	}).Info("Shift created")
	return nil
}

func (r *GormShiftRepository) Update(shift *models.Shift) error {
	if !shift.IsValid() {
		r.logger.WithField("id", shift.ID).Warn("Invalid shift data for update")
		return errors.New("invalid shift data")
	}

	if err := r.db.Save(shift).Error; err != nil {
		r.logger.WithError(err).Error("Failed to update shift")
		return err
	}
	return nil
}

func (r *GormShiftRepository) GetByID(id uint) (*models.Shift, error) {
	var shift models.Shift
	result := r.db.First(&shift, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("id", id).Debug("Shift not found")
		return nil, nil
	}
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get shift by ID")
		return nil, result.Error
	}
	return &shift, nil
}

func (r *GormShiftRepository) GetOpenByUser(tenantID, userID string) (*models.Shift, error) {
	var shift models.Shift
	result := r.db.Where("tenant_id = ? AND user_id = ? AND status IN (?,?)",
		tenantID, userID, models.ShiftStatusActive, models.ShiftStatusPaused).
		First(&shift)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get open shift")
		return nil, result.Error
	}
	return &shift, nil
}

func (r *GormShiftRepository) ListByUser(tenantID, userID string, limit int) ([]*models.Shift, error) {
	var shifts []*models.Shift

	query := r.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("start_ts DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&shifts).Error; err != nil {
		r.logger.WithError(err).Error("Failed to list shifts by user")
		return nil, err
	}
	return shifts, nil
}

// ListOpen returns active and paused shifts for a tenant, oldest first.
// userID and beforeTS are optional filters.
func (r *GormShiftRepository) ListOpen(tenantID, userID string, beforeTS int64) ([]*models.Shift, error) {
	var shifts []*models.Shift

	query := r.db.Where("tenant_id = ? AND status IN (?,?)",
		tenantID, models.ShiftStatusActive, models.ShiftStatusPaused)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if beforeTS > 0 {
		query = query.Where("start_ts < ?", beforeTS)
	}

	if err := query.Order("start_ts ASC").Find(&shifts).Error; err != nil {
		r.logger.WithError(err).Error("Failed to list open shifts")
		return nil, err
	}
	return shifts, nil
}

// SumByUser aggregates total_seconds per user over shifts started inside
// [fromTS, toTS]. Active and ended shifts count; paused time was already
// folded into total_seconds at the pause boundary.
func (r *GormShiftRepository) SumByUser(tenantID string, fromTS, toTS int64, typeFilter string) (map[string]int64, error) {
	var rows []LeaderboardRow

	query := r.db.Model(&models.Shift{}).
		Select("user_id, COALESCE(SUM(total_seconds), 0) as total_seconds").
		Where("tenant_id = ? AND status IN (?,?) AND start_ts >= ? AND start_ts <= ?",
			tenantID, models.ShiftStatusActive, models.ShiftStatusEnded, fromTS, toTS)
	if typeFilter != "" {
		query = query.Where("type = ?", typeFilter)
	}

	if err := query.Group("user_id").Scan(&rows).Error; err != nil {
		r.logger.WithError(err).Error("Failed to aggregate shift totals")
		return nil, err
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.UserID] = row.TotalSeconds
	}

	r.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"users":     len(totals),
	}).Debug("Aggregated shift totals")
	return totals, nil
}

func (r *GormShiftRepository) Leaderboard(tenantID, typeFilter string, limit, offset int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow

	query := r.db.Model(&models.Shift{}).
		Select("user_id, COALESCE(SUM(total_seconds), 0) as total_seconds").
		Where("tenant_id = ? AND status IN (?,?)",
			tenantID, models.ShiftStatusActive, models.ShiftStatusEnded)
	if typeFilter != "" {
		query = query.Where("type = ?", typeFilter)
	}

	err := query.Group("user_id").
		Order("total_seconds DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to build leaderboard")
		return nil, err
	}
	return rows, nil
}

func (r *GormShiftRepository) DeleteByID(id uint) error {
	result := r.db.Delete(&models.Shift{}, id)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to delete shift")
		return result.Error
	}
	if result.RowsAffected == 0 {
		r.logger.WithField("id", id).Warn("Shift not found for deletion")
		return errors.New("shift not found")
	}

	r.logger.WithField("id", id).Info("Shift deleted")
	return nil
}

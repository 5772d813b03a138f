package repository

import (
	"errors"
	"strings"

	"shift-tracker-bot/internal/models"

	"gorm.io/gorm"
)

// IsUniqueViolation reports whether err is a unique-constraint failure,
// such as the one the approved-leave partial index raises.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ErrLeaveNotApproved is returned by CloseApproved when the row was no
// longer approved, meaning another actor already closed it.
var ErrLeaveNotApproved = errors.New("leave is not approved")

type LoARepository interface {
	Create(loa *models.LeaveOfAbsence) error
	Update(loa *models.LeaveOfAbsence) error
	CloseApproved(loa *models.LeaveOfAbsence) error
	GetByID(id uint) (*models.LeaveOfAbsence, error)
	GetApprovedByUser(tenantID, userID string) (*models.LeaveOfAbsence, error)
	ListByUser(tenantID, userID string, limit int) ([]*models.LeaveOfAbsence, error)
	ListByStatus(tenantID, status string, limit int) ([]*models.LeaveOfAbsence, error)
	ListApproved(tenantID string) ([]*models.LeaveOfAbsence, error)
	ListExpired(nowTS int64) ([]*models.LeaveOfAbsence, error)
}

type GormLoARepository struct {
	db *gorm.DB
}

func NewGormLoARepository(db *gorm.DB) (LoARepository, error) {
	if err := db.AutoMigrate(&models.LeaveOfAbsence{}); err != nil {
		return nil, err
	}

	// At most one approved leave per member per tenant.
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_loa_one_approved
		ON loa(tenant_id, user_id) WHERE status = 'approved'`).Error
	if err != nil {
		return nil, err
	}

	return &GormLoARepository{db: db}, nil
}

func (r *GormLoARepository) Create(loa *models.LeaveOfAbsence) error {
	if !loa.IsValid() {
		return errors.New("invalid leave data")
	}
	return r.db.Create(loa).Error
}

func (r *GormLoARepository) Update(loa *models.LeaveOfAbsence) error {
	if !loa.IsValid() {
		return errors.New("invalid leave data")
	}
	return r.db.Save(loa).Error
}

// CloseApproved transitions an approved leave to ended. The status
// predicate makes the transition single-winner: when the expiry sweep
// and an administrative force-end race, only one of them sees a row
// affected.
func (r *GormLoARepository) CloseApproved(loa *models.LeaveOfAbsence) error {
	result := r.db.Model(&models.LeaveOfAbsence{}).
		Where("id = ? AND status = ?", loa.ID, models.LoAStatusApproved).
		Update("status", models.LoAStatusEnded)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLeaveNotApproved
	}
	loa.Status = models.LoAStatusEnded
	return nil
}

func (r *GormLoARepository) GetByID(id uint) (*models.LeaveOfAbsence, error) {
	var loa models.LeaveOfAbsence
	err := r.db.First(&loa, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loa, nil
}

func (r *GormLoARepository) GetApprovedByUser(tenantID, userID string) (*models.LeaveOfAbsence, error) {
	var loa models.LeaveOfAbsence
	err := r.db.Where("tenant_id = ? AND user_id = ? AND status = ?",
		tenantID, userID, models.LoAStatusApproved).
		First(&loa).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loa, nil
}

func (r *GormLoARepository) ListByUser(tenantID, userID string, limit int) ([]*models.LeaveOfAbsence, error) {
	var loas []*models.LeaveOfAbsence
	query := r.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("start_ts DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&loas).Error
	return loas, err
}

func (r *GormLoARepository) ListByStatus(tenantID, status string, limit int) ([]*models.LeaveOfAbsence, error) {
	var loas []*models.LeaveOfAbsence
	query := r.db.Where("tenant_id = ? AND status = ?", tenantID, status).
		Order("start_ts DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&loas).Error
	return loas, err
}

func (r *GormLoARepository) ListApproved(tenantID string) ([]*models.LeaveOfAbsence, error) {
	return r.ListByStatus(tenantID, models.LoAStatusApproved, 0)
}

// ListExpired returns approved leaves past their end across all tenants.
// Already-ended rows are excluded by the status predicate, which is what
// makes the expiry sweep idempotent.
func (r *GormLoARepository) ListExpired(nowTS int64) ([]*models.LeaveOfAbsence, error) {
	var loas []*models.LeaveOfAbsence
	err := r.db.Where("status = ? AND end_ts <= ?", models.LoAStatusApproved, nowTS).
		Order("end_ts ASC").
		Find(&loas).Error
	return loas, err
}

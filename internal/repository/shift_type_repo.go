package repository

import (
	"errors"

	"shift-tracker-bot/internal/models"

	"gorm.io/gorm"
)

type ShiftTypeRepository interface {
	GetByName(name string) (*models.ShiftType, error)
	List() ([]*models.ShiftType, error)
	SetRole(name, roleID string) error
}

type GormShiftTypeRepository struct {
	db *gorm.DB
}

func NewGormShiftTypeRepository(db *gorm.DB) (ShiftTypeRepository, error) {
	if err := db.AutoMigrate(&models.ShiftType{}); err != nil {
		return nil, err
	}

	// Seed defaults on first run.
	var count int64
	if err := db.Model(&models.ShiftType{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		for _, name := range models.DefaultShiftTypes {
			if err := db.Create(&models.ShiftType{Name: name}).Error; err != nil {
				return nil, err
			}
		}
	}

	return &GormShiftTypeRepository{db: db}, nil
}

func (r *GormShiftTypeRepository) GetByName(name string) (*models.ShiftType, error) {
	var st models.ShiftType
	err := r.db.Where("name = ?", name).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *GormShiftTypeRepository) List() ([]*models.ShiftType, error) {
	var types []*models.ShiftType
	err := r.db.Order("name ASC").Find(&types).Error
	return types, err
}

func (r *GormShiftTypeRepository) SetRole(name, roleID string) error {
	result := r.db.Model(&models.ShiftType{}).
		Where("name = ?", name).
		Update("role_id", roleID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("shift type not found")
	}
	return nil
}

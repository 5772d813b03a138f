package models

import (
	"fmt"
	"time"
)

type Shift struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	TenantID string `gorm:"not null;index:idx_shifts_tenant_user" json:"tenant_id"`
	UserID   string `gorm:"not null;index:idx_shifts_tenant_user" json:"user_id"`

	// Epoch seconds. StartTS is the anchor of the current active
	// interval and is re-based on every resume.
	StartTS  int64 `gorm:"not null" json:"start_ts"`
	PauseTS  int64 `json:"pause_ts"`
	ResumeTS int64 `json:"resume_ts"`
	EndTS    int64 `json:"end_ts"`

	// Accumulated worked time. Only advances at a pause/end boundary,
	// or through an administrative adjustment.
	TotalSeconds int64 `gorm:"not null;default:0" json:"total_seconds"`

	Type   string `gorm:"index" json:"type"`
	Status string `gorm:"type:varchar(10);not null;index" json:"status"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Shift) TableName() string {
	return "shifts"
}

const (
	ShiftStatusActive = "active"
	ShiftStatusPaused = "paused"
	ShiftStatusEnded  = "ended"
)

// IsOpen reports whether the shift still blocks a new one under the
// single-active-shift policy.
func (s *Shift) IsOpen() bool {
	return s.Status == ShiftStatusActive || s.Status == ShiftStatusPaused
}

func (s *Shift) IsActive() bool {
	return s.Status == ShiftStatusActive
}

func (s *Shift) IsEnded() bool {
	return s.Status == ShiftStatusEnded
}

// CloseInterval folds the active interval ending at ts into the running
// total. A no-op for paused shifts: their interval was already folded.
func (s *Shift) CloseInterval(ts int64) {
	if s.Status != ShiftStatusActive {
		return
	}
	elapsed := ts - s.StartTS
	if elapsed > 0 {
		s.TotalSeconds += elapsed
	}
}

func (s *Shift) IsValid() bool {
	if s.TenantID == "" || s.UserID == "" {
		return false
	}
	if s.StartTS <= 0 {
		return false
	}
	if s.TotalSeconds < 0 {
		return false
	}
	switch s.Status {
	case ShiftStatusActive, ShiftStatusPaused, ShiftStatusEnded:
		return true
	}
	return false
}

// FormatTotal renders the accumulated time as "Xh Ym Zs".
func (s *Shift) FormatTotal() string {
	d := time.Duration(s.TotalSeconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, sec)
}

package models

import (
	"fmt"
	"time"
)

// TenantSettings is the per-tenant configuration, one row per tenant.
type TenantSettings struct {
	TenantID string `gorm:"primarykey" json:"tenant_id"`

	ShiftLogChannel string `json:"shift_log_channel"`
	ReportChannel   string `json:"report_channel"`

	OneActiveShift     bool `gorm:"not null;default:false" json:"one_active_shift"`
	RequirementMinutes int  `gorm:"not null;default:60" json:"requirement_minutes"`

	// Report schedule: local time "HH:MM" plus an interval in days.
	// Empty ReportTime means no automatic reports.
	ReportTime         string `json:"report_time"`
	ReportIntervalDays int    `json:"report_interval_days"`

	IncludedRoles []string `gorm:"serializer:json" json:"included_roles"`

	// LastReportMarker is the date+minute of the last dispatched report,
	// "2006-01-02T15:04". Guards against duplicate dispatch.
	LastReportMarker string `json:"last_report_marker"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TenantSettings) TableName() string {
	return "tenant_settings"
}

// DefaultSettings returns the settings used for a tenant with no stored row.
func DefaultSettings(tenantID string) *TenantSettings {
	return &TenantSettings{
		TenantID:           tenantID,
		RequirementMinutes: 60,
	}
}

// Validate checks the settings before they are written.
func (ts *TenantSettings) Validate() error {
	if ts.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if ts.RequirementMinutes < 0 {
		return fmt.Errorf("requirement minutes must not be negative")
	}
	if ts.ReportIntervalDays < 0 {
		return fmt.Errorf("report interval days must not be negative")
	}
	if ts.ReportTime != "" {
		if _, err := time.Parse("15:04", ts.ReportTime); err != nil {
			return fmt.Errorf("report time must be HH:MM in 24h format: %q", ts.ReportTime)
		}
	}
	return nil
}

// ReportConfigured reports whether automatic reports can fire for the tenant.
func (ts *TenantSettings) ReportConfigured() bool {
	return ts.ReportTime != "" && ts.ReportIntervalDays > 0 && ts.ReportChannel != ""
}

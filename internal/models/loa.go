package models

// LeaveOfAbsence is one leave request. EndTS is fixed at request time;
// extending a leave means requesting a new one.
type LeaveOfAbsence struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	TenantID string `gorm:"not null;index:idx_loa_tenant_user" json:"tenant_id"`
	UserID   string `gorm:"not null;index:idx_loa_tenant_user" json:"user_id"`

	StartTS int64 `gorm:"not null" json:"start_ts"`
	EndTS   int64 `gorm:"not null" json:"end_ts"`

	Reason  string `json:"reason"`
	Status  string `gorm:"type:varchar(10);not null;index" json:"status"`
	ActorID string `json:"actor_id"`
	Note    string `json:"note"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LeaveOfAbsence) TableName() string {
	return "loa"
}

const (
	LoAStatusPending  = "pending"
	LoAStatusApproved = "approved"
	LoAStatusDenied   = "denied"
	LoAStatusEnded    = "ended"
)

func (l *LeaveOfAbsence) IsApproved() bool {
	return l.Status == LoAStatusApproved
}

// IsClosed reports whether the record is immutable.
func (l *LeaveOfAbsence) IsClosed() bool {
	return l.Status == LoAStatusDenied || l.Status == LoAStatusEnded
}

func (l *LeaveOfAbsence) IsValid() bool {
	if l.TenantID == "" || l.UserID == "" {
		return false
	}
	if l.StartTS <= 0 || l.EndTS < l.StartTS {
		return false
	}
	switch l.Status {
	case LoAStatusPending, LoAStatusApproved, LoAStatusDenied, LoAStatusEnded:
		return true
	}
	return false
}

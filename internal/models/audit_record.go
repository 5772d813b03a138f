package models

// AuditRecord is an append-only log entry for every ledger transition.
type AuditRecord struct {
	ID       string `gorm:"primarykey" json:"id"`
	UserID   string `gorm:"index" json:"user_id"`
	TenantID string `gorm:"index" json:"tenant_id"`
	ActorID  string `json:"actor_id"`
	Action   string `gorm:"not null" json:"action"`
	Payload  string `json:"payload"`
	TS       int64  `gorm:"not null" json:"ts"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}

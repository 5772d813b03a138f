package models

// ShiftType is a named shift category. RoleID, when set, gates who may
// start a shift of this type.
type ShiftType struct {
	ID     uint   `gorm:"primarykey" json:"id"`
	Name   string `gorm:"uniqueIndex;not null" json:"name"`
	RoleID string `json:"role_id"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ShiftType) TableName() string {
	return "shift_types"
}

// DefaultShiftTypes are seeded on first run.
var DefaultShiftTypes = []string{
	"Customer Worker",
	"Delivery Worker",
	"Security Worker",
	"Supervisor",
}

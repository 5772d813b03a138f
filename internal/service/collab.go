package service

import (
	"encoding/json"
	"time"

	"shift-tracker-bot/internal/models"
	"shift-tracker-bot/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Actor is the caller identity supplied by the command surface.
type Actor struct {
	UserID     string
	Roles      []string
	Privileged bool
}

// HasRole reports whether the actor holds the given role.
func (a Actor) HasRole(roleID string) bool {
	for _, r := range a.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Notifier delivers a message to a member. Best-effort: failures are
// logged by the caller and never propagated.
type Notifier interface {
	Notify(userID, message string) error
}

// RoleGranter marks members on the chat platform (on-shift, on-leave).
type RoleGranter interface {
	GrantRole(tenantID, userID, roleRef string) error
	RevokeRole(tenantID, userID, roleRef string) error
}

// MemberDirectory supplies the candidate member set for reports.
type MemberDirectory interface {
	Members(tenantID string) ([]string, error)
	MembersWithRole(tenantID, roleID string) ([]string, error)
}

// AuditRecorder appends an audit entry. Fire-and-forget.
type AuditRecorder interface {
	Record(userID, tenantID, actorID, action string, payload any, ts time.Time)
}

// AuditLog persists audit entries through the audit repository.
type AuditLog struct {
	repo   repository.AuditRepository
	logger *logrus.Logger
}

func NewAuditLog(repo repository.AuditRepository, logger *logrus.Logger) *AuditLog {
	return &AuditLog{repo: repo, logger: logger}
}

func (a *AuditLog) Record(userID, tenantID, actorID, action string, payload any, ts time.Time) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}

	record := &models.AuditRecord{
		ID:       uuid.NewString(),
		UserID:   userID,
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Payload:  string(data),
		TS:       ts.Unix(),
	}

	if err := a.repo.Create(record); err != nil {
		a.logger.WithError(err).WithField("action", action).Warn("Audit record dropped")
	}
}

package service

import (
	"errors"
	"fmt"
	"time"

	"shift-tracker-bot/internal/apperr"
	"shift-tracker-bot/internal/models"
	"shift-tracker-bot/internal/repository"
	"shift-tracker-bot/pkg/durationspec"

	"github.com/sirupsen/logrus"
)

// MaxLoADuration caps a single leave at six months.
const MaxLoADuration = 6 * 30 * durationspec.Day

type LoAService struct {
	loaRepo  repository.LoARepository
	notifier Notifier
	roles    RoleGranter
	audit    AuditRecorder
	logger   *logrus.Logger

	// onLeaveRole marks approved members on the chat platform.
	onLeaveRole string

	now func() time.Time
}

func NewLoAService(
	loaRepo repository.LoARepository,
	notifier Notifier,
	roles RoleGranter,
	audit AuditRecorder,
	logger *logrus.Logger,
	onLeaveRole string,
) *LoAService {
	return &LoAService{
		loaRepo:     loaRepo,
		notifier:    notifier,
		roles:       roles,
		audit:       audit,
		logger:      logger,
		onLeaveRole: onLeaveRole,
		now:         time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (s *LoAService) SetNow(now func() time.Time) { s.now = now }

// Request files a pending leave. The end timestamp is fixed here and
// never moves afterwards.
func (s *LoAService) Request(tenantID, userID, durationToken, reason string) (*models.LeaveOfAbsence, error) {
	span, err := durationspec.Parse(durationToken)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperr.ErrInvalidArgument)
	}
	if span > MaxLoADuration {
		return nil, fmt.Errorf("leave of %s exceeds the 6 month maximum: %w",
			durationToken, apperr.ErrPolicyViolation)
	}

	existing, err := s.loaRepo.GetApprovedByUser(tenantID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("an approved leave already exists: %w", apperr.ErrPolicyViolation)
	}

	if reason == "" {
		reason = "No reason provided"
	}

	now := s.now()
	loa := &models.LeaveOfAbsence{
		TenantID: tenantID,
		UserID:   userID,
		StartTS:  now.Unix(),
		EndTS:    now.Add(span).Unix(),
		Reason:   reason,
		Status:   models.LoAStatusPending,
	}

	if err := s.loaRepo.Create(loa); err != nil {
		return nil, err
	}

	s.record(loa, userID, "loa_request", map[string]any{"id": loa.ID})
	s.logger.WithFields(logrus.Fields{
		"id":      loa.ID,
		"user_id": userID,
		"end_ts":  loa.EndTS,
	}).Info("Leave requested")
	return loa, nil
}

// Approve transitions a pending leave to approved and marks the member
// on leave.
func (s *LoAService) Approve(loaID uint, actor Actor, note string) (*models.LeaveOfAbsence, error) {
	loa, err := s.getForReview(loaID, actor)
	if err != nil {
		return nil, err
	}

	loa.Status = models.LoAStatusApproved
	loa.ActorID = actor.UserID
	loa.Note = note

	if err := s.loaRepo.Update(loa); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("an approved leave already exists: %w", apperr.ErrPolicyViolation)
		}
		return nil, err
	}

	s.grantRole(loa)
	s.notify(loa.UserID, fmt.Sprintf("Your leave of absence #%d has been approved.", loa.ID))
	s.record(loa, actor.UserID, "loa_approved", map[string]any{"id": loa.ID, "note": note})

	s.logger.WithFields(logrus.Fields{
		"id":       loa.ID,
		"actor_id": actor.UserID,
	}).Info("Leave approved")
	return loa, nil
}

// Deny transitions a pending leave to denied. Terminal.
func (s *LoAService) Deny(loaID uint, actor Actor, note string) (*models.LeaveOfAbsence, error) {
	loa, err := s.getForReview(loaID, actor)
	if err != nil {
		return nil, err
	}

	loa.Status = models.LoAStatusDenied
	loa.ActorID = actor.UserID
	loa.Note = note

	if err := s.loaRepo.Update(loa); err != nil {
		return nil, err
	}

	s.notify(loa.UserID, fmt.Sprintf("Your leave of absence #%d has been denied.", loa.ID))
	s.record(loa, actor.UserID, "loa_denied", map[string]any{"id": loa.ID, "note": note})
	return loa, nil
}

// ForceEnd closes an approved leave early. Administrative only.
func (s *LoAService) ForceEnd(loaID uint, actor Actor) (*models.LeaveOfAbsence, error) {
	if !actor.Privileged {
		return nil, fmt.Errorf("force end requires privilege: %w", apperr.ErrForbidden)
	}

	loa, err := s.loaRepo.GetByID(loaID)
	if err != nil {
		return nil, err
	}
	if loa == nil {
		return nil, fmt.Errorf("leave %d: %w", loaID, apperr.ErrNotFound)
	}
	if !loa.IsApproved() {
		return nil, fmt.Errorf("cannot end a %s leave: %w", loa.Status, apperr.ErrInvalidState)
	}

	if err := s.loaRepo.CloseApproved(loa); err != nil {
		// Lost the close race, likely against the expiry sweep.
		if errors.Is(err, repository.ErrLeaveNotApproved) {
			return nil, fmt.Errorf("leave was already closed: %w", apperr.ErrInvalidState)
		}
		return nil, err
	}

	s.revokeRole(loa)
	s.notify(loa.UserID, fmt.Sprintf("Your leave of absence #%d has been ended.", loa.ID))
	s.record(loa, actor.UserID, "loa_force_end", map[string]any{"id": loa.ID})
	return loa, nil
}

// ExpireOverdue sweeps approved leaves whose end has passed. Idempotent:
// already-ended rows fall outside the approved predicate, so a second
// sweep over the same state returns nothing.
func (s *LoAService) ExpireOverdue(now time.Time) ([]*models.LeaveOfAbsence, error) {
	overdue, err := s.loaRepo.ListExpired(now.Unix())
	if err != nil {
		return nil, err
	}

	var expired []*models.LeaveOfAbsence
	for _, loa := range overdue {
		if err := s.loaRepo.CloseApproved(loa); err != nil {
			// A concurrent force-end already closed it; not ours to
			// notify about.
			if !errors.Is(err, repository.ErrLeaveNotApproved) {
				s.logger.WithError(err).WithField("id", loa.ID).Warn("Leave expiry skipped")
			}
			continue
		}

		s.revokeRole(loa)
		s.notify(loa.UserID, fmt.Sprintf("Your leave of absence #%d has ended.", loa.ID))
		s.record(loa, "system", "loa_expired", map[string]any{"id": loa.ID})
		expired = append(expired, loa)
	}

	if len(expired) > 0 {
		s.logger.WithField("count", len(expired)).Info("Expired overdue leaves")
	}
	return expired, nil
}

// Status returns the member's current approved leave.
func (s *LoAService) Status(tenantID, userID string) (*models.LeaveOfAbsence, error) {
	loa, err := s.loaRepo.GetApprovedByUser(tenantID, userID)
	if err != nil {
		return nil, err
	}
	if loa == nil {
		return nil, fmt.Errorf("no approved leave: %w", apperr.ErrNotFound)
	}
	return loa, nil
}

func (s *LoAService) ListByUser(tenantID, userID string, limit int) ([]*models.LeaveOfAbsence, error) {
	return s.loaRepo.ListByUser(tenantID, userID, limit)
}

func (s *LoAService) ListPending(tenantID string, limit int) ([]*models.LeaveOfAbsence, error) {
	return s.loaRepo.ListByStatus(tenantID, models.LoAStatusPending, limit)
}

func (s *LoAService) getForReview(loaID uint, actor Actor) (*models.LeaveOfAbsence, error) {
	if !actor.Privileged {
		return nil, fmt.Errorf("leave review requires privilege: %w", apperr.ErrForbidden)
	}

	loa, err := s.loaRepo.GetByID(loaID)
	if err != nil {
		return nil, err
	}
	if loa == nil {
		return nil, fmt.Errorf("leave %d: %w", loaID, apperr.ErrNotFound)
	}
	if loa.Status != models.LoAStatusPending {
		return nil, fmt.Errorf("leave is %s, not pending: %w", loa.Status, apperr.ErrInvalidState)
	}
	return loa, nil
}

func (s *LoAService) grantRole(loa *models.LeaveOfAbsence) {
	if s.roles == nil || s.onLeaveRole == "" {
		return
	}
	if err := s.roles.GrantRole(loa.TenantID, loa.UserID, s.onLeaveRole); err != nil {
		s.logger.WithError(err).WithField("user_id", loa.UserID).Warn("Leave role grant failed")
	}
}

func (s *LoAService) revokeRole(loa *models.LeaveOfAbsence) {
	if s.roles == nil || s.onLeaveRole == "" {
		return
	}
	if err := s.roles.RevokeRole(loa.TenantID, loa.UserID, s.onLeaveRole); err != nil {
		s.logger.WithError(err).WithField("user_id", loa.UserID).Warn("Leave role revoke failed")
	}
}

func (s *LoAService) notify(userID, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(userID, message); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Notification failed")
	}
}

func (s *LoAService) record(loa *models.LeaveOfAbsence, actorID, action string, payload any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(loa.UserID, loa.TenantID, actorID, action, payload, s.now())
}

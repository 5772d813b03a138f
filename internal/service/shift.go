package service

import (
	"errors"
	"fmt"
	"time"

	"shift-tracker-bot/internal/apperr"
	"shift-tracker-bot/internal/models"
	"shift-tracker-bot/internal/repository"

	"github.com/sirupsen/logrus"
)

// AdjustmentKind selects how an administrative time correction applies.
type AdjustmentKind int

const (
	AdjustDelta AdjustmentKind = iota // add Seconds (may be negative)
	AdjustSet                         // set total to Seconds
	AdjustReset                       // set total to zero
)

type Adjustment struct {
	Kind    AdjustmentKind
	Seconds int64
}

type ShiftService struct {
	shiftRepo    repository.ShiftRepository
	typeRepo     repository.ShiftTypeRepository
	settingsRepo repository.SettingsRepository
	roles        RoleGranter
	audit        AuditRecorder
	logger       *logrus.Logger

	// onShiftRole, when set, is granted while a shift is open.
	onShiftRole string

	now func() time.Time
}

func NewShiftService(
	shiftRepo repository.ShiftRepository,
	typeRepo repository.ShiftTypeRepository,
	settingsRepo repository.SettingsRepository,
	roles RoleGranter,
	audit AuditRecorder,
	logger *logrus.Logger,
	onShiftRole string,
) *ShiftService {
	return &ShiftService{
		shiftRepo:    shiftRepo,
		typeRepo:     typeRepo,
		settingsRepo: settingsRepo,
		roles:        roles,
		audit:        audit,
		logger:       logger,
		onShiftRole:  onShiftRole,
		now:          time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (s *ShiftService) SetNow(now func() time.Time) { s.now = now }

// Start opens a new active shift for the actor.
func (s *ShiftService) Start(tenantID string, actor Actor, typeName string) (*models.Shift, error) {
	st, err := s.typeRepo.GetByName(typeName)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("unknown shift type %q: %w", typeName, apperr.ErrInvalidArgument)
	}
	if st.RoleID != "" && !actor.HasRole(st.RoleID) && !actor.Privileged {
		return nil, fmt.Errorf("shift type %q requires a role the caller lacks: %w",
			typeName, apperr.ErrForbidden)
	}

	settings, err := s.settingsRepo.Get(tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	shift := &models.Shift{
		TenantID: tenantID,
		UserID:   actor.UserID,
		StartTS:  now.Unix(),
		Type:     typeName,
		Status:   models.ShiftStatusActive,
	}

	if settings.OneActiveShift {
		// The claim transaction replaces a check-then-act sequence two
		// concurrent starts could both win.
		if err := s.shiftRepo.CreateExclusive(shift); err != nil {
			if errors.Is(err, repository.ErrOpenShiftExists) {
				return nil, fmt.Errorf("an active or paused shift already exists: %w",
					apperr.ErrPolicyViolation)
			}
			return nil, err
		}
	} else if err := s.shiftRepo.Create(shift); err != nil {
		return nil, err
	}

	s.grantRole(tenantID, actor.UserID, s.onShiftRole)
	s.record(shift, actor, "shift_start", map[string]any{"id": shift.ID, "type": typeName})

	s.logger.WithFields(logrus.Fields{
		"id":      shift.ID,
		"user_id": actor.UserID,
		"type":    typeName,
	}).Info("Shift started")
	return shift, nil
}

// Pause folds the elapsed active interval into the total and pauses.
func (s *ShiftService) Pause(shiftID uint, actor Actor) (*models.Shift, error) {
	shift, err := s.getOwned(shiftID, actor)
	if err != nil {
		return nil, err
	}
	if !shift.IsActive() {
		return nil, fmt.Errorf("cannot pause a %s shift: %w", shift.Status, apperr.ErrInvalidState)
	}

	now := s.now().Unix()
	shift.CloseInterval(now)
	shift.PauseTS = now
	shift.Status = models.ShiftStatusPaused

	if err := s.shiftRepo.Update(shift); err != nil {
		return nil, err
	}

	s.record(shift, actor, "shift_pause", map[string]any{"id": shift.ID})
	s.logger.WithFields(logrus.Fields{
		"id":            shift.ID,
		"total_seconds": shift.TotalSeconds,
	}).Info("Shift paused")
	return shift, nil
}

// Resume re-anchors start_ts so the next interval is measured from the
// resume instant. The running total already holds prior accumulation.
func (s *ShiftService) Resume(shiftID uint, actor Actor) (*models.Shift, error) {
	shift, err := s.getOwned(shiftID, actor)
	if err != nil {
		return nil, err
	}
	if shift.Status != models.ShiftStatusPaused {
		return nil, fmt.Errorf("cannot resume a %s shift: %w", shift.Status, apperr.ErrInvalidState)
	}

	now := s.now().Unix()
	shift.ResumeTS = now
	shift.StartTS = now
	shift.Status = models.ShiftStatusActive

	if err := s.shiftRepo.Update(shift); err != nil {
		return nil, err
	}

	s.record(shift, actor, "shift_resume", map[string]any{"id": shift.ID})
	return shift, nil
}

// End closes the shift. force bypasses the ownership check and is
// restricted to privileged actors.
func (s *ShiftService) End(shiftID uint, actor Actor, force bool) (*models.Shift, error) {
	shift, err := s.shiftRepo.GetByID(shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, fmt.Errorf("shift %d: %w", shiftID, apperr.ErrNotFound)
	}
	if force {
		if !actor.Privileged {
			return nil, fmt.Errorf("force end requires privilege: %w", apperr.ErrForbidden)
		}
	} else if shift.UserID != actor.UserID && !actor.Privileged {
		return nil, fmt.Errorf("not the shift owner: %w", apperr.ErrForbidden)
	}
	if !shift.IsOpen() {
		return nil, fmt.Errorf("cannot end a %s shift: %w", shift.Status, apperr.ErrInvalidState)
	}

	now := s.now().Unix()
	shift.CloseInterval(now)
	shift.EndTS = now
	shift.Status = models.ShiftStatusEnded

	if err := s.shiftRepo.Update(shift); err != nil {
		return nil, err
	}

	s.revokeRole(shift.TenantID, shift.UserID, s.onShiftRole)

	action := "shift_end"
	if force {
		action = "shift_force_end"
	}
	s.record(shift, actor, action, map[string]any{"id": shift.ID, "total": shift.TotalSeconds})

	s.logger.WithFields(logrus.Fields{
		"id":            shift.ID,
		"user_id":       shift.UserID,
		"total_seconds": shift.TotalSeconds,
	}).Info("Shift ended")
	return shift, nil
}

// Adjust is an administrative correction of the accumulated time. It
// touches total_seconds only, never status or timestamps, so an ended
// shift may still be corrected.
func (s *ShiftService) Adjust(shiftID uint, actor Actor, adj Adjustment) (*models.Shift, error) {
	if !actor.Privileged {
		return nil, fmt.Errorf("adjustment requires privilege: %w", apperr.ErrForbidden)
	}

	shift, err := s.shiftRepo.GetByID(shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, fmt.Errorf("shift %d: %w", shiftID, apperr.ErrNotFound)
	}

	switch adj.Kind {
	case AdjustDelta:
		shift.TotalSeconds += adj.Seconds
	case AdjustSet:
		shift.TotalSeconds = adj.Seconds
	case AdjustReset:
		shift.TotalSeconds = 0
	default:
		return nil, fmt.Errorf("unknown adjustment kind %d: %w", adj.Kind, apperr.ErrInvalidArgument)
	}
	if shift.TotalSeconds < 0 {
		shift.TotalSeconds = 0
	}

	if err := s.shiftRepo.Update(shift); err != nil {
		return nil, err
	}

	s.record(shift, actor, "shift_adjust", map[string]any{
		"id":    shift.ID,
		"total": shift.TotalSeconds,
	})
	return shift, nil
}

// BulkEnd force-ends open shifts matching the optional user and
// before-timestamp filters. Returns the number of shifts ended.
func (s *ShiftService) BulkEnd(tenantID string, actor Actor, userID string, beforeTS int64) (int, error) {
	if !actor.Privileged {
		return 0, fmt.Errorf("bulk end requires privilege: %w", apperr.ErrForbidden)
	}

	open, err := s.shiftRepo.ListOpen(tenantID, userID, beforeTS)
	if err != nil {
		return 0, err
	}

	ended := 0
	for _, shift := range open {
		if _, err := s.End(shift.ID, actor, true); err != nil {
			s.logger.WithError(err).WithField("id", shift.ID).Warn("Bulk end skipped shift")
			continue
		}
		ended++
	}
	return ended, nil
}

// Delete removes a shift row. Administrative only.
func (s *ShiftService) Delete(shiftID uint, actor Actor) error {
	if !actor.Privileged {
		return fmt.Errorf("delete requires privilege: %w", apperr.ErrForbidden)
	}

	shift, err := s.shiftRepo.GetByID(shiftID)
	if err != nil {
		return err
	}
	if shift == nil {
		return fmt.Errorf("shift %d: %w", shiftID, apperr.ErrNotFound)
	}

	if err := s.shiftRepo.DeleteByID(shiftID); err != nil {
		return err
	}
	s.record(shift, actor, "shift_delete", map[string]any{"id": shiftID})
	return nil
}

func (s *ShiftService) ListByUser(tenantID, userID string, limit int) ([]*models.Shift, error) {
	return s.shiftRepo.ListByUser(tenantID, userID, limit)
}

func (s *ShiftService) ListActive(tenantID string) ([]*models.Shift, error) {
	return s.shiftRepo.ListOpen(tenantID, "", 0)
}

func (s *ShiftService) Leaderboard(tenantID, typeFilter string, page, perPage int) ([]repository.LeaderboardRow, error) {
	if typeFilter != "" {
		st, err := s.typeRepo.GetByName(typeFilter)
		if err != nil {
			return nil, err
		}
		if st == nil {
			return nil, fmt.Errorf("unknown shift type %q: %w", typeFilter, apperr.ErrInvalidArgument)
		}
	}
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	return s.shiftRepo.Leaderboard(tenantID, typeFilter, perPage, (page-1)*perPage)
}

func (s *ShiftService) ListTypes() ([]*models.ShiftType, error) {
	return s.typeRepo.List()
}

// SetTypeRole gates a shift type behind a role. Administrative only.
func (s *ShiftService) SetTypeRole(actor Actor, typeName, roleID string) error {
	if !actor.Privileged {
		return fmt.Errorf("type management requires privilege: %w", apperr.ErrForbidden)
	}
	st, err := s.typeRepo.GetByName(typeName)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("unknown shift type %q: %w", typeName, apperr.ErrNotFound)
	}
	return s.typeRepo.SetRole(typeName, roleID)
}

func (s *ShiftService) getOwned(shiftID uint, actor Actor) (*models.Shift, error) {
	shift, err := s.shiftRepo.GetByID(shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, fmt.Errorf("shift %d: %w", shiftID, apperr.ErrNotFound)
	}
	if shift.UserID != actor.UserID && !actor.Privileged {
		return nil, fmt.Errorf("not the shift owner: %w", apperr.ErrForbidden)
	}
	return shift, nil
}

func (s *ShiftService) grantRole(tenantID, userID, roleRef string) {
	if s.roles == nil || roleRef == "" {
		return
	}
	if err := s.roles.GrantRole(tenantID, userID, roleRef); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Role grant failed")
	}
}

func (s *ShiftService) revokeRole(tenantID, userID, roleRef string) {
	if s.roles == nil || roleRef == "" {
		return
	}
	if err := s.roles.RevokeRole(tenantID, userID, roleRef); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Role revoke failed")
	}
}

func (s *ShiftService) record(shift *models.Shift, actor Actor, action string, payload any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(shift.UserID, shift.TenantID, actor.UserID, action, payload, s.now())
}

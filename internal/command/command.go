// Package command is the typed boundary between the chat-platform layer
// and the ledgers. Each inbound action is a tagged Command variant
// dispatched exhaustively; there is no string-prefix routing.
package command

import (
	"fmt"

	"shift-tracker-bot/internal/apperr"
	"shift-tracker-bot/internal/models"
	"shift-tracker-bot/internal/repository"
	"shift-tracker-bot/internal/service"

	"github.com/sirupsen/logrus"
)

type Kind int

const (
	KindStartShift Kind = iota
	KindPauseShift
	KindResumeShift
	KindEndShift
	KindForceEndShift
	KindAdjustShift
	KindRequestLoA
	KindApproveLoA
	KindDenyLoA
	KindForceEndLoA
	KindRunReport
	KindShowSettings
	KindUpdateSettings
	KindListShifts
	KindLeaderboard
	KindDeleteShift
	KindListShiftTypes
	KindListLoA
	KindListPendingLoA
)

// Command carries one request from the command surface. Fields beyond
// Kind, TenantID and Actor are variant-specific.
type Command struct {
	Kind     Kind
	TenantID string
	Actor    service.Actor

	ShiftID    uint
	ShiftType  string
	Adjustment service.Adjustment

	LoAID    uint
	Duration string
	Reason   string
	Note     string

	WindowDays int
	TypeFilter string
	RoleCohort []string
	ChannelRef string

	Limit   int
	Page    int
	PerPage int

	// Mutate applies a settings change; KindUpdateSettings only.
	Mutate func(*models.TenantSettings)
}

// Result is the entity a command produced, at most one field set.
type Result struct {
	Shift    *models.Shift
	LoA      *models.LeaveOfAbsence
	Report   *service.Report
	Settings *models.TenantSettings

	Shifts      []*models.Shift
	Leaves      []*models.LeaveOfAbsence
	Leaderboard []repository.LeaderboardRow
	Types       []*models.ShiftType
}

type Dispatcher struct {
	shifts   *service.ShiftService
	loas     *service.LoAService
	reports  *service.ReportService
	settings *service.SettingsService
	logger   *logrus.Logger
}

func NewDispatcher(
	shifts *service.ShiftService,
	loas *service.LoAService,
	reports *service.ReportService,
	settings *service.SettingsService,
	logger *logrus.Logger,
) *Dispatcher {
	return &Dispatcher{shifts: shifts, loas: loas, reports: reports, settings: settings, logger: logger}
}

func (d *Dispatcher) Dispatch(cmd Command) (*Result, error) {
	d.logger.WithFields(logrus.Fields{
		"kind":      cmd.Kind,
		"tenant_id": cmd.TenantID,
		"actor_id":  cmd.Actor.UserID,
	}).Debug("Dispatching command")

	switch cmd.Kind {
	case KindStartShift:
		shift, err := d.shifts.Start(cmd.TenantID, cmd.Actor, cmd.ShiftType)
		return &Result{Shift: shift}, err

	case KindPauseShift:
		shift, err := d.shifts.Pause(cmd.ShiftID, cmd.Actor)
		return &Result{Shift: shift}, err

	case KindResumeShift:
		shift, err := d.shifts.Resume(cmd.ShiftID, cmd.Actor)
		return &Result{Shift: shift}, err

	case KindEndShift:
		shift, err := d.shifts.End(cmd.ShiftID, cmd.Actor, false)
		return &Result{Shift: shift}, err

	case KindForceEndShift:
		shift, err := d.shifts.End(cmd.ShiftID, cmd.Actor, true)
		return &Result{Shift: shift}, err

	case KindAdjustShift:
		shift, err := d.shifts.Adjust(cmd.ShiftID, cmd.Actor, cmd.Adjustment)
		return &Result{Shift: shift}, err

	case KindRequestLoA:
		loa, err := d.loas.Request(cmd.TenantID, cmd.Actor.UserID, cmd.Duration, cmd.Reason)
		return &Result{LoA: loa}, err

	case KindApproveLoA:
		loa, err := d.loas.Approve(cmd.LoAID, cmd.Actor, cmd.Note)
		return &Result{LoA: loa}, err

	case KindDenyLoA:
		loa, err := d.loas.Deny(cmd.LoAID, cmd.Actor, cmd.Note)
		return &Result{LoA: loa}, err

	case KindForceEndLoA:
		loa, err := d.loas.ForceEnd(cmd.LoAID, cmd.Actor)
		return &Result{LoA: loa}, err

	case KindRunReport:
		report, err := d.reports.Generate(cmd.TenantID, cmd.WindowDays, cmd.TypeFilter, cmd.RoleCohort)
		if err != nil {
			return nil, err
		}
		if cmd.ChannelRef != "" {
			d.reports.Deliver(cmd.ChannelRef, report)
		}
		return &Result{Report: report}, nil

	case KindShowSettings:
		settings, err := d.settings.Get(cmd.TenantID)
		return &Result{Settings: settings}, err

	case KindUpdateSettings:
		if cmd.Mutate == nil {
			return nil, fmt.Errorf("settings update carries no change: %w", apperr.ErrInvalidArgument)
		}
		settings, err := d.settings.Update(cmd.TenantID, cmd.Actor, cmd.Mutate)
		return &Result{Settings: settings}, err

	// The list branches pin nil slices to empty ones so the command
	// surface can tell "empty list" apart from "no list result".
	case KindListShifts:
		shifts, err := d.shifts.ListByUser(cmd.TenantID, cmd.Actor.UserID, cmd.Limit)
		if shifts == nil {
			shifts = []*models.Shift{}
		}
		return &Result{Shifts: shifts}, err

	case KindLeaderboard:
		rows, err := d.shifts.Leaderboard(cmd.TenantID, cmd.TypeFilter, cmd.Page, cmd.PerPage)
		if rows == nil {
			rows = []repository.LeaderboardRow{}
		}
		return &Result{Leaderboard: rows}, err

	case KindDeleteShift:
		return &Result{}, d.shifts.Delete(cmd.ShiftID, cmd.Actor)

	case KindListShiftTypes:
		types, err := d.shifts.ListTypes()
		if types == nil {
			types = []*models.ShiftType{}
		}
		return &Result{Types: types}, err

	case KindListLoA:
		leaves, err := d.loas.ListByUser(cmd.TenantID, cmd.Actor.UserID, cmd.Limit)
		if leaves == nil {
			leaves = []*models.LeaveOfAbsence{}
		}
		return &Result{Leaves: leaves}, err

	case KindListPendingLoA:
		leaves, err := d.loas.ListPending(cmd.TenantID, cmd.Limit)
		if leaves == nil {
			leaves = []*models.LeaveOfAbsence{}
		}
		return &Result{Leaves: leaves}, err
	}

	return nil, fmt.Errorf("unknown command kind %d: %w", cmd.Kind, apperr.ErrInvalidArgument)
}

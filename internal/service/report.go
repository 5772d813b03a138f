package service

import (
	"fmt"
	"sort"
	"time"

	"shift-tracker-bot/internal/apperr"
	"shift-tracker-bot/internal/models"
	"shift-tracker-bot/internal/repository"

	"github.com/sirupsen/logrus"
)

// SectionKind identifies a logical report section. The sink is invoked
// once per section.
type SectionKind int

const (
	SectionHeader SectionKind = iota
	SectionMet
	SectionNotMet
	SectionOnLeave
	SectionIncludedRoles
)

type Section struct {
	Kind  SectionKind
	Title string
	Lines []string
}

// ReportSink renders and delivers one report section. Best-effort.
type ReportSink interface {
	Deliver(tenantID, channelRef string, section Section) error
}

// MemberTotal is one member's summed worked time inside the window.
type MemberTotal struct {
	UserID       string
	TotalSeconds int64
}

// LeaveEntry is one member currently on approved leave.
type LeaveEntry struct {
	UserID string
	EndTS  int64
}

// Report is the structured result handed to the delivery collaborator.
// A member on approved leave with no worked time appears in both NotMet
// and OnLeave.
type Report struct {
	TenantID           string
	WindowDays         int
	TypeFilter         string
	GeneratedAt        int64
	RequirementSeconds int64

	Totals  map[string]int64
	Met     []MemberTotal
	NotMet  []MemberTotal
	OnLeave []LeaveEntry

	IncludedRoles []string
}

type ReportService struct {
	shiftRepo    repository.ShiftRepository
	loaRepo      repository.LoARepository
	typeRepo     repository.ShiftTypeRepository
	settingsRepo repository.SettingsRepository
	directory    MemberDirectory
	sink         ReportSink
	logger       *logrus.Logger

	now func() time.Time
}

func NewReportService(
	shiftRepo repository.ShiftRepository,
	loaRepo repository.LoARepository,
	typeRepo repository.ShiftTypeRepository,
	settingsRepo repository.SettingsRepository,
	directory MemberDirectory,
	sink ReportSink,
	logger *logrus.Logger,
) *ReportService {
	return &ReportService{
		shiftRepo:    shiftRepo,
		loaRepo:      loaRepo,
		typeRepo:     typeRepo,
		settingsRepo: settingsRepo,
		directory:    directory,
		sink:         sink,
		logger:       logger,
		now:          time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (s *ReportService) SetNow(now func() time.Time) { s.now = now }

// Generate aggregates worked time over the trailing window and
// partitions the candidate set into compliance buckets.
func (s *ReportService) Generate(tenantID string, windowDays int, typeFilter string, cohort []string) (*Report, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d days: %w",
			windowDays, apperr.ErrInvalidArgument)
	}
	if typeFilter != "" {
		st, err := s.typeRepo.GetByName(typeFilter)
		if err != nil {
			return nil, err
		}
		if st == nil {
			return nil, fmt.Errorf("unknown shift type %q: %w", typeFilter, apperr.ErrInvalidArgument)
		}
	}

	settings, err := s.settingsRepo.Get(tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	toTS := now.Unix()
	fromTS := toTS - int64(windowDays)*86400

	totals, err := s.shiftRepo.SumByUser(tenantID, fromTS, toTS, typeFilter)
	if err != nil {
		return nil, err
	}

	onLeaveRows, err := s.loaRepo.ListApproved(tenantID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.candidates(tenantID, cohort, totals, onLeaveRows)
	if err != nil {
		return nil, err
	}

	report := &Report{
		TenantID:           tenantID,
		WindowDays:         windowDays,
		TypeFilter:         typeFilter,
		GeneratedAt:        toTS,
		RequirementSeconds: int64(settings.RequirementMinutes) * 60,
		Totals:             totals,
		IncludedRoles:      cohort,
	}

	for _, userID := range candidates {
		entry := MemberTotal{UserID: userID, TotalSeconds: totals[userID]}
		if entry.TotalSeconds >= report.RequirementSeconds {
			report.Met = append(report.Met, entry)
		} else {
			report.NotMet = append(report.NotMet, entry)
		}
	}
	sortByTotal(report.Met)
	sortByTotal(report.NotMet)

	for _, loa := range onLeaveRows {
		report.OnLeave = append(report.OnLeave, LeaveEntry{UserID: loa.UserID, EndTS: loa.EndTS})
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"window":    windowDays,
		"met":       len(report.Met),
		"not_met":   len(report.NotMet),
		"on_leave":  len(report.OnLeave),
	}).Info("Report generated")
	return report, nil
}

// Deliver hands the report to the sink, one call per logical section.
// Sink failures are logged and swallowed: delivery must never undo the
// state that produced the report.
func (s *ReportService) Deliver(channelRef string, report *Report) {
	if s.sink == nil {
		return
	}

	title := "Activity Report • All Shift Types"
	if report.TypeFilter != "" {
		title = "Activity Report • " + report.TypeFilter
	}
	s.send(report.TenantID, channelRef, Section{
		Kind:  SectionHeader,
		Title: title,
		Lines: []string{fmt.Sprintf("Trailing %d days", report.WindowDays)},
	})

	metLines := memberLines(report.Met)
	if len(metLines) == 0 {
		metLines = []string{"No members met the requirement."}
	}
	s.send(report.TenantID, channelRef, Section{
		Kind:  SectionMet,
		Title: "Requirement Met",
		Lines: metLines,
	})

	if len(report.NotMet) > 0 {
		s.send(report.TenantID, channelRef, Section{
			Kind:  SectionNotMet,
			Title: "Requirements Not Met",
			Lines: memberLines(report.NotMet),
		})
	}

	if len(report.OnLeave) > 0 {
		lines := make([]string, 0, len(report.OnLeave))
		for _, l := range report.OnLeave {
			lines = append(lines, fmt.Sprintf("%s • ends %s",
				l.UserID, time.Unix(l.EndTS, 0).Format("2006-01-02 15:04")))
		}
		s.send(report.TenantID, channelRef, Section{
			Kind:  SectionOnLeave,
			Title: "On Leave",
			Lines: lines,
		})
	}

	if len(report.IncludedRoles) > 0 {
		s.send(report.TenantID, channelRef, Section{
			Kind:  SectionIncludedRoles,
			Title: "Included Roles",
			Lines: report.IncludedRoles,
		})
	}
}

// RunScheduled generates and delivers the report configured in the
// tenant settings; the window equals the schedule interval.
func (s *ReportService) RunScheduled(settings *models.TenantSettings) error {
	report, err := s.Generate(settings.TenantID, settings.ReportIntervalDays, "", settings.IncludedRoles)
	if err != nil {
		return err
	}
	s.Deliver(settings.ReportChannel, report)
	return nil
}

// candidates resolves the member set a report covers. With a cohort, it
// is the union of members holding any cohort role. Without one, it asks
// the directory; with no directory wired, it degrades to members with
// shift rows in the window plus members on leave.
func (s *ReportService) candidates(tenantID string, cohort []string, totals map[string]int64, onLeave []*models.LeaveOfAbsence) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(userID string) {
		if userID != "" && !seen[userID] {
			seen[userID] = true
			out = append(out, userID)
		}
	}

	switch {
	case len(cohort) > 0 && s.directory != nil:
		for _, roleID := range cohort {
			members, err := s.directory.MembersWithRole(tenantID, roleID)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				add(m)
			}
		}
	case s.directory != nil:
		members, err := s.directory.Members(tenantID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			add(m)
		}
	default:
		if len(cohort) > 0 {
			s.logger.WithFields(logrus.Fields{
				"tenant_id": tenantID,
				"roles":     cohort,
			}).Warn("Role cohort configured but no member directory wired; reporting on observed members instead")
		}
		for userID := range totals {
			add(userID)
		}
		for _, loa := range onLeave {
			add(loa.UserID)
		}
		sort.Strings(out)
	}
	return out, nil
}

func (s *ReportService) send(tenantID, channelRef string, section Section) {
	if err := s.sink.Deliver(tenantID, channelRef, section); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"section":   section.Title,
		}).Warn("Report section delivery failed")
	}
}

func memberLines(entries []MemberTotal) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		d := time.Duration(e.TotalSeconds) * time.Second
		lines = append(lines, fmt.Sprintf("%s • %d hours, %d minutes, %d seconds",
			e.UserID, int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60))
	}
	return lines
}

func sortByTotal(entries []MemberTotal) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalSeconds > entries[j].TotalSeconds
	})
}

// Package scheduler owns the periodic tick that expires overdue leaves
// and dispatches scheduled reports. The tick body is exported so tests
// can drive it with a simulated clock instead of real timers.
package scheduler

import (
	"fmt"
	"time"

	"shift-tracker-bot/internal/models"
	"shift-tracker-bot/internal/repository"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// markerLayout is the idempotency marker format: the matched date and
// minute. Two ticks inside the same minute produce the same marker, so
// only the first one fires.
const markerLayout = "2006-01-02T15:04"

// LoAExpirer sweeps overdue leaves. Implemented by service.LoAService.
type LoAExpirer interface {
	ExpireOverdue(now time.Time) ([]*models.LeaveOfAbsence, error)
}

// ReportRunner generates and delivers one tenant's scheduled report.
// Implemented by service.ReportService.
type ReportRunner interface {
	RunScheduled(settings *models.TenantSettings) error
}

type Option func(*Scheduler)

// WithInterval sets the tick interval. Default five minutes.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithNow overrides the clock used by the tick loop. Tests only.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

type Scheduler struct {
	loas     LoAExpirer
	reports  ReportRunner
	settings repository.SettingsRepository
	logger   *logrus.Logger

	interval time.Duration
	now      func() time.Time

	cron *cron.Cron
}

func New(
	loas LoAExpirer,
	reports ReportRunner,
	settings repository.SettingsRepository,
	logger *logrus.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		loas:     loas,
		reports:  reports,
		settings: settings,
		logger:   logger,
		interval: 5 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the periodic tick.
func (s *Scheduler) Start() error {
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.RunTick(s.now())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithField("interval", s.interval.String()).Info("Scheduler started")
	return nil
}

// Stop halts the tick and waits for a running one to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunTick performs the two sweeps for one tick. The sweeps are
// independent; a failure in one never blocks the other, and a failure
// for one tenant never blocks the next.
func (s *Scheduler) RunTick(now time.Time) {
	s.expirySweep(now)
	s.reportSweep(now)
}

func (s *Scheduler) expirySweep(now time.Time) {
	expired, err := s.loas.ExpireOverdue(now)
	if err != nil {
		s.logger.WithError(err).Warn("Leave expiry sweep failed")
		return
	}
	for _, loa := range expired {
		s.logger.WithFields(logrus.Fields{
			"id":        loa.ID,
			"tenant_id": loa.TenantID,
			"user_id":   loa.UserID,
		}).Info("Leave expired")
	}
}

func (s *Scheduler) reportSweep(now time.Time) {
	tenants, err := s.settings.ListConfigured()
	if err != nil {
		s.logger.WithError(err).Warn("Report sweep failed to list tenants")
		return
	}

	for _, cfg := range tenants {
		if err := s.dispatchReport(cfg, now); err != nil {
			s.logger.WithError(err).WithField("tenant_id", cfg.TenantID).
				Warn("Report dispatch failed")
		}
	}
}

// dispatchReport fires the tenant's report when the wall clock matches
// the configured minute, at most once per calendar day. Correctness
// rests on the stored marker, not on tick precision: a missed tick
// means the report fires late or is skipped for the day.
func (s *Scheduler) dispatchReport(cfg *models.TenantSettings, now time.Time) error {
	if !cfg.ReportConfigured() {
		return nil
	}

	scheduled, err := time.Parse("15:04", cfg.ReportTime)
	if err != nil {
		return fmt.Errorf("bad report time %q: %w", cfg.ReportTime, err)
	}
	if now.Hour() != scheduled.Hour() || now.Minute() != scheduled.Minute() {
		return nil
	}

	marker := now.Format(markerLayout)
	if cfg.LastReportMarker == marker {
		return nil
	}
	if !s.intervalElapsed(cfg, now) {
		return nil
	}

	if err := s.reports.RunScheduled(cfg); err != nil {
		return err
	}

	// Persist the marker only after a successful run, so a failed run
	// retries on the next matching tick.
	if err := s.settings.SetLastReportMarker(cfg.TenantID, marker); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": cfg.TenantID,
		"marker":    marker,
	}).Info("Scheduled report dispatched")
	return nil
}

// intervalElapsed enforces the interval_days spacing against the date
// carried in the last marker. A tenant with no prior marker fires on
// the first matched minute.
func (s *Scheduler) intervalElapsed(cfg *models.TenantSettings, now time.Time) bool {
	if cfg.LastReportMarker == "" {
		return true
	}
	last, err := time.ParseInLocation(markerLayout, cfg.LastReportMarker, now.Location())
	if err != nil {
		// Unreadable marker, treat as never fired.
		return true
	}
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.Sub(lastDay) >= time.Duration(cfg.ReportIntervalDays)*24*time.Hour
}

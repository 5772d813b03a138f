package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"shift-tracker-bot/internal/models"

	"github.com/sirupsen/logrus"
)

type stubExpirer struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (e *stubExpirer) ExpireOverdue(now time.Time) ([]*models.LeaveOfAbsence, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, now)
	return nil, e.err
}

type stubRunner struct {
	mu      sync.Mutex
	tenants []string
	err     error
}

func (r *stubRunner) RunScheduled(settings *models.TenantSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = append(r.tenants, settings.TenantID)
	return r.err
}

func (r *stubRunner) runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tenants)
}

type stubSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]*models.TenantSettings
	listErr  error
}

func newStubSettingsRepo(rows ...*models.TenantSettings) *stubSettingsRepo {
	r := &stubSettingsRepo{settings: make(map[string]*models.TenantSettings)}
	for _, row := range rows {
		r.settings[row.TenantID] = row
	}
	return r
}

func (r *stubSettingsRepo) Get(tenantID string) (*models.TenantSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[tenantID]; ok {
		return s, nil
	}
	return models.DefaultSettings(tenantID), nil
}

func (r *stubSettingsRepo) Save(settings *models.TenantSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[settings.TenantID] = settings
	return nil
}

func (r *stubSettingsRepo) ListConfigured() ([]*models.TenantSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*models.TenantSettings
	for _, s := range r.settings {
		if s.ReportConfigured() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubSettingsRepo) SetLastReportMarker(tenantID, marker string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[tenantID]; ok {
		s.LastReportMarker = marker
	}
	return nil
}

func (r *stubSettingsRepo) marker(tenantID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings[tenantID].LastReportMarker
}

func configuredTenant(tenantID string) *models.TenantSettings {
	s := models.DefaultSettings(tenantID)
	s.ReportChannel = "channel-1"
	s.ReportTime = "09:30"
	s.ReportIntervalDays = 1
	return s
}

func newSchedulerFixture(repo *stubSettingsRepo) (*Scheduler, *stubExpirer, *stubRunner) {
	expirer := &stubExpirer{}
	runner := &stubRunner{}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(expirer, runner, repo, logger), expirer, runner
}

func at(day int, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, time.UTC)
}

func TestTickRunsExpirySweep(t *testing.T) {
	repo := newStubSettingsRepo()
	sched, expirer, _ := newSchedulerFixture(repo)

	now := at(10, 9, 30)
	sched.RunTick(now)

	if len(expirer.calls) != 1 || !expirer.calls[0].Equal(now) {
		t.Fatalf("expiry calls = %v, want one at %v", expirer.calls, now)
	}
}

func TestReportFiresOnceAtMatchedMinute(t *testing.T) {
	repo := newStubSettingsRepo(configuredTenant("tenant-1"))
	sched, _, runner := newSchedulerFixture(repo)

	// Two ticks land inside the scheduled minute; the marker dedups
	// the second one.
	sched.RunTick(at(10, 9, 30))
	sched.RunTick(at(10, 9, 30).Add(20 * time.Second))

	if runner.runs() != 1 {
		t.Fatalf("runs = %d, want 1", runner.runs())
	}
	if got, want := repo.marker("tenant-1"), "2026-03-10T09:30"; got != want {
		t.Fatalf("marker = %q, want %q", got, want)
	}
}

func TestReportSkipsWrongMinute(t *testing.T) {
	repo := newStubSettingsRepo(configuredTenant("tenant-1"))
	sched, _, runner := newSchedulerFixture(repo)

	sched.RunTick(at(10, 9, 29))
	sched.RunTick(at(10, 14, 30))

	if runner.runs() != 0 {
		t.Fatalf("runs = %d, want 0", runner.runs())
	}
}

func TestReportSkipsUnconfiguredTenant(t *testing.T) {
	repo := newStubSettingsRepo(models.DefaultSettings("tenant-1"))
	sched, _, runner := newSchedulerFixture(repo)

	sched.RunTick(at(10, 9, 30))

	if runner.runs() != 0 {
		t.Fatalf("runs = %d, want 0", runner.runs())
	}
}

func TestReportIntervalDaysSpacing(t *testing.T) {
	cfg := configuredTenant("tenant-1")
	cfg.ReportIntervalDays = 3
	repo := newStubSettingsRepo(cfg)
	sched, _, runner := newSchedulerFixture(repo)

	sched.RunTick(at(10, 9, 30)) // fires, marker set
	sched.RunTick(at(11, 9, 30)) // 1 day elapsed, skipped
	sched.RunTick(at(12, 9, 30)) // 2 days elapsed, skipped
	sched.RunTick(at(13, 9, 30)) // 3 days elapsed, fires

	if runner.runs() != 2 {
		t.Fatalf("runs = %d, want 2", runner.runs())
	}
	if got, want := repo.marker("tenant-1"), "2026-03-13T09:30"; got != want {
		t.Fatalf("marker = %q, want %q", got, want)
	}
}

func TestFailedRunLeavesMarkerUnsetAndRetries(t *testing.T) {
	repo := newStubSettingsRepo(configuredTenant("tenant-1"))
	sched, _, runner := newSchedulerFixture(repo)

	runner.err = errors.New("sink unavailable")
	sched.RunTick(at(10, 9, 30))

	if got := repo.marker("tenant-1"); got != "" {
		t.Fatalf("marker = %q after failed run, want empty", got)
	}

	runner.err = nil
	sched.RunTick(at(10, 9, 30).Add(30 * time.Second))

	if runner.runs() != 2 {
		t.Fatalf("runs = %d, want 2 (failed attempt plus retry)", runner.runs())
	}
	if got, want := repo.marker("tenant-1"), "2026-03-10T09:30"; got != want {
		t.Fatalf("marker = %q, want %q", got, want)
	}
}

func TestTenantFailureDoesNotBlockOthers(t *testing.T) {
	repo := newStubSettingsRepo(configuredTenant("tenant-1"), configuredTenant("tenant-2"))
	repo.settings["tenant-1"].ReportTime = "bad"
	sched, _, runner := newSchedulerFixture(repo)

	sched.RunTick(at(10, 9, 30))

	if runner.runs() != 1 {
		t.Fatalf("runs = %d, want 1 (healthy tenant only)", runner.runs())
	}
}

func TestGarbledMarkerTreatedAsNeverFired(t *testing.T) {
	cfg := configuredTenant("tenant-1")
	cfg.LastReportMarker = "not-a-marker"
	repo := newStubSettingsRepo(cfg)
	sched, _, runner := newSchedulerFixture(repo)

	sched.RunTick(at(10, 9, 30))

	if runner.runs() != 1 {
		t.Fatalf("runs = %d, want 1", runner.runs())
	}
	if got, want := repo.marker("tenant-1"), "2026-03-10T09:30"; got != want {
		t.Fatalf("marker = %q, want %q", got, want)
	}
}

package service

import (
	"errors"
	"sort"
	"sync"
	"time"

	"shift-tracker-bot/internal/models"
	"shift-tracker-bot/internal/repository"
)

// In-memory repository fakes. The shift fake mimics the exclusive
// claim transaction and the leave fake the partial unique index, so
// the storage-level invariant paths are exercised too.

type fakeShiftRepo struct {
	mu     sync.Mutex
	shifts map[uint]*models.Shift
	nextID uint
}

func newFakeShiftRepo() *fakeShiftRepo {
	return &fakeShiftRepo{shifts: make(map[uint]*models.Shift), nextID: 1}
}

func (r *fakeShiftRepo) Create(shift *models.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	shift.ID = r.nextID
	r.nextID++
	r.shifts[shift.ID] = shift
	return nil
}

func (r *fakeShiftRepo) CreateExclusive(shift *models.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shifts {
		if s.TenantID == shift.TenantID && s.UserID == shift.UserID && s.IsOpen() {
			return repository.ErrOpenShiftExists
		}
	}
	shift.ID = r.nextID
	r.nextID++
	r.shifts[shift.ID] = shift
	return nil
}

func (r *fakeShiftRepo) Update(shift *models.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shifts[shift.ID]; !ok {
		return errors.New("shift not found")
	}
	r.shifts[shift.ID] = shift
	return nil
}

func (r *fakeShiftRepo) GetByID(id uint) (*models.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shifts[id], nil
}

func (r *fakeShiftRepo) GetOpenByUser(tenantID, userID string) (*models.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shifts {
		if s.TenantID == tenantID && s.UserID == userID && s.IsOpen() {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeShiftRepo) ListByUser(tenantID, userID string, limit int) ([]*models.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Shift
	for _, s := range r.shifts {
		if s.TenantID == tenantID && s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTS > out[j].StartTS })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeShiftRepo) ListOpen(tenantID, userID string, beforeTS int64) ([]*models.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Shift
	for _, s := range r.shifts {
		if s.TenantID != tenantID || !s.IsOpen() {
			continue
		}
		if userID != "" && s.UserID != userID {
			continue
		}
		if beforeTS > 0 && s.StartTS >= beforeTS {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTS < out[j].StartTS })
	return out, nil
}

func (r *fakeShiftRepo) SumByUser(tenantID string, fromTS, toTS int64, typeFilter string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := make(map[string]int64)
	for _, s := range r.shifts {
		if s.TenantID != tenantID || s.Status == models.ShiftStatusPaused {
			continue
		}
		if s.StartTS < fromTS || s.StartTS > toTS {
			continue
		}
		if typeFilter != "" && s.Type != typeFilter {
			continue
		}
		totals[s.UserID] += s.TotalSeconds
	}
	return totals, nil
}

func (r *fakeShiftRepo) Leaderboard(tenantID, typeFilter string, limit, offset int) ([]repository.LeaderboardRow, error) {
	totals, _ := r.SumByUser(tenantID, 0, 1<<62, typeFilter)
	rows := make([]repository.LeaderboardRow, 0, len(totals))
	for userID, total := range totals {
		rows = append(rows, repository.LeaderboardRow{UserID: userID, TotalSeconds: total})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TotalSeconds > rows[j].TotalSeconds })
	if offset < len(rows) {
		rows = rows[offset:]
	} else {
		rows = nil
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeShiftRepo) DeleteByID(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shifts[id]; !ok {
		return errors.New("shift not found")
	}
	delete(r.shifts, id)
	return nil
}

type fakeLoARepo struct {
	mu     sync.Mutex
	loas   map[uint]*models.LeaveOfAbsence
	nextID uint
}

func newFakeLoARepo() *fakeLoARepo {
	return &fakeLoARepo{loas: make(map[uint]*models.LeaveOfAbsence), nextID: 1}
}

func (r *fakeLoARepo) uniqueApprovedHeld(candidate *models.LeaveOfAbsence) bool {
	for _, l := range r.loas {
		if l.ID != candidate.ID && l.TenantID == candidate.TenantID &&
			l.UserID == candidate.UserID && l.IsApproved() {
			return true
		}
	}
	return false
}

func (r *fakeLoARepo) Create(loa *models.LeaveOfAbsence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if loa.IsApproved() && r.uniqueApprovedHeld(loa) {
		return errors.New("UNIQUE constraint failed: loa.tenant_id, loa.user_id")
	}
	loa.ID = r.nextID
	r.nextID++
	r.loas[loa.ID] = loa
	return nil
}

func (r *fakeLoARepo) Update(loa *models.LeaveOfAbsence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loas[loa.ID]; !ok {
		return errors.New("leave not found")
	}
	if loa.IsApproved() && r.uniqueApprovedHeld(loa) {
		return errors.New("UNIQUE constraint failed: loa.tenant_id, loa.user_id")
	}
	r.loas[loa.ID] = loa
	return nil
}

func (r *fakeLoARepo) CloseApproved(loa *models.LeaveOfAbsence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.loas[loa.ID]
	if !ok || !stored.IsApproved() {
		return repository.ErrLeaveNotApproved
	}
	stored.Status = models.LoAStatusEnded
	loa.Status = models.LoAStatusEnded
	return nil
}

func (r *fakeLoARepo) GetByID(id uint) (*models.LeaveOfAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loas[id], nil
}

func (r *fakeLoARepo) GetApprovedByUser(tenantID, userID string) (*models.LeaveOfAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.loas {
		if l.TenantID == tenantID && l.UserID == userID && l.IsApproved() {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeLoARepo) ListByUser(tenantID, userID string, limit int) ([]*models.LeaveOfAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LeaveOfAbsence
	for _, l := range r.loas {
		if l.TenantID == tenantID && l.UserID == userID {
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLoARepo) ListByStatus(tenantID, status string, limit int) ([]*models.LeaveOfAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LeaveOfAbsence
	for _, l := range r.loas {
		if l.TenantID == tenantID && l.Status == status {
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLoARepo) ListApproved(tenantID string) ([]*models.LeaveOfAbsence, error) {
	return r.ListByStatus(tenantID, models.LoAStatusApproved, 0)
}

func (r *fakeLoARepo) ListExpired(nowTS int64) ([]*models.LeaveOfAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LeaveOfAbsence
	for _, l := range r.loas {
		if l.IsApproved() && l.EndTS <= nowTS {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTS < out[j].EndTS })
	return out, nil
}

type fakeTypeRepo struct {
	types map[string]*models.ShiftType
}

func newFakeTypeRepo(names ...string) *fakeTypeRepo {
	r := &fakeTypeRepo{types: make(map[string]*models.ShiftType)}
	for i, name := range names {
		r.types[name] = &models.ShiftType{ID: uint(i + 1), Name: name}
	}
	return r
}

func (r *fakeTypeRepo) GetByName(name string) (*models.ShiftType, error) {
	return r.types[name], nil
}

func (r *fakeTypeRepo) List() ([]*models.ShiftType, error) {
	var out []*models.ShiftType
	for _, st := range r.types {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeTypeRepo) SetRole(name, roleID string) error {
	st, ok := r.types[name]
	if !ok {
		return errors.New("shift type not found")
	}
	st.RoleID = roleID
	return nil
}

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]*models.TenantSettings
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: make(map[string]*models.TenantSettings)}
}

func (r *fakeSettingsRepo) Get(tenantID string) (*models.TenantSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[tenantID]; ok {
		return s, nil
	}
	return models.DefaultSettings(tenantID), nil
}

func (r *fakeSettingsRepo) Save(settings *models.TenantSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[settings.TenantID] = settings
	return nil
}

func (r *fakeSettingsRepo) ListConfigured() ([]*models.TenantSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TenantSettings
	for _, s := range r.settings {
		if s.ReportConfigured() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSettingsRepo) SetLastReportMarker(tenantID, marker string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[tenantID]; ok {
		s.LastReportMarker = marker
	}
	return nil
}

// Collaborator spies.

type notifySpy struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newNotifySpy() *notifySpy {
	return &notifySpy{messages: make(map[string][]string)}
}

func (n *notifySpy) Notify(userID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[userID] = append(n.messages[userID], message)
	return nil
}

type roleSpy struct {
	mu      sync.Mutex
	granted map[string][]string
	revoked map[string][]string
}

func newRoleSpy() *roleSpy {
	return &roleSpy{granted: make(map[string][]string), revoked: make(map[string][]string)}
}

func (r *roleSpy) GrantRole(_, userID, roleRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.granted[userID] = append(r.granted[userID], roleRef)
	return nil
}

func (r *roleSpy) RevokeRole(_, userID, roleRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[userID] = append(r.revoked[userID], roleRef)
	return nil
}

type auditSpy struct {
	mu      sync.Mutex
	actions []string
}

func (a *auditSpy) Record(_, _, _, action string, _ any, _ time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *auditSpy) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, got := range a.actions {
		if got == action {
			return true
		}
	}
	return false
}

type sinkSpy struct {
	mu       sync.Mutex
	sections []Section
}

func (s *sinkSpy) Deliver(_, _ string, section Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = append(s.sections, section)
	return nil
}

// testClock is a manually advanced clock.
type testClock struct {
	mu sync.Mutex
	ts int64
}

func newTestClock(start int64) *testClock {
	return &testClock{ts: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.ts, 0)
}

func (c *testClock) Advance(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts += seconds
}

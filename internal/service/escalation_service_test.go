package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civicdesk/grievance-api/internal/models"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
)

type lockerStub struct {
	acquired   bool
	acquireErr error
	released   int
}

func (l *lockerStub) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return l.acquired, l.acquireErr
}

func (l *lockerStub) ReleaseLock(ctx context.Context, key, owner string) error {
	l.released++
	return nil
}

type escalationFixture struct {
	repo    *grievanceRepoStub
	events  *eventStoreStub
	locker  *lockerStub
	svc     *EscalationService
	current time.Time
}

func newEscalationFixture() *escalationFixture {
	return newEscalationFixtureBatch(50)
}

func newEscalationFixtureBatch(batchSize int) *escalationFixture {
	f := &escalationFixture{
		repo:    newGrievanceRepoStub(),
		events:  &eventStoreStub{},
		locker:  &lockerStub{acquired: true},
		current: testNow,
	}
	departments := &departmentStoreStub{byID: map[string]*models.Department{
		"dept-roads": {ID: "dept-roads", Name: "Roads"},
	}}
	f.svc = NewEscalationService(f.repo, f.events, departments, f.locker, time.Minute, batchSize, nil,
		WithEscalationClock(func() time.Time { return f.current }))
	return f
}

func (f *escalationFixture) seedOverdue(status models.GrievanceStatus) *models.Grievance {
	due := f.current.Add(-time.Hour)
	g := &models.Grievance{
		ID:           "g-" + string(status),
		CitizenID:    "citizen-1",
		Status:       status,
		DepartmentID: strPtr("dept-roads"),
		DueDate:      &due,
		Version:      1,
	}
	stored := *g
	f.repo.grievances[g.ID] = &stored
	return g
}

func (f *escalationFixture) seedOverdueAt(id string, status models.GrievanceStatus, createdAt time.Time) *models.Grievance {
	due := f.current.Add(-time.Hour)
	g := &models.Grievance{
		ID:           id,
		CitizenID:    "citizen-1",
		Status:       status,
		DepartmentID: strPtr("dept-roads"),
		DueDate:      &due,
		Version:      1,
		CreatedAt:    createdAt,
	}
	stored := *g
	f.repo.grievances[g.ID] = &stored
	return g
}

func TestEscalationChainAcrossSweeps(t *testing.T) {
	f := newEscalationFixture()
	g := f.seedOverdue(models.StatusInReview)

	resp, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Escalated)
	require.Equal(t, 1, resp.Scanned)
	require.Zero(t, resp.Failed)

	stored := f.repo.grievances[g.ID]
	require.Equal(t, models.StatusPendingApproval, stored.Status)
	require.Equal(t, f.current.AddDate(0, 0, 3), *stored.DueDate)
	require.Equal(t, []string{models.EventEscalated}, f.events.actions(g.ID))

	// Past the approval deadline, the next sweep rejects it outright.
	f.current = f.current.AddDate(0, 0, 4)
	resp, err = f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Escalated)

	stored = f.repo.grievances[g.ID]
	require.Equal(t, models.StatusRejected, stored.Status)
	require.Nil(t, stored.DueDate)
	require.Equal(t, []string{models.EventEscalated, models.EventEscalated}, f.events.actions(g.ID))

	// Terminal now, so further sweeps find nothing.
	f.current = f.current.AddDate(0, 0, 30)
	resp, err = f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, resp.Escalated)
	require.Zero(t, resp.Scanned)
}

func TestEscalationPolicyDecisionHolds(t *testing.T) {
	f := newEscalationFixture()
	g := f.seedOverdue(models.StatusPolicyDecision)

	// End of the chain: the sweep does not even fetch it.
	resp, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, resp.Scanned)
	require.Zero(t, resp.Escalated)
	require.Equal(t, models.StatusPolicyDecision, f.repo.grievances[g.ID].Status)
	require.Empty(t, f.events.events)
}

func TestAutoEscalateSkipsFutureDueDates(t *testing.T) {
	f := newEscalationFixture()
	due := f.current.Add(time.Hour)
	g := &models.Grievance{ID: "g-1", Status: models.StatusInReview, DueDate: &due, Version: 1}

	moved, err := f.svc.AutoEscalateIfOverdue(context.Background(), g, f.current)
	require.NoError(t, err)
	require.False(t, moved)
	require.Equal(t, models.StatusInReview, g.Status)
}

func TestAutoEscalateYieldsToConcurrentWriter(t *testing.T) {
	f := newEscalationFixture()
	g := f.seedOverdue(models.StatusInReview)
	f.repo.saveErr[g.ID] = sql.ErrNoRows

	moved, err := f.svc.AutoEscalateIfOverdue(context.Background(), g, f.current)
	require.NoError(t, err)
	require.False(t, moved)
	require.Empty(t, f.events.events)
}

func TestSweepRefusedWhileLockHeld(t *testing.T) {
	f := newEscalationFixture()
	f.locker.acquired = false
	f.seedOverdue(models.StatusInReview)

	_, err := f.svc.Sweep(context.Background())
	require.True(t, appErrors.Is(err, appErrors.ErrSweepInProgress))
}

func TestSweepProceedsWhenLockerUnavailable(t *testing.T) {
	f := newEscalationFixture()
	f.locker.acquireErr = errors.New("redis down")
	g := f.seedOverdue(models.StatusInReview)

	resp, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Escalated)
	require.Equal(t, models.StatusPendingApproval, f.repo.grievances[g.ID].Status)
	require.Zero(t, f.locker.released)
}

func TestSweepReleasesLock(t *testing.T) {
	f := newEscalationFixture()

	_, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.locker.released)
}

func TestSweepReachesRowsBehindHeldDecisions(t *testing.T) {
	f := newEscalationFixtureBatch(1)
	held := f.seedOverdueAt("g-held", models.StatusPolicyDecision, f.current.Add(-time.Hour))
	waiting := f.seedOverdueAt("g-waiting", models.StatusInReview, f.current.Add(-2*time.Hour))

	resp, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Scanned)
	require.Equal(t, 1, resp.Escalated)
	require.Equal(t, models.StatusPolicyDecision, f.repo.grievances[held.ID].Status)
	require.Equal(t, models.StatusPendingApproval, f.repo.grievances[waiting.ID].Status)
}

func TestSweepAdvancesPastFailedRows(t *testing.T) {
	f := newEscalationFixtureBatch(1)
	broken := f.seedOverdueAt("g-broken", models.StatusInReview, f.current.Add(-time.Hour))
	waiting := f.seedOverdueAt("g-waiting", models.StatusInReview, f.current.Add(-2*time.Hour))
	f.repo.saveErr[broken.ID] = errors.New("row locked")

	resp, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, resp.Scanned)
	require.Equal(t, 1, resp.Escalated)
	require.Equal(t, 1, resp.Failed)
	require.Equal(t, models.StatusInReview, f.repo.grievances[broken.ID].Status)
	require.Equal(t, models.StatusPendingApproval, f.repo.grievances[waiting.ID].Status)
}

func TestSweepIsolatesPerGrievanceFailures(t *testing.T) {
	f := newEscalationFixture()
	broken := f.seedOverdue(models.StatusInReview)
	healthy := f.seedOverdue(models.StatusInProgress)
	f.repo.saveErr[broken.ID] = errors.New("row locked")

	resp, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, resp.Scanned)
	require.Equal(t, 1, resp.Escalated)
	require.Equal(t, 1, resp.Failed)
	require.Equal(t, models.StatusInReview, f.repo.grievances[broken.ID].Status)
	require.Equal(t, models.StatusPolicyDecision, f.repo.grievances[healthy.ID].Status)
}

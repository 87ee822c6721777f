package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civicdesk/grievance-api/internal/dto"
	"github.com/civicdesk/grievance-api/internal/models"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
)

type statsStoreStub struct {
	byStatus   []models.StatusCount
	overdue    int
	critical   int
	dueBetween int
	dueAfter   int
	top        []models.DepartmentCount
	calls      int

	betweenFrom    time.Time
	betweenTo      time.Time
	afterCutoff    time.Time
	overdueCutoffs []time.Time
}

func (s *statsStoreStub) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	s.calls++
	return s.byStatus, nil
}

func (s *statsStoreStub) CountOverdue(ctx context.Context, statuses []models.GrievanceStatus, now time.Time) (int, error) {
	s.overdueCutoffs = append(s.overdueCutoffs, now)
	if len(s.overdueCutoffs) == 1 {
		return s.overdue, nil
	}
	return s.critical, nil
}

func (s *statsStoreStub) CountDueBetween(ctx context.Context, from, to time.Time) (int, error) {
	s.betweenFrom, s.betweenTo = from, to
	return s.dueBetween, nil
}

func (s *statsStoreStub) CountDueAfter(ctx context.Context, cutoff time.Time) (int, error) {
	s.afterCutoff = cutoff
	return s.dueAfter, nil
}

func (s *statsStoreStub) TopDepartments(ctx context.Context, limit int) ([]models.DepartmentCount, error) {
	return s.top, nil
}

type statsCacheStub struct {
	stored *dto.AdminStatsResponse
	getErr error
	setErr error
	sets   int
}

func (c *statsCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if c.getErr != nil {
		return c.getErr
	}
	if c.stored == nil {
		return appErrors.ErrCacheMiss
	}
	out, ok := dest.(*dto.AdminStatsResponse)
	if !ok {
		return errors.New("unexpected destination type")
	}
	*out = *c.stored
	return nil
}

func (c *statsCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	if resp, ok := value.(*dto.AdminStatsResponse); ok {
		copied := *resp
		c.stored = &copied
	}
	return nil
}

func newStatsStoreStub() *statsStoreStub {
	return &statsStoreStub{
		byStatus: []models.StatusCount{
			{Status: models.StatusPending, Count: 10},
			{Status: models.StatusInReview, Count: 5},
			{Status: models.StatusResolved, Count: 20},
		},
		overdue:    3,
		critical:   1,
		dueBetween: 2,
		dueAfter:   4,
		top: []models.DepartmentCount{
			{DepartmentName: "Roads", Count: 12},
		},
	}
}

func TestStatsServiceAggregates(t *testing.T) {
	store := newStatsStoreStub()
	cache := &statsCacheStub{}
	svc := NewStatsService(store, cache, time.Minute, nil)

	resp, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 35, resp.Total)
	require.Equal(t, 3, resp.Overdue)
	require.Equal(t, models.SLAHealth{Healthy: 4, Warning: 2, Critical: 1}, resp.SLA)
	require.Len(t, resp.TopDepartment, 1)
	require.Equal(t, 1, cache.sets)
}

func TestStatsServiceWarningWindowTrailsDeadline(t *testing.T) {
	store := newStatsStoreStub()
	svc := NewStatsService(store, nil, time.Minute, nil)

	_, err := svc.AdminStats(context.Background())
	require.NoError(t, err)

	// Healthy is anything not yet due; warning covers the three days just
	// past the deadline; critical is everything older.
	require.Equal(t, 3*24*time.Hour, store.betweenTo.Sub(store.betweenFrom))
	require.Equal(t, store.betweenTo, store.afterCutoff)
	require.Len(t, store.overdueCutoffs, 2)
	require.Equal(t, store.betweenTo, store.overdueCutoffs[0])
	require.Equal(t, store.betweenFrom, store.overdueCutoffs[1])
}

func TestStatsServiceServesFromCache(t *testing.T) {
	store := newStatsStoreStub()
	cache := &statsCacheStub{stored: &dto.AdminStatsResponse{Total: 99}}
	svc := NewStatsService(store, cache, time.Minute, nil)

	resp, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 99, resp.Total)
	require.Zero(t, store.calls)
}

func TestStatsServiceSurvivesCacheFailures(t *testing.T) {
	store := newStatsStoreStub()
	cache := &statsCacheStub{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	svc := NewStatsService(store, cache, time.Minute, nil)

	resp, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 35, resp.Total)
}

func TestStatsServiceWorksWithoutCache(t *testing.T) {
	store := newStatsStoreStub()
	svc := NewStatsService(store, nil, time.Minute, nil)

	resp, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 35, resp.Total)
	require.Equal(t, 1, store.calls)
}

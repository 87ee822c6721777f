package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-api/internal/dto"
	"github.com/civicdesk/grievance-api/internal/models"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
)

const (
	statsCacheKey = "grievance:stats:admin"

	// slaWarningWindow is the band just past the deadline that still counts
	// as warning on the dashboard; anything older is critical.
	slaWarningWindow = 3 * 24 * time.Hour
)

type statsStore interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountOverdue(ctx context.Context, statuses []models.GrievanceStatus, now time.Time) (int, error)
	CountDueBetween(ctx context.Context, from, to time.Time) (int, error)
	CountDueAfter(ctx context.Context, cutoff time.Time) (int, error)
	TopDepartments(ctx context.Context, limit int) ([]models.DepartmentCount, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatsService aggregates the authority dashboard counters, serving them
// from Redis between refreshes.
type StatsService struct {
	repo   statsStore
	cache  statsCache
	logger *zap.Logger

	cacheTTL time.Duration
	now      func() time.Time
}

// NewStatsService constructs the service.
func NewStatsService(repo statsStore, cache statsCache, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StatsService{
		repo:     repo,
		cache:    cache,
		logger:   logger,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AdminStats returns the aggregated counters, preferring the cached copy.
func (s *StatsService) AdminStats(ctx context.Context) (*dto.AdminStatsResponse, error) {
	if s.cache != nil {
		var cached dto.AdminStatsResponse
		if err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
	}

	now := s.now()
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "count by status")
	}
	total := 0
	for _, c := range byStatus {
		total += c.Count
	}

	overdue, err := s.repo.CountOverdue(ctx, models.ClockBearingStatuses(), now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "count overdue")
	}
	warning, err := s.repo.CountDueBetween(ctx, now.Add(-slaWarningWindow), now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "count warning")
	}
	healthy, err := s.repo.CountDueAfter(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "count healthy")
	}
	critical, err := s.repo.CountOverdue(ctx, models.ClockBearingStatuses(), now.Add(-slaWarningWindow))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "count critical")
	}
	topDepartments, err := s.repo.TopDepartments(ctx, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "top departments")
	}

	resp := &dto.AdminStatsResponse{
		Total:    total,
		ByStatus: byStatus,
		Overdue:  overdue,
		SLA: models.SLAHealth{
			Healthy:  healthy,
			Warning:  warning,
			Critical: critical,
		},
		TopDepartment: topDepartments,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, resp, s.cacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return resp, nil
}

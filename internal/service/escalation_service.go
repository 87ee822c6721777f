package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-api/internal/dto"
	"github.com/civicdesk/grievance-api/internal/models"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
)

const sweepLockKey = "grievance:sweep:lock"

type sweepLocker interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

// EscalationService walks overdue grievances up the escalation chain:
// InReview to PendingApproval, InProgress to PolicyDecision, and a missed
// PendingApproval deadline to Rejected. PolicyDecision holds overdue without
// moving further.
type EscalationService struct {
	repo        grievanceStore
	events      eventStore
	departments departmentStore
	locker      sweepLocker
	policy      SLAPolicy
	logger      *zap.Logger
	metrics     *MetricsService

	lockTTL   time.Duration
	batchSize int

	now func() time.Time
}

// EscalationServiceOption configures the service.
type EscalationServiceOption func(*EscalationService)

// WithEscalationClock overrides the wall clock, for tests.
func WithEscalationClock(now func() time.Time) EscalationServiceOption {
	return func(s *EscalationService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEscalationMetrics enables sweep instrumentation.
func WithEscalationMetrics(metrics *MetricsService) EscalationServiceOption {
	return func(s *EscalationService) {
		s.metrics = metrics
	}
}

// NewEscalationService constructs the service with defaults.
func NewEscalationService(
	repo grievanceStore,
	events eventStore,
	departments departmentStore,
	locker sweepLocker,
	lockTTL time.Duration,
	batchSize int,
	logger *zap.Logger,
	opts ...EscalationServiceOption,
) *EscalationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	svc := &EscalationService{
		repo:        repo,
		events:      events,
		departments: departments,
		locker:      locker,
		logger:      logger,
		lockTTL:     lockTTL,
		batchSize:   batchSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// AutoEscalateIfOverdue applies one escalation step to a grievance when its
// clock has expired. Returns true when the grievance moved. Applying it to a
// non-overdue or end-of-chain grievance is a no-op, so re-running a sweep
// over the same rows is safe.
func (s *EscalationService) AutoEscalateIfOverdue(ctx context.Context, g *models.Grievance, now time.Time) (bool, error) {
	if !g.Overdue(now) {
		return false, nil
	}
	target, ok := g.Status.EscalationTarget()
	if !ok {
		return false, nil
	}

	var dept *models.Department
	if g.DepartmentID != nil {
		d, err := s.departments.GetByID(ctx, *g.DepartmentID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("load department: %w", err)
		}
		dept = d
	}

	oldStatus := g.Status
	g.Status = target
	g.DueDate = s.policy.DueDate(target, dept, now)

	if err := s.repo.Save(ctx, g); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Someone else moved it first; their transition wins.
			return false, nil
		}
		return false, fmt.Errorf("save grievance: %w", err)
	}

	notes := fmt.Sprintf("%s -> %s: SLA deadline missed", oldStatus, target)
	if g.DueDate != nil {
		notes += fmt.Sprintf(", due %s", g.DueDate.Format(time.RFC3339))
	}
	event := models.GrievanceEvent{
		GrievanceID: g.ID,
		ActorID:     models.ActorSystem,
		Action:      models.EventEscalated,
		Notes:       notes,
		Timestamp:   now,
	}
	if err := s.events.AppendAll(ctx, []models.GrievanceEvent{event}); err != nil {
		return true, fmt.Errorf("record escalation event: %w", err)
	}

	s.metrics.RecordEscalation(string(target))
	s.logger.Info("grievance escalated",
		zap.String("grievance_id", g.ID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(target)))
	return true, nil
}

// Sweep escalates every overdue grievance. A Redis lock keeps concurrent
// runs from overlapping; the optimistic save makes duplicate work harmless
// either way. Failures are isolated per grievance.
func (s *EscalationService) Sweep(ctx context.Context) (*dto.SweepResponse, error) {
	owner := uuid.NewString()
	acquired, err := s.locker.AcquireLock(ctx, sweepLockKey, owner, s.lockTTL)
	if err != nil {
		s.logger.Warn("sweep lock unavailable, proceeding unguarded", zap.Error(err))
	} else if !acquired {
		return nil, appErrors.ErrSweepInProgress
	} else {
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), sweepLockKey, owner); err != nil {
				s.logger.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	now := s.now()
	resp := &dto.SweepResponse{RanAt: now}
	failed := make(map[string]struct{})
	seen := make(map[string]struct{})

	// An escalated grievance leaves the overdue set (fresh due date or a
	// non-clock-bearing status), so rows behind it shift forward on the next
	// fetch. The offset only advances past rows that stayed put, which keeps
	// stuck rows from shadowing the rest of the scan.
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return resp, err
		}
		overdue := now
		batch, err := s.repo.List(ctx, models.GrievanceFilter{
			Status:    models.EscalatableStatuses(),
			OverdueAt: &overdue,
			Limit:     s.batchSize,
			Offset:    offset,
		})
		if err != nil {
			return resp, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "scan overdue grievances")
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			g := &batch[i]
			if _, skip := failed[g.ID]; skip {
				offset++
				continue
			}
			if _, ok := seen[g.ID]; !ok {
				seen[g.ID] = struct{}{}
				resp.Scanned++
			}
			moved, err := s.AutoEscalateIfOverdue(ctx, g, now)
			if err != nil {
				s.logger.Error("escalation failed",
					zap.String("grievance_id", g.ID),
					zap.String("status", string(g.Status)),
					zap.Error(err))
				failed[g.ID] = struct{}{}
				resp.Failed++
				offset++
				continue
			}
			if moved {
				resp.Escalated++
			} else {
				offset++
			}
		}
	}

	s.metrics.ObserveSweep(time.Since(now), resp.Failed)
	s.logger.Info("escalation sweep finished",
		zap.Int("scanned", resp.Scanned),
		zap.Int("escalated", resp.Escalated),
		zap.Int("failed", resp.Failed))
	return resp, nil
}

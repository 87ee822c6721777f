package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/civicdesk/grievance-api/internal/models"
)

// EventRepository appends and lists grievance audit records. Rows are never
// updated or deleted here; the table is append-only.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts one event row.
func (r *EventRepository) Append(ctx context.Context, event *models.GrievanceEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO grievance_events
	(id, grievance_id, actor_id, action, notes, timestamp)
	VALUES (:id, :grievance_id, :actor_id, :action, :notes, :timestamp)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append grievance event: %w", err)
	}
	return nil
}

// AppendAll inserts a batch of events in order.
func (r *EventRepository) AppendAll(ctx context.Context, events []models.GrievanceEvent) error {
	for i := range events {
		if err := r.Append(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

// ListByGrievance returns the event timeline for one grievance, newest first.
func (r *EventRepository) ListByGrievance(ctx context.Context, grievanceID string, limit, offset int) ([]models.GrievanceEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT id, grievance_id, actor_id, action, notes, timestamp
	FROM grievance_events
	WHERE grievance_id = $1
	ORDER BY timestamp DESC
	LIMIT $2 OFFSET $3`
	var events []models.GrievanceEvent
	if err := r.db.SelectContext(ctx, &events, query, grievanceID, limit, offset); err != nil {
		return nil, fmt.Errorf("list grievance events: %w", err)
	}
	return events, nil
}

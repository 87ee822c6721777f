package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/civicdesk/grievance-api/internal/models"
)

const grievanceColumns = `id, citizen_id, title, description, location, status, category_id, department_id,
       due_date, resolution_notes, signed_document, resolution_image, version, created_at, updated_at`

// GrievanceRepository persists grievance rows.
type GrievanceRepository struct {
	db *sqlx.DB
}

// NewGrievanceRepository constructs the repository.
func NewGrievanceRepository(db *sqlx.DB) *GrievanceRepository {
	return &GrievanceRepository{db: db}
}

// Create inserts a new grievance row.
func (r *GrievanceRepository) Create(ctx context.Context, g *models.Grievance) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	g.Version = 1
	const query = `INSERT INTO grievances
	(id, citizen_id, title, description, location, status, category_id, department_id, due_date,
	 resolution_notes, signed_document, resolution_image, version, created_at, updated_at)
	VALUES (:id, :citizen_id, :title, :description, :location, :status, :category_id, :department_id, :due_date,
	 :resolution_notes, :signed_document, :resolution_image, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("create grievance: %w", err)
	}
	return nil
}

// GetByID fetches a grievance by identifier.
func (r *GrievanceRepository) GetByID(ctx context.Context, id string) (*models.Grievance, error) {
	query := fmt.Sprintf(`SELECT %s FROM grievances WHERE id = $1`, grievanceColumns)
	var g models.Grievance
	if err := r.db.GetContext(ctx, &g, query, id); err != nil {
		return nil, err
	}
	return &g, nil
}

// List returns grievances matching the filter (newest first).
func (r *GrievanceRepository) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM grievances", grievanceColumns))

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CitizenID != "" {
		args = append(args, filter.CitizenID)
		conditions = append(conditions, fmt.Sprintf("citizen_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.OverdueAt != nil {
		args = append(args, *filter.OverdueAt)
		conditions = append(conditions, fmt.Sprintf("due_date IS NOT NULL AND due_date < $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var grievances []models.Grievance
	if err := r.db.SelectContext(ctx, &grievances, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list grievances: %w", err)
	}
	return grievances, nil
}

// Save persists mutable fields conditioned on an unchanged version. Returns
// sql.ErrNoRows when the row was modified concurrently.
func (r *GrievanceRepository) Save(ctx context.Context, g *models.Grievance) error {
	expected := g.Version
	g.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grievances SET
		status = :status,
		category_id = :category_id,
		department_id = :department_id,
		due_date = :due_date,
		resolution_notes = :resolution_notes,
		signed_document = :signed_document,
		resolution_image = :resolution_image,
		version = version + 1,
		updated_at = :updated_at
	WHERE id = :id AND version = :expected_version`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               g.ID,
		"status":           g.Status,
		"category_id":      g.CategoryID,
		"department_id":    g.DepartmentID,
		"due_date":         g.DueDate,
		"resolution_notes": g.ResolutionNotes,
		"signed_document":  g.SignedDocument,
		"resolution_image": g.ResolutionImage,
		"updated_at":       g.UpdatedAt,
		"expected_version": expected,
	})
	if err != nil {
		return fmt.Errorf("save grievance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check grievance save rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	g.Version = expected + 1
	return nil
}

// CountByStatus groups grievance counts per status.
func (r *GrievanceRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM grievances GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return counts, nil
}

// CountOverdue returns how many clock-bearing grievances are past due at now.
func (r *GrievanceRepository) CountOverdue(ctx context.Context, statuses []models.GrievanceStatus, now time.Time) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, 0, len(statuses)+1)
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	args = append(args, now)
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM grievances WHERE status IN (%s) AND due_date IS NOT NULL AND due_date < $%d`,
		strings.Join(placeholders, ","), len(args))
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count overdue: %w", err)
	}
	return count, nil
}

// CountDueBetween counts clock-bearing grievances whose due date falls in
// [from, to). Used for SLA health bucketing.
func (r *GrievanceRepository) CountDueBetween(ctx context.Context, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM grievances WHERE due_date IS NOT NULL AND due_date >= $1 AND due_date < $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, from, to); err != nil {
		return 0, fmt.Errorf("count due between: %w", err)
	}
	return count, nil
}

// CountDueAfter counts grievances whose due date is at or after the cutoff.
func (r *GrievanceRepository) CountDueAfter(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM grievances WHERE due_date IS NOT NULL AND due_date >= $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, cutoff); err != nil {
		return 0, fmt.Errorf("count due after: %w", err)
	}
	return count, nil
}

// TopDepartments returns the departments with the most grievances.
func (r *GrievanceRepository) TopDepartments(ctx context.Context, limit int) ([]models.DepartmentCount, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT d.name AS department_name, COUNT(g.id) AS count
	FROM grievances g
	JOIN departments d ON d.id = g.department_id
	GROUP BY d.name
	ORDER BY count DESC
	LIMIT $1`
	var counts []models.DepartmentCount
	if err := r.db.SelectContext(ctx, &counts, query, limit); err != nil {
		return nil, fmt.Errorf("top departments: %w", err)
	}
	return counts, nil
}

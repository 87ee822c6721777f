package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicdesk/grievance-api/internal/models"
)

// DepartmentRepository reads departments and sub-departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// GetByID fetches a department.
func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, name, description, admin_id, sla_days, created_at FROM departments WHERE id = $1`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		return nil, err
	}
	return &dept, nil
}

// GetByName fetches a department by its unique name.
func (r *DepartmentRepository) GetByName(ctx context.Context, name string) (*models.Department, error) {
	const query = `SELECT id, name, description, admin_id, sla_days, created_at FROM departments WHERE name = $1`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, name); err != nil {
		return nil, err
	}
	return &dept, nil
}

// List returns all departments ordered by name.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT id, name, description, admin_id, sla_days, created_at FROM departments ORDER BY name`
	var depts []models.Department
	if err := r.db.SelectContext(ctx, &depts, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

// ListSubDepartments returns the children of one department.
func (r *DepartmentRepository) ListSubDepartments(ctx context.Context, departmentID string) ([]models.SubDepartment, error) {
	const query = `SELECT id, name, description, parent_department_id
	FROM sub_departments WHERE parent_department_id = $1 ORDER BY name`
	var subs []models.SubDepartment
	if err := r.db.SelectContext(ctx, &subs, query, departmentID); err != nil {
		return nil, fmt.Errorf("list sub-departments: %w", err)
	}
	return subs, nil
}

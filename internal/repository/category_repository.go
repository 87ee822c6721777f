package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicdesk/grievance-api/internal/models"
)

const categoryColumns = `c.id, c.name, c.description, c.parent_id, c.sub_department_id, c.department_id,
       sd.parent_department_id AS sub_parent_department_id`

// CategoryRepository reads the category tree.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByID fetches a category with its sub-department's parent joined in for
// department resolution.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	query := fmt.Sprintf(`SELECT %s
	FROM categories c
	LEFT JOIN sub_departments sd ON sd.id = c.sub_department_id
	WHERE c.id = $1`, categoryColumns)
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// GetByName fetches a category by its unique name.
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*models.Category, error) {
	query := fmt.Sprintf(`SELECT %s
	FROM categories c
	LEFT JOIN sub_departments sd ON sd.id = c.sub_department_id
	WHERE c.name = $1`, categoryColumns)
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, name); err != nil {
		return nil, err
	}
	return &category, nil
}

// ListLeaves returns categories without children, the set offered for filing.
func (r *CategoryRepository) ListLeaves(ctx context.Context) ([]models.Category, error) {
	query := fmt.Sprintf(`SELECT %s
	FROM categories c
	LEFT JOIN sub_departments sd ON sd.id = c.sub_department_id
	WHERE NOT EXISTS (SELECT 1 FROM categories child WHERE child.parent_id = c.id)
	ORDER BY c.name`, categoryColumns)
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list leaf categories: %w", err)
	}
	return categories, nil
}

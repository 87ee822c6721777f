package models

// CategoryOther is the catch-all category that routes a grievance to triage.
const CategoryOther = "Other"

// Category labels a grievance type. Categories form a tree via ParentID and
// resolve to a department either directly or through their sub-department's
// parent department.
type Category struct {
	ID              string  `db:"id" json:"id"`
	Name            string  `db:"name" json:"name"`
	Description     *string `db:"description" json:"description,omitempty"`
	ParentID        *string `db:"parent_id" json:"parent_id,omitempty"`
	SubDepartmentID *string `db:"sub_department_id" json:"sub_department_id,omitempty"`
	DepartmentID    *string `db:"department_id" json:"department_id,omitempty"`

	// SubParentDepartmentID is the parent department of the attached
	// sub-department, joined in by the repository for resolution.
	SubParentDepartmentID *string `db:"sub_parent_department_id" json:"-"`
}

// ResolveDepartmentID returns the department the category routes to: the
// direct department when set, else the sub-department's parent department.
func (c *Category) ResolveDepartmentID() (string, bool) {
	if c.DepartmentID != nil && *c.DepartmentID != "" {
		return *c.DepartmentID, true
	}
	if c.SubParentDepartmentID != nil && *c.SubParentDepartmentID != "" {
		return *c.SubParentDepartmentID, true
	}
	return "", false
}

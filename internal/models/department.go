package models

import "time"

// Department is a civic unit grievances are routed to. SLADays, when set,
// overrides the per-status default SLA duration for grievances it owns.
type Department struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	AdminID     *string   `db:"admin_id" json:"admin_id,omitempty"`
	SLADays     *int      `db:"sla_days" json:"sla_days,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SubDepartment is a child unit under a department; categories attached to a
// sub-department inherit its parent department for routing.
type SubDepartment struct {
	ID                 string  `db:"id" json:"id"`
	Name               string  `db:"name" json:"name"`
	Description        *string `db:"description" json:"description,omitempty"`
	ParentDepartmentID string  `db:"parent_department_id" json:"parent_department_id"`
}

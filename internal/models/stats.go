package models

// StatusCount pairs a grievance status with its count.
type StatusCount struct {
	Status GrievanceStatus `db:"status" json:"status"`
	Count  int             `db:"count" json:"count"`
}

// DepartmentCount pairs a department with its open grievance count.
type DepartmentCount struct {
	DepartmentName string `db:"department_name" json:"department_name"`
	Count          int    `db:"count" json:"count"`
}

// SLAHealth buckets clock-bearing grievances by deadline proximity. Warning
// covers due dates inside the warning window ahead of now; critical means the
// deadline already passed.
type SLAHealth struct {
	Healthy  int `json:"healthy"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

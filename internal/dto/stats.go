package dto

import "github.com/civicdesk/grievance-api/internal/models"

// AdminStatsResponse aggregates dashboard counters for the top authority.
type AdminStatsResponse struct {
	Total         int                      `json:"total"`
	ByStatus      []models.StatusCount     `json:"by_status"`
	Overdue       int                      `json:"overdue"`
	SLA           models.SLAHealth         `json:"sla"`
	TopDepartment []models.DepartmentCount `json:"by_dept"`
}

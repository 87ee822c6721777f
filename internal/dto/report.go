package dto

import "github.com/civicdesk/grievance-api/internal/models"

// ReportRequest starts an asynchronous register export.
type ReportRequest struct {
	Type         models.ReportType        `json:"type"`
	Format       models.ReportFormat      `json:"format"`
	DepartmentID *string                  `json:"department_id,omitempty"`
	Status       []models.GrievanceStatus `json:"status,omitempty"`
}

// ReportJobResponse acknowledges job creation.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress and result location.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

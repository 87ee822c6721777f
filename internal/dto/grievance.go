package dto

import (
	"time"

	"github.com/civicdesk/grievance-api/internal/models"
)

// CreateGrievanceRequest is the citizen-facing filing payload.
type CreateGrievanceRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required"`
	CategoryID  string  `json:"category_id" validate:"required"`
	Location    *string `json:"location,omitempty"`
}

// TransitionRequest asks the state machine to move a grievance to a new
// status.
type TransitionRequest struct {
	Status models.GrievanceStatus `json:"status" validate:"required"`
	Notes  string                 `json:"notes"`
}

// ReassignCategoryRequest re-routes a grievance to a different category (and
// thereby department), typically from the triage queue.
type ReassignCategoryRequest struct {
	CategoryID string `json:"category_id" validate:"required"`
}

// ReopenRequest reopens a resolved or rejected grievance.
type ReopenRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ExtensionRequest grants extra days on the current due date. Days defaults
// to the configured extension window when zero.
type ExtensionRequest struct {
	Days int `json:"days" validate:"omitempty,gt=0"`
}

// UpdateResolutionRequest records resolution artifacts. Only non-nil fields
// are applied; each applied field appends its own event.
type UpdateResolutionRequest struct {
	ResolutionNotes *string `json:"resolution_notes,omitempty"`
	SignedDocument  *string `json:"signed_document,omitempty"`
	ResolutionImage *string `json:"resolution_image,omitempty"`
}

// GrievanceResponse pairs the updated grievance with the events the
// operation appended, for the caller to serialize.
type GrievanceResponse struct {
	Grievance *models.Grievance       `json:"grievance"`
	Events    []models.GrievanceEvent `json:"events,omitempty"`
}

// GrievanceQuery mirrors supported listing filters.
type GrievanceQuery struct {
	Status       []models.GrievanceStatus
	DepartmentID string
	CategoryID   string
	Limit        int
	Offset       int
}

// SweepResponse summarises one escalation sweep run.
type SweepResponse struct {
	Escalated int       `json:"escalated"`
	Scanned   int       `json:"scanned"`
	Failed    int       `json:"failed"`
	RanAt     time.Time `json:"ran_at"`
}

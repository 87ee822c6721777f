package models

import "time"

// ActorSystem identifies transitions performed by the sweeper rather than a
// user.
const ActorSystem = "system"

// Event action tags recorded in the grievance audit trail.
const (
	EventGrievanceFiled          = "GRIEVANCE_FILED"
	EventStatusChanged           = "STATUS_CHANGED"
	EventDueDateUpdated          = "DUE_DATE_UPDATED"
	EventCategoryReassigned      = "CATEGORY_REASSIGNED"
	EventEscalated               = "ESCALATED"
	EventReopened                = "REOPENED"
	EventSLAExtensionGranted     = "SLA_EXTENSION_GRANTED"
	EventResolutionNotesUpdated  = "RESOLUTION_NOTES_UPDATED"
	EventSignedDocumentUploaded  = "SIGNED_DOCUMENT_UPLOADED"
	EventResolutionImageUploaded = "RESOLUTION_IMAGE_UPLOADED"
)

// GrievanceEvent is one append-only audit record. Events are never mutated or
// deleted on their own; they are removed only when their grievance is.
type GrievanceEvent struct {
	ID          string    `db:"id" json:"id"`
	GrievanceID string    `db:"grievance_id" json:"grievance_id"`
	ActorID     string    `db:"actor_id" json:"actor_id"`
	Action      string    `db:"action" json:"action"`
	Notes       string    `db:"notes" json:"notes"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
}

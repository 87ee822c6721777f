package models

import "time"

// GrievanceStatus enumerates the workflow states a grievance moves through.
type GrievanceStatus string

const (
	StatusPending         GrievanceStatus = "PENDING"
	StatusInReview        GrievanceStatus = "IN_REVIEW"
	StatusPendingApproval GrievanceStatus = "PENDING_APPROVAL"
	StatusInProgress      GrievanceStatus = "IN_PROGRESS"
	StatusPolicyDecision  GrievanceStatus = "POLICY_DECISION"
	StatusResolved        GrievanceStatus = "RESOLVED"
	StatusRejected        GrievanceStatus = "REJECTED"
	StatusReopened        GrievanceStatus = "REOPENED"
)

// allStatuses is the closed set accepted by the state machine.
var allStatuses = map[GrievanceStatus]struct{}{
	StatusPending:         {},
	StatusInReview:        {},
	StatusPendingApproval: {},
	StatusInProgress:      {},
	StatusPolicyDecision:  {},
	StatusResolved:        {},
	StatusRejected:        {},
	StatusReopened:        {},
}

// clockBearing lists statuses for which a due date is meaningful and
// escalation applies.
var clockBearing = map[GrievanceStatus]struct{}{
	StatusInReview:        {},
	StatusPendingApproval: {},
	StatusInProgress:      {},
	StatusPolicyDecision:  {},
}

// escalationTargets maps an overdue status to the status the sweeper moves it
// to. PolicyDecision ends the chain; a missed PendingApproval deadline is
// treated as an implicit denial.
var escalationTargets = map[GrievanceStatus]GrievanceStatus{
	StatusInReview:        StatusPendingApproval,
	StatusInProgress:      StatusPolicyDecision,
	StatusPendingApproval: StatusRejected,
}

// extensionEligible lists the statuses from which an SLA extension may be
// granted: the two "awaiting an authority decision" stages.
var extensionEligible = map[GrievanceStatus]struct{}{
	StatusPendingApproval: {},
	StatusPolicyDecision:  {},
}

// Valid reports whether s is a member of the enumerated status set.
func (s GrievanceStatus) Valid() bool {
	_, ok := allStatuses[s]
	return ok
}

// ClockBearing reports whether a due date is meaningful for s.
func (s GrievanceStatus) ClockBearing() bool {
	_, ok := clockBearing[s]
	return ok
}

// Terminal reports whether s ends the normal workflow.
func (s GrievanceStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// ExtensionEligible reports whether an SLA extension may be granted in s.
func (s GrievanceStatus) ExtensionEligible() bool {
	_, ok := extensionEligible[s]
	return ok
}

// EscalationTarget returns the status an overdue grievance in s escalates to.
func (s GrievanceStatus) EscalationTarget() (GrievanceStatus, bool) {
	target, ok := escalationTargets[s]
	return target, ok
}

// ClockBearingStatuses returns the statuses for which a due date applies.
func ClockBearingStatuses() []GrievanceStatus {
	return []GrievanceStatus{StatusInReview, StatusPendingApproval, StatusInProgress, StatusPolicyDecision}
}

// EscalatableStatuses returns the statuses the sweeper scans: the
// clock-bearing ones that still have an escalation target. PolicyDecision is
// excluded since it holds overdue without moving.
func EscalatableStatuses() []GrievanceStatus {
	return []GrievanceStatus{StatusInReview, StatusPendingApproval, StatusInProgress}
}

// Grievance is a citizen-submitted complaint tracked through the review
// workflow. Version guards optimistic concurrency on save.
type Grievance struct {
	ID              string          `db:"id" json:"id"`
	CitizenID       string          `db:"citizen_id" json:"citizen_id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Location        *string         `db:"location" json:"location,omitempty"`
	Status          GrievanceStatus `db:"status" json:"status"`
	CategoryID      *string         `db:"category_id" json:"category_id,omitempty"`
	DepartmentID    *string         `db:"department_id" json:"department_id,omitempty"`
	DueDate         *time.Time      `db:"due_date" json:"due_date,omitempty"`
	ResolutionNotes *string         `db:"resolution_notes" json:"resolution_notes,omitempty"`
	SignedDocument  *string         `db:"signed_document" json:"signed_document,omitempty"`
	ResolutionImage *string         `db:"resolution_image" json:"resolution_image,omitempty"`
	Version         int             `db:"version" json:"version"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Overdue reports whether the grievance carries an expired SLA clock.
func (g *Grievance) Overdue(now time.Time) bool {
	return g.Status.ClockBearing() && g.DueDate != nil && g.DueDate.Before(now)
}

// GrievanceFilter constrains listing queries.
type GrievanceFilter struct {
	Status       []GrievanceStatus
	CitizenID    string
	DepartmentID string
	CategoryID   string
	OverdueAt    *time.Time
	Limit        int
	Offset       int
}

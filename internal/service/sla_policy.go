package service

import (
	"time"

	"github.com/civicdesk/grievance-api/internal/models"
)

// defaultSLADays holds the per-status SLA durations applied when the owning
// department carries no override. Statuses absent from the table bear no
// SLA clock.
var defaultSLADays = map[models.GrievanceStatus]int{
	models.StatusInReview:        7,
	models.StatusPendingApproval: 3,
	models.StatusInProgress:      7,
	models.StatusPolicyDecision:  5,
}

// SLAPolicy resolves SLA durations for (status, department) pairs.
type SLAPolicy struct{}

// DurationFor returns the SLA duration in days for a status, honouring the
// department override when present. ok is false for statuses without an SLA
// clock (Pending, Resolved, Rejected, Reopened).
func (SLAPolicy) DurationFor(status models.GrievanceStatus, dept *models.Department) (days int, ok bool) {
	base, ok := defaultSLADays[status]
	if !ok {
		return 0, false
	}
	if dept != nil && dept.SLADays != nil && *dept.SLADays > 0 {
		return *dept.SLADays, true
	}
	return base, true
}

// DueDate computes the due date for entering status at now, or nil when the
// status bears no SLA clock.
func (p SLAPolicy) DueDate(status models.GrievanceStatus, dept *models.Department, now time.Time) *time.Time {
	days, ok := p.DurationFor(status, dept)
	if !ok {
		return nil
	}
	due := now.AddDate(0, 0, days)
	return &due
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-api/internal/dto"
	"github.com/civicdesk/grievance-api/internal/models"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
)

type grievanceStore interface {
	Create(ctx context.Context, g *models.Grievance) error
	GetByID(ctx context.Context, id string) (*models.Grievance, error)
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error)
	Save(ctx context.Context, g *models.Grievance) error
}

type eventStore interface {
	AppendAll(ctx context.Context, events []models.GrievanceEvent) error
	ListByGrievance(ctx context.Context, grievanceID string, limit, offset int) ([]models.GrievanceEvent, error)
}

type categoryStore interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
	GetByName(ctx context.Context, name string) (*models.Category, error)
}

type departmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Department, error)
	GetByName(ctx context.Context, name string) (*models.Department, error)
}

// GrievanceService owns the grievance workflow state machine: filing with
// category routing, status transitions with SLA due dates, reassignment,
// reopening, extensions and resolution artifacts.
type GrievanceService struct {
	repo        grievanceStore
	events      eventStore
	categories  categoryStore
	departments departmentStore
	policy      SLAPolicy
	logger      *zap.Logger
	validate    *validator.Validate

	triageDepartment string
	extensionDays    int

	now func() time.Time
}

// GrievanceServiceOption configures the service.
type GrievanceServiceOption func(*GrievanceService)

// WithGrievanceClock overrides the wall clock, for tests.
func WithGrievanceClock(now func() time.Time) GrievanceServiceOption {
	return func(s *GrievanceService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewGrievanceService constructs the service with defaults.
func NewGrievanceService(
	repo grievanceStore,
	events eventStore,
	categories categoryStore,
	departments departmentStore,
	triageDepartment string,
	extensionDays int,
	logger *zap.Logger,
	opts ...GrievanceServiceOption,
) *GrievanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if triageDepartment == "" {
		triageDepartment = "Triage"
	}
	if extensionDays <= 0 {
		extensionDays = 14
	}
	svc := &GrievanceService{
		repo:             repo,
		events:           events,
		categories:       categories,
		departments:      departments,
		logger:           logger,
		validate:         validator.New(),
		triageDepartment: triageDepartment,
		extensionDays:    extensionDays,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// File registers a new grievance. Categories that resolve to a department
// route there in Pending; the catch-all category, unresolved categories and
// triage-officer filings land in the triage queue as InReview with the
// review clock started.
func (s *GrievanceService) File(ctx context.Context, req dto.CreateGrievanceRequest, citizenID string, viaTriage bool) (*dto.GrievanceResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grievance payload")
	}

	category, err := s.categories.GetByID(ctx, req.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "load category")
	}

	now := s.now()
	g := &models.Grievance{
		CitizenID:   citizenID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		CategoryID:  &category.ID,
		Status:      models.StatusPending,
	}

	deptID, resolved := category.ResolveDepartmentID()
	switch {
	case viaTriage || category.Name == models.CategoryOther || !resolved:
		triage, err := s.departments.GetByName(ctx, s.triageDepartment)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrUnresolvedDepartment, "triage department is not configured")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "load triage department")
		}
		g.DepartmentID = &triage.ID
		g.Status = models.StatusInReview
		g.DueDate = s.policy.DueDate(models.StatusInReview, triage, now)
	default:
		dept, err := s.departments.GetByID(ctx, deptID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrUnresolvedDepartment, "category routes to a missing department")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "load department")
		}
		g.DepartmentID = &dept.ID
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "store grievance")
	}

	events := []models.GrievanceEvent{{
		GrievanceID: g.ID,
		ActorID:     citizenID,
		Action:      models.EventGrievanceFiled,
		Notes:       fmt.Sprintf("filed in category %q as %s", category.Name, g.Status),
		Timestamp:   now,
	}}
	if g.DueDate != nil {
		events = append(events, models.GrievanceEvent{
			GrievanceID: g.ID,
			ActorID:     citizenID,
			Action:      models.EventDueDateUpdated,
			Notes:       fmt.Sprintf("due %s", g.DueDate.Format(time.RFC3339)),
			Timestamp:   now,
		})
	}
	if err := s.appendEvents(ctx, events); err != nil {
		return nil, err
	}

	s.logger.Info("grievance filed",
		zap.String("grievance_id", g.ID),
		zap.String("status", string(g.Status)),
		zap.Stringp("department_id", g.DepartmentID))
	return &dto.GrievanceResponse{Grievance: g, Events: events}, nil
}

// Get loads a grievance enforcing the caller's visibility scope.
func (s *GrievanceService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Grievance, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(g, claims); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns grievances visible to the caller, narrowed by the query.
// Citizens see their own filings, department admins their department's,
// triage officers the triage queue and top authority everything.
func (s *GrievanceService) List(ctx context.Context, query dto.GrievanceQuery, claims *models.JWTClaims) ([]models.Grievance, error) {
	filter := models.GrievanceFilter{
		Status:       query.Status,
		DepartmentID: query.DepartmentID,
		CategoryID:   query.CategoryID,
		Limit:        query.Limit,
		Offset:       query.Offset,
	}
	for _, status := range filter.Status {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("unknown status %q", status))
		}
	}

	switch claims.Role {
	case models.RoleCitizen:
		filter.CitizenID = claims.UserID
	case models.RoleDepartmentAdmin:
		if claims.DepartmentID == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "department admin has no department")
		}
		filter.DepartmentID = *claims.DepartmentID
	case models.RoleTriageOfficer:
		if len(filter.Status) == 0 {
			filter.Status = []models.GrievanceStatus{models.StatusInReview}
		}
	case models.RoleTopAuthority:
		// unrestricted
	default:
		return nil, appErrors.ErrForbidden
	}

	grievances, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "list grievances")
	}
	return grievances, nil
}

// Events returns the audit timeline for a grievance the caller may see.
func (s *GrievanceService) Events(ctx context.Context, id string, claims *models.JWTClaims, limit, offset int) ([]models.GrievanceEvent, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(g, claims); err != nil {
		return nil, err
	}
	events, err := s.events.ListByGrievance(ctx, g.ID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "list events")
	}
	return events, nil
}

// Transition moves a grievance to a new status, recomputing the due date
// from the SLA policy and recording the change in the audit trail. Equal
// status is a no-op. Reopening must go through Reopen so a reason is
// captured.
func (s *GrievanceService) Transition(ctx context.Context, id string, req dto.TransitionRequest, actorID string) (*dto.GrievanceResponse, error) {
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("unknown status %q", req.Status))
	}
	if req.Status == models.StatusReopened {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reopening requires the reopen operation with a reason")
	}

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Status == req.Status {
		return &dto.GrievanceResponse{Grievance: g}, nil
	}

	now := s.now()
	oldStatus := g.Status
	oldDue := g.DueDate

	dept, err := s.department(ctx, g)
	if err != nil {
		return nil, err
	}
	g.Status = req.Status
	g.DueDate = s.policy.DueDate(req.Status, dept, now)

	if err := s.save(ctx, g); err != nil {
		return nil, err
	}

	events := []models.GrievanceEvent{{
		GrievanceID: g.ID,
		ActorID:     actorID,
		Action:      models.EventStatusChanged,
		Notes:       transitionNotes(oldStatus, g.Status, req.Notes),
		Timestamp:   now,
	}}
	if due := dueDateNotes(oldDue, g.DueDate); due != "" {
		events = append(events, models.GrievanceEvent{
			GrievanceID: g.ID,
			ActorID:     actorID,
			Action:      models.EventDueDateUpdated,
			Notes:       due,
			Timestamp:   now,
		})
	}
	if err := s.appendEvents(ctx, events); err != nil {
		return nil, err
	}

	s.logger.Info("grievance transitioned",
		zap.String("grievance_id", g.ID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(g.Status)))
	return &dto.GrievanceResponse{Grievance: g, Events: events}, nil
}

// ReassignCategory re-routes a grievance to a new category's department and
// returns it to Pending. Unlike filing, a category that cannot resolve a
// department fails the reassignment outright.
func (s *GrievanceService) ReassignCategory(ctx context.Context, id string, req dto.ReassignCategoryRequest, actorID string) (*dto.GrievanceResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	category, err := s.categories.GetByID(ctx, req.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "load category")
	}
	deptID, ok := category.ResolveDepartmentID()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnresolvedDepartment,
			fmt.Sprintf("category %q does not resolve to a department", category.Name))
	}

	now := s.now()
	oldStatus := g.Status
	oldDue := g.DueDate
	g.CategoryID = &category.ID
	g.DepartmentID = &deptID
	g.Status = models.StatusPending
	g.DueDate = nil

	if err := s.save(ctx, g); err != nil {
		return nil, err
	}

	events := []models.GrievanceEvent{{
		GrievanceID: g.ID,
		ActorID:     actorID,
		Action:      models.EventCategoryReassigned,
		Notes:       fmt.Sprintf("reassigned to category %q (department %s)", category.Name, deptID),
		Timestamp:   now,
	}}
	if oldStatus != g.Status {
		events = append(events, models.GrievanceEvent{
			GrievanceID: g.ID,
			ActorID:     actorID,
			Action:      models.EventStatusChanged,
			Notes:       transitionNotes(oldStatus, g.Status, ""),
			Timestamp:   now,
		})
	}
	if due := dueDateNotes(oldDue, g.DueDate); due != "" {
		events = append(events, models.GrievanceEvent{
			GrievanceID: g.ID,
			ActorID:     actorID,
			Action:      models.EventDueDateUpdated,
			Notes:       due,
			Timestamp:   now,
		})
	}
	if err := s.appendEvents(ctx, events); err != nil {
		return nil, err
	}

	s.logger.Info("grievance reassigned",
		zap.String("grievance_id", g.ID),
		zap.String("category_id", category.ID),
		zap.String("department_id", deptID))
	return &dto.GrievanceResponse{Grievance: g, Events: events}, nil
}

// Reopen moves a resolved or rejected grievance to Reopened with a mandatory
// reason. The clock stays off until staff manually route it back into the
// workflow.
func (s *GrievanceService) Reopen(ctx context.Context, id string, req dto.ReopenRequest, actorID string) (*dto.GrievanceResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "reason is required to reopen")
	}

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatusForReopen,
			fmt.Sprintf("cannot reopen a grievance in %s", g.Status))
	}

	now := s.now()
	oldStatus := g.Status
	oldDue := g.DueDate
	g.Status = models.StatusReopened
	g.DueDate = nil

	if err := s.save(ctx, g); err != nil {
		return nil, err
	}

	events := []models.GrievanceEvent{
		{
			GrievanceID: g.ID,
			ActorID:     actorID,
			Action:      models.EventReopened,
			Notes:       req.Reason,
			Timestamp:   now,
		},
		{
			GrievanceID: g.ID,
			ActorID:     actorID,
			Action:      models.EventStatusChanged,
			Notes:       transitionNotes(oldStatus, g.Status, ""),
			Timestamp:   now,
		},
	}
	if due := dueDateNotes(oldDue, g.DueDate); due != "" {
		events = append(events, models.GrievanceEvent{
			GrievanceID: g.ID,
			ActorID:     actorID,
			Action:      models.EventDueDateUpdated,
			Notes:       due,
			Timestamp:   now,
		})
	}
	if err := s.appendEvents(ctx, events); err != nil {
		return nil, err
	}

	s.logger.Info("grievance reopened", zap.String("grievance_id", g.ID), zap.String("actor_id", actorID))
	return &dto.GrievanceResponse{Grievance: g, Events: events}, nil
}

// GrantExtension pushes the due date out by the requested number of days
// (default when zero). Only grievances awaiting an authority decision are
// eligible.
func (s *GrievanceService) GrantExtension(ctx context.Context, id string, req dto.ExtensionRequest, actorID string) (*dto.GrievanceResponse, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.Status.ExtensionEligible() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatusForExtension,
			fmt.Sprintf("cannot extend a grievance in %s", g.Status))
	}

	days := req.Days
	if days <= 0 {
		days = s.extensionDays
	}
	now := s.now()
	base := now
	if g.DueDate != nil {
		base = *g.DueDate
	}
	due := base.AddDate(0, 0, days)
	g.DueDate = &due

	if err := s.save(ctx, g); err != nil {
		return nil, err
	}

	events := []models.GrievanceEvent{{
		GrievanceID: g.ID,
		ActorID:     actorID,
		Action:      models.EventSLAExtensionGranted,
		Notes:       fmt.Sprintf("%d-day extension, due %s", days, due.Format(time.RFC3339)),
		Timestamp:   now,
	}}
	if err := s.appendEvents(ctx, events); err != nil {
		return nil, err
	}

	s.logger.Info("extension granted",
		zap.String("grievance_id", g.ID),
		zap.Int("days", days),
		zap.Time("due", due))
	return &dto.GrievanceResponse{Grievance: g, Events: events}, nil
}

// UpdateResolution applies the provided resolution artifacts. Each changed
// field gets its own audit event; fields already holding the submitted value
// are left alone.
func (s *GrievanceService) UpdateResolution(ctx context.Context, id string, req dto.UpdateResolutionRequest, actorID string) (*dto.GrievanceResponse, error) {
	if req.ResolutionNotes == nil && req.SignedDocument == nil && req.ResolutionImage == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	events := make([]models.GrievanceEvent, 0, 3)
	if req.ResolutionNotes != nil && !sameValue(g.ResolutionNotes, req.ResolutionNotes) {
		g.ResolutionNotes = req.ResolutionNotes
		events = append(events, models.GrievanceEvent{
			GrievanceID: g.ID, ActorID: actorID,
			Action: models.EventResolutionNotesUpdated, Timestamp: now,
		})
	}
	if req.SignedDocument != nil && !sameValue(g.SignedDocument, req.SignedDocument) {
		g.SignedDocument = req.SignedDocument
		events = append(events, models.GrievanceEvent{
			GrievanceID: g.ID, ActorID: actorID,
			Action: models.EventSignedDocumentUploaded, Notes: *req.SignedDocument, Timestamp: now,
		})
	}
	if req.ResolutionImage != nil && !sameValue(g.ResolutionImage, req.ResolutionImage) {
		g.ResolutionImage = req.ResolutionImage
		events = append(events, models.GrievanceEvent{
			GrievanceID: g.ID, ActorID: actorID,
			Action: models.EventResolutionImageUploaded, Notes: *req.ResolutionImage, Timestamp: now,
		})
	}
	if len(events) == 0 {
		return &dto.GrievanceResponse{Grievance: g, Events: events}, nil
	}

	if err := s.save(ctx, g); err != nil {
		return nil, err
	}
	if err := s.appendEvents(ctx, events); err != nil {
		return nil, err
	}
	return &dto.GrievanceResponse{Grievance: g, Events: events}, nil
}

func sameValue(current, next *string) bool {
	return current != nil && next != nil && *current == *next
}

func (s *GrievanceService) load(ctx context.Context, id string) (*models.Grievance, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "load grievance")
	}
	return g, nil
}

func (s *GrievanceService) department(ctx context.Context, g *models.Grievance) (*models.Department, error) {
	if g.DepartmentID == nil {
		return nil, nil
	}
	dept, err := s.departments.GetByID(ctx, *g.DepartmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "load department")
	}
	return dept, nil
}

func (s *GrievanceService) save(ctx context.Context, g *models.Grievance) error {
	if err := s.repo.Save(ctx, g); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrConcurrentModification
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "save grievance")
	}
	return nil
}

func (s *GrievanceService) appendEvents(ctx context.Context, events []models.GrievanceEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := s.events.AppendAll(ctx, events); err != nil {
		s.logger.Error("failed to append grievance events",
			zap.String("grievance_id", events[0].GrievanceID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "record audit trail")
	}
	return nil
}

func (s *GrievanceService) authorize(g *models.Grievance, claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleTopAuthority, models.RoleTriageOfficer:
		return nil
	case models.RoleDepartmentAdmin:
		if claims.DepartmentID != nil && g.DepartmentID != nil && *claims.DepartmentID == *g.DepartmentID {
			return nil
		}
	case models.RoleCitizen:
		if g.CitizenID == claims.UserID {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

func transitionNotes(from, to models.GrievanceStatus, notes string) string {
	msg := fmt.Sprintf("%s -> %s", from, to)
	if notes != "" {
		msg += ": " + notes
	}
	return msg
}

func dueDateNotes(old, current *time.Time) string {
	switch {
	case old == nil && current == nil:
		return ""
	case old != nil && current != nil && old.Equal(*current):
		return ""
	case current == nil:
		return "due date cleared"
	default:
		return "due " + current.Format(time.RFC3339)
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/grievance-api/internal/dto"
	"github.com/civicdesk/grievance-api/internal/models"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
)

type grievanceRepoStub struct {
	grievances map[string]*models.Grievance
	saveErr    map[string]error
}

func newGrievanceRepoStub() *grievanceRepoStub {
	return &grievanceRepoStub{
		grievances: make(map[string]*models.Grievance),
		saveErr:    make(map[string]error),
	}
}

func (r *grievanceRepoStub) Create(ctx context.Context, g *models.Grievance) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.Version = 1
	stored := *g
	r.grievances[g.ID] = &stored
	return nil
}

func (r *grievanceRepoStub) GetByID(ctx context.Context, id string) (*models.Grievance, error) {
	if g, ok := r.grievances[id]; ok {
		out := *g
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (r *grievanceRepoStub) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error) {
	result := make([]models.Grievance, 0, len(r.grievances))
	for _, g := range r.grievances {
		if len(filter.Status) > 0 {
			matched := false
			for _, status := range filter.Status {
				if g.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if filter.CitizenID != "" && g.CitizenID != filter.CitizenID {
			continue
		}
		if filter.DepartmentID != "" && (g.DepartmentID == nil || *g.DepartmentID != filter.DepartmentID) {
			continue
		}
		if filter.OverdueAt != nil && (g.DueDate == nil || !g.DueDate.Before(*filter.OverdueAt)) {
			continue
		}
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *grievanceRepoStub) Save(ctx context.Context, g *models.Grievance) error {
	if err, ok := r.saveErr[g.ID]; ok {
		return err
	}
	stored, ok := r.grievances[g.ID]
	if !ok || stored.Version != g.Version {
		return sql.ErrNoRows
	}
	g.Version++
	updated := *g
	r.grievances[g.ID] = &updated
	return nil
}

type eventStoreStub struct {
	events    []models.GrievanceEvent
	appendErr error
}

func (s *eventStoreStub) AppendAll(ctx context.Context, events []models.GrievanceEvent) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *eventStoreStub) ListByGrievance(ctx context.Context, grievanceID string, limit, offset int) ([]models.GrievanceEvent, error) {
	result := make([]models.GrievanceEvent, 0, len(s.events))
	for _, e := range s.events {
		if e.GrievanceID == grievanceID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *eventStoreStub) actions(grievanceID string) []string {
	actions := make([]string, 0, len(s.events))
	for _, e := range s.events {
		if e.GrievanceID == grievanceID {
			actions = append(actions, e.Action)
		}
	}
	return actions
}

type categoryStoreStub struct {
	byID map[string]*models.Category
}

func (s *categoryStoreStub) GetByID(ctx context.Context, id string) (*models.Category, error) {
	if c, ok := s.byID[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *categoryStoreStub) GetByName(ctx context.Context, name string) (*models.Category, error) {
	for _, c := range s.byID {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

type departmentStoreStub struct {
	byID map[string]*models.Department
}

func (s *departmentStoreStub) GetByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := s.byID[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (s *departmentStoreStub) GetByName(ctx context.Context, name string) (*models.Department, error) {
	for _, d := range s.byID {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func strPtr(s string) *string { return &s }

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type grievanceFixture struct {
	repo        *grievanceRepoStub
	events      *eventStoreStub
	categories  *categoryStoreStub
	departments *departmentStoreStub
	svc         *GrievanceService
}

func newGrievanceFixture() *grievanceFixture {
	repo := newGrievanceRepoStub()
	events := &eventStoreStub{}
	categories := &categoryStoreStub{byID: map[string]*models.Category{
		"cat-roads": {ID: "cat-roads", Name: "Potholes", DepartmentID: strPtr("dept-roads")},
		"cat-sub":   {ID: "cat-sub", Name: "Street Lights", SubDepartmentID: strPtr("sub-1"), SubParentDepartmentID: strPtr("dept-power")},
		"cat-other": {ID: "cat-other", Name: models.CategoryOther},
		"cat-stray": {ID: "cat-stray", Name: "Unmapped"},
	}}
	departments := &departmentStoreStub{byID: map[string]*models.Department{
		"dept-roads":  {ID: "dept-roads", Name: "Roads"},
		"dept-power":  {ID: "dept-power", Name: "Power"},
		"dept-triage": {ID: "dept-triage", Name: "Triage"},
	}}
	svc := NewGrievanceService(repo, events, categories, departments, "Triage", 14, nil,
		WithGrievanceClock(func() time.Time { return testNow }))
	return &grievanceFixture{repo: repo, events: events, categories: categories, departments: departments, svc: svc}
}

func (f *grievanceFixture) seed(g models.Grievance) *models.Grievance {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Version == 0 {
		g.Version = 1
	}
	stored := g
	f.repo.grievances[g.ID] = &stored
	return &stored
}

func TestGrievanceServiceFileRoutesToDepartment(t *testing.T) {
	f := newGrievanceFixture()

	result, err := f.svc.File(context.Background(), dto.CreateGrievanceRequest{
		Title:       "Pothole on 5th Avenue",
		Description: "Deep pothole near the school crossing",
		CategoryID:  "cat-roads",
	}, "citizen-1", false)
	require.NoError(t, err)

	g := result.Grievance
	require.Equal(t, models.StatusPending, g.Status)
	require.Equal(t, "dept-roads", *g.DepartmentID)
	require.Nil(t, g.DueDate)
	require.Equal(t, []string{models.EventGrievanceFiled}, f.events.actions(g.ID))
}

func TestGrievanceServiceFileResolvesViaSubDepartment(t *testing.T) {
	f := newGrievanceFixture()

	result, err := f.svc.File(context.Background(), dto.CreateGrievanceRequest{
		Title:       "Street light out",
		Description: "Lamp post dark for a week",
		CategoryID:  "cat-sub",
	}, "citizen-1", false)
	require.NoError(t, err)
	require.Equal(t, "dept-power", *result.Grievance.DepartmentID)
	require.Equal(t, models.StatusPending, result.Grievance.Status)
}

func TestGrievanceServiceFileOtherRoutesToTriage(t *testing.T) {
	f := newGrievanceFixture()

	result, err := f.svc.File(context.Background(), dto.CreateGrievanceRequest{
		Title:       "Something odd",
		Description: "Does not fit any category",
		CategoryID:  "cat-other",
	}, "citizen-1", false)
	require.NoError(t, err)

	g := result.Grievance
	require.Equal(t, models.StatusInReview, g.Status)
	require.Equal(t, "dept-triage", *g.DepartmentID)
	require.NotNil(t, g.DueDate)
	require.Equal(t, testNow.AddDate(0, 0, 7), *g.DueDate)
	require.Equal(t, []string{models.EventGrievanceFiled, models.EventDueDateUpdated}, f.events.actions(g.ID))
}

func TestGrievanceServiceFileUnresolvedCategoryRoutesToTriage(t *testing.T) {
	f := newGrievanceFixture()

	result, err := f.svc.File(context.Background(), dto.CreateGrievanceRequest{
		Title:       "Lost and found",
		Description: "Category has no department mapping",
		CategoryID:  "cat-stray",
	}, "citizen-1", false)
	require.NoError(t, err)
	require.Equal(t, models.StatusInReview, result.Grievance.Status)
	require.Equal(t, "dept-triage", *result.Grievance.DepartmentID)
}

func TestGrievanceServiceFileFailsWithoutTriageDepartment(t *testing.T) {
	f := newGrievanceFixture()
	delete(f.departments.byID, "dept-triage")

	_, err := f.svc.File(context.Background(), dto.CreateGrievanceRequest{
		Title:       "Something odd",
		Description: "No triage configured",
		CategoryID:  "cat-other",
	}, "citizen-1", false)
	require.True(t, appErrors.Is(err, appErrors.ErrUnresolvedDepartment))
}

func TestGrievanceServiceTransitionRecomputesDueDate(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{
		CitizenID:    "citizen-1",
		Status:       models.StatusPending,
		DepartmentID: strPtr("dept-roads"),
	})

	result, err := f.svc.Transition(context.Background(), g.ID, dto.TransitionRequest{
		Status: models.StatusInProgress,
		Notes:  "crew assigned",
	}, "admin-1")
	require.NoError(t, err)

	updated := result.Grievance
	require.Equal(t, models.StatusInProgress, updated.Status)
	require.NotNil(t, updated.DueDate)
	require.Equal(t, testNow.AddDate(0, 0, 7), *updated.DueDate)
	require.Equal(t, []string{models.EventStatusChanged, models.EventDueDateUpdated}, f.events.actions(g.ID))
}

func TestGrievanceServiceTransitionHonoursDepartmentOverride(t *testing.T) {
	f := newGrievanceFixture()
	days := 10
	f.departments.byID["dept-roads"].SLADays = &days
	g := f.seed(models.Grievance{
		CitizenID:    "citizen-1",
		Status:       models.StatusPending,
		DepartmentID: strPtr("dept-roads"),
	})

	result, err := f.svc.Transition(context.Background(), g.ID, dto.TransitionRequest{Status: models.StatusInProgress}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, testNow.AddDate(0, 0, 10), *result.Grievance.DueDate)
}

func TestGrievanceServiceTransitionToTerminalClearsDueDate(t *testing.T) {
	f := newGrievanceFixture()
	due := testNow.AddDate(0, 0, 3)
	g := f.seed(models.Grievance{
		CitizenID:    "citizen-1",
		Status:       models.StatusInProgress,
		DepartmentID: strPtr("dept-roads"),
		DueDate:      &due,
	})

	result, err := f.svc.Transition(context.Background(), g.ID, dto.TransitionRequest{Status: models.StatusResolved}, "admin-1")
	require.NoError(t, err)
	require.Nil(t, result.Grievance.DueDate)
}

func TestGrievanceServiceTransitionSameStatusIsNoOp(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusPending})

	result, err := f.svc.Transition(context.Background(), g.ID, dto.TransitionRequest{Status: models.StatusPending}, "admin-1")
	require.NoError(t, err)
	require.Empty(t, f.events.events)
	require.Equal(t, models.StatusPending, result.Grievance.Status)
}

func TestGrievanceServiceTransitionRejectsUnknownStatus(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusPending})

	_, err := f.svc.Transition(context.Background(), g.ID, dto.TransitionRequest{Status: "ON_FIRE"}, "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidStatus))
}

func TestGrievanceServiceTransitionRejectsReopenedTarget(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusResolved})

	_, err := f.svc.Transition(context.Background(), g.ID, dto.TransitionRequest{Status: models.StatusReopened}, "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGrievanceServiceTransitionConcurrentConflict(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusPending, Version: 1})
	f.repo.saveErr[g.ID] = sql.ErrNoRows

	_, err := f.svc.Transition(context.Background(), g.ID, dto.TransitionRequest{Status: models.StatusInReview}, "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrConcurrentModification))
	require.Empty(t, f.events.events)
}

func TestGrievanceServiceReassignResetsWorkflow(t *testing.T) {
	f := newGrievanceFixture()
	due := testNow.AddDate(0, 0, 2)
	g := f.seed(models.Grievance{
		CitizenID:    "citizen-1",
		Status:       models.StatusInReview,
		CategoryID:   strPtr("cat-other"),
		DepartmentID: strPtr("dept-triage"),
		DueDate:      &due,
	})

	result, err := f.svc.ReassignCategory(context.Background(), g.ID, dto.ReassignCategoryRequest{CategoryID: "cat-roads"}, "triage-1")
	require.NoError(t, err)

	updated := result.Grievance
	require.Equal(t, models.StatusPending, updated.Status)
	require.Equal(t, "dept-roads", *updated.DepartmentID)
	require.Nil(t, updated.DueDate)
	require.Contains(t, f.events.actions(g.ID), models.EventCategoryReassigned)
	require.Contains(t, f.events.actions(g.ID), models.EventStatusChanged)
}

func TestGrievanceServiceReassignUnresolvedFails(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusInReview})

	_, err := f.svc.ReassignCategory(context.Background(), g.ID, dto.ReassignCategoryRequest{CategoryID: "cat-stray"}, "triage-1")
	require.True(t, appErrors.Is(err, appErrors.ErrUnresolvedDepartment))
	require.Empty(t, f.events.events)
}

func TestGrievanceServiceReopenRequiresTerminalStatus(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusInProgress})

	_, err := f.svc.Reopen(context.Background(), g.ID, dto.ReopenRequest{Reason: "not fixed"}, "citizen-1")
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidStatusForReopen))
}

func TestGrievanceServiceReopenFromRejected(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusRejected})

	result, err := f.svc.Reopen(context.Background(), g.ID, dto.ReopenRequest{Reason: "issue persists"}, "citizen-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusReopened, result.Grievance.Status)
	require.Nil(t, result.Grievance.DueDate)
	require.Contains(t, f.events.actions(g.ID), models.EventReopened)
}

func TestGrievanceServiceExtensionDefaultsTo14Days(t *testing.T) {
	f := newGrievanceFixture()
	due := testNow.AddDate(0, 0, 1)
	g := f.seed(models.Grievance{
		CitizenID: "citizen-1",
		Status:    models.StatusPolicyDecision,
		DueDate:   &due,
	})

	result, err := f.svc.GrantExtension(context.Background(), g.ID, dto.ExtensionRequest{}, "authority-1")
	require.NoError(t, err)
	require.Equal(t, due.AddDate(0, 0, 14), *result.Grievance.DueDate)
	require.Equal(t, []string{models.EventSLAExtensionGranted}, f.events.actions(g.ID))
}

func TestGrievanceServiceExtensionRejectedOutsideDecisionStages(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusInProgress})

	_, err := f.svc.GrantExtension(context.Background(), g.ID, dto.ExtensionRequest{Days: 5}, "authority-1")
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidStatusForExtension))
}

func TestGrievanceServiceListScopesByRole(t *testing.T) {
	f := newGrievanceFixture()
	f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusPending})
	f.seed(models.Grievance{CitizenID: "citizen-2", Status: models.StatusPending})
	f.seed(models.Grievance{CitizenID: "citizen-2", Status: models.StatusInProgress, DepartmentID: strPtr("dept-roads")})

	citizenList, err := f.svc.List(context.Background(), dto.GrievanceQuery{}, &models.JWTClaims{
		UserID: "citizen-1", Role: models.RoleCitizen,
	})
	require.NoError(t, err)
	require.Len(t, citizenList, 1)

	deptList, err := f.svc.List(context.Background(), dto.GrievanceQuery{}, &models.JWTClaims{
		UserID: "admin-1", Role: models.RoleDepartmentAdmin, DepartmentID: strPtr("dept-roads"),
	})
	require.NoError(t, err)
	require.Len(t, deptList, 1)

	allList, err := f.svc.List(context.Background(), dto.GrievanceQuery{}, &models.JWTClaims{
		UserID: "authority-1", Role: models.RoleTopAuthority,
	})
	require.NoError(t, err)
	require.Len(t, allList, 3)
}

func TestGrievanceServiceGetEnforcesOwnership(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusPending})

	_, err := f.svc.Get(context.Background(), g.ID, &models.JWTClaims{UserID: "citizen-2", Role: models.RoleCitizen})
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	got, err := f.svc.Get(context.Background(), g.ID, &models.JWTClaims{UserID: "citizen-1", Role: models.RoleCitizen})
	require.NoError(t, err)
	require.Equal(t, g.ID, got.ID)
}

func TestGrievanceServiceUpdateResolutionEmitsPerFieldEvents(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusInProgress})

	result, err := f.svc.UpdateResolution(context.Background(), g.ID, dto.UpdateResolutionRequest{
		ResolutionNotes: strPtr("patched road"),
		SignedDocument:  strPtr("docs/sign-off.pdf"),
	}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, "patched road", *result.Grievance.ResolutionNotes)
	require.Equal(t, []string{models.EventResolutionNotesUpdated, models.EventSignedDocumentUploaded}, f.events.actions(g.ID))
}

func TestGrievanceServiceUpdateResolutionSkipsUnchangedFields(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seed(models.Grievance{
		CitizenID:       "citizen-1",
		Status:          models.StatusInProgress,
		ResolutionNotes: strPtr("patched road"),
	})

	// Resubmitting the stored notes records nothing; the new image does.
	result, err := f.svc.UpdateResolution(context.Background(), g.ID, dto.UpdateResolutionRequest{
		ResolutionNotes: strPtr("patched road"),
		ResolutionImage: strPtr("img/after.jpg"),
	}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, []string{models.EventResolutionImageUploaded}, f.events.actions(g.ID))

	// A fully redundant submission changes nothing and skips the save.
	version := f.repo.grievances[g.ID].Version
	result, err = f.svc.UpdateResolution(context.Background(), g.ID, dto.UpdateResolutionRequest{
		ResolutionNotes: strPtr("patched road"),
	}, "admin-1")
	require.NoError(t, err)
	require.Empty(t, result.Events)
	require.Equal(t, version, f.repo.grievances[g.ID].Version)
	require.Equal(t, []string{models.EventResolutionImageUploaded}, f.events.actions(g.ID))
}

func TestGrievanceServiceEventAppendFailureSurfaces(t *testing.T) {
	f := newGrievanceFixture()
	f.events.appendErr = errors.New("disk full")
	g := f.seed(models.Grievance{CitizenID: "citizen-1", Status: models.StatusPending})

	_, err := f.svc.Transition(context.Background(), g.ID, dto.TransitionRequest{Status: models.StatusInReview}, "admin-1")
	require.True(t, appErrors.Is(err, appErrors.ErrPersistence))
}

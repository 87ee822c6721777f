package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civicdesk/grievance-api/internal/models"
	"github.com/civicdesk/grievance-api/pkg/storage"
)

type exportSourceStub struct {
	grievances []models.Grievance
	byStatus   []models.StatusCount
	overdue    int
	top        []models.DepartmentCount
	lastFilter models.GrievanceFilter
}

func (s *exportSourceStub) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error) {
	s.lastFilter = filter
	if filter.Offset >= len(s.grievances) {
		return nil, nil
	}
	return s.grievances[filter.Offset:], nil
}

func (s *exportSourceStub) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	return s.byStatus, nil
}

func (s *exportSourceStub) CountOverdue(ctx context.Context, statuses []models.GrievanceStatus, now time.Time) (int, error) {
	return s.overdue, nil
}

func (s *exportSourceStub) TopDepartments(ctx context.Context, limit int) ([]models.DepartmentCount, error) {
	return s.top, nil
}

type memoryStorageStub struct {
	files map[string][]byte
}

func (m *memoryStorageStub) Save(filename string, data []byte) (string, error) {
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[filename] = data
	return filename, nil
}

func (m *memoryStorageStub) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (m *memoryStorageStub) Delete(filename string) error {
	delete(m.files, filename)
	return nil
}

func (m *memoryStorageStub) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

func newExportFixture(source *exportSourceStub) (*ExportService, *memoryStorageStub) {
	store := &memoryStorageStub{}
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	svc := NewExportService(source, store, signer, ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil)
	return svc, store
}

func TestExportServiceGeneratesRegisterCSV(t *testing.T) {
	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	dept := "dept-roads"
	source := &exportSourceStub{grievances: []models.Grievance{
		{ID: "g-1", Title: "Pothole", Status: models.StatusInProgress, DepartmentID: &dept, DueDate: &due, CreatedAt: due.AddDate(0, 0, -7)},
		{ID: "g-2", Title: "Streetlight", Status: models.StatusPending, CreatedAt: due.AddDate(0, 0, -3)},
	}}
	svc, store := newExportFixture(source)

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeRegister,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/download/"))
	require.Equal(t, models.ReportFormatCSV, result.Format)

	payload := string(store.files[result.RelativePath])
	require.Contains(t, payload, "id,title,status,department,due_date,created_at")
	require.Contains(t, payload, "g-1,Pothole,IN_PROGRESS,dept-roads")
	require.Contains(t, payload, "g-2,Streetlight,PENDING,,")

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceScopesRegisterByDepartment(t *testing.T) {
	dept := "dept-water"
	source := &exportSourceStub{}
	svc, _ := newExportFixture(source)

	job := &models.ReportJob{
		ID:   "job-1",
		Type: models.ReportTypeRegister,
		Params: models.ReportJobParams{
			Format:       models.ReportFormatCSV,
			DepartmentID: &dept,
			Status:       []models.GrievanceStatus{models.StatusInProgress},
		},
	}
	_, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "dept-water", source.lastFilter.DepartmentID)
	require.Equal(t, []models.GrievanceStatus{models.StatusInProgress}, source.lastFilter.Status)
}

func TestExportServiceGeneratesSLASummary(t *testing.T) {
	source := &exportSourceStub{
		byStatus: []models.StatusCount{{Status: models.StatusInReview, Count: 6}},
		overdue:  2,
		top:      []models.DepartmentCount{{DepartmentName: "Roads", Count: 9}},
	}
	svc, store := newExportFixture(source)

	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeSLASummary,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload := string(store.files[result.RelativePath])
	require.Contains(t, payload, "status:IN_REVIEW,6")
	require.Contains(t, payload, "overdue,2")
	require.Contains(t, payload, "department:Roads,9")
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture(&exportSourceStub{})

	job := &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeRegister,
		Params: models.ReportJobParams{Format: "xlsx"},
	}
	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
}

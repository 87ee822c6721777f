package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-api/internal/models"
	"github.com/civicdesk/grievance-api/pkg/export"
	"github.com/civicdesk/grievance-api/pkg/storage"
)

type exportGrievanceSource interface {
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error)
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountOverdue(ctx context.Context, statuses []models.GrievanceStatus, now time.Time) (int, error)
	TopDepartments(ctx context.Context, limit int) ([]models.DepartmentCount, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets from the grievance register and
// persists the rendered files behind signed download tokens.
type ExportService struct {
	grievances exportGrievanceSource
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(grievances exportGrievanceSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		grievances: grievances,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.DepartmentID != nil && *job.Params.DepartmentID != "" {
		scope = sanitizeFilename(*job.Params.DepartmentID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeRegister:
		return s.buildRegisterDataset(ctx, job.Params)
	case models.ReportTypeSLASummary:
		return s.buildSLASummaryDataset(ctx)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildRegisterDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.GrievanceFilter{
		Status: params.Status,
		Limit:  500,
	}
	if params.DepartmentID != nil {
		filter.DepartmentID = *params.DepartmentID
	}

	rows := make([]map[string]string, 0, 64)
	for {
		batch, err := s.grievances.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("load register page: %w", err)
		}
		for _, g := range batch {
			rows = append(rows, map[string]string{
				"id":         g.ID,
				"title":      g.Title,
				"status":     string(g.Status),
				"department": deref(g.DepartmentID),
				"due_date":   formatDue(g.DueDate),
				"created_at": g.CreatedAt.Format(time.RFC3339),
			})
		}
		if len(batch) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}

	dataset := export.Dataset{
		Headers: []string{"id", "title", "status", "department", "due_date", "created_at"},
		Rows:    rows,
	}
	return dataset, "Grievance Register", nil
}

func (s *ExportService) buildSLASummaryDataset(ctx context.Context) (export.Dataset, string, error) {
	now := time.Now().UTC()
	byStatus, err := s.grievances.CountByStatus(ctx)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("count by status: %w", err)
	}
	overdue, err := s.grievances.CountOverdue(ctx, models.ClockBearingStatuses(), now)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("count overdue: %w", err)
	}
	top, err := s.grievances.TopDepartments(ctx, 10)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("top departments: %w", err)
	}

	rows := make([]map[string]string, 0, len(byStatus)+len(top)+1)
	for _, c := range byStatus {
		rows = append(rows, map[string]string{
			"metric": "status:" + string(c.Status),
			"value":  fmt.Sprintf("%d", c.Count),
		})
	}
	rows = append(rows, map[string]string{
		"metric": "overdue",
		"value":  fmt.Sprintf("%d", overdue),
	})
	for _, d := range top {
		rows = append(rows, map[string]string{
			"metric": "department:" + d.DepartmentName,
			"value":  fmt.Sprintf("%d", d.Count),
		})
	}

	dataset := export.Dataset{
		Headers: []string{"metric", "value"},
		Rows:    rows,
	}
	return dataset, "SLA Summary", nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

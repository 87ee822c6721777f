package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-api/internal/dto"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
)

// ClassifierService proxies grievance descriptions to the external category
// suggestion service. The classifier is advisory: callers still pick the
// category themselves, and any failure degrades to an empty suggestion list
// rather than blocking the filing flow.
type ClassifierService struct {
	baseURL string
	topN    int
	client  *http.Client
	logger  *zap.Logger
}

// NewClassifierService constructs the client. A nil httpClient gets a
// default with the supplied timeout.
func NewClassifierService(baseURL string, topN int, timeout time.Duration, logger *zap.Logger) *ClassifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topN <= 0 {
		topN = 3
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClassifierService{
		baseURL: strings.TrimRight(baseURL, "/"),
		topN:    topN,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Enabled reports whether a classifier endpoint is configured.
func (s *ClassifierService) Enabled() bool {
	return s.baseURL != ""
}

// Suggest returns up to topN category label suggestions for a description.
func (s *ClassifierService) Suggest(ctx context.Context, req dto.SuggestRequest) (*dto.SuggestResponse, error) {
	if strings.TrimSpace(req.Description) == "" {
		return &dto.SuggestResponse{Suggestions: []string{}}, nil
	}
	if !s.Enabled() {
		return &dto.SuggestResponse{Suggestions: []string{}}, nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"text":  req.Description,
		"top_n": s.topN,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode classifier request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/classify", bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build classifier request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.Warn("classifier unreachable", zap.Error(err))
		return &dto.SuggestResponse{Suggestions: []string{}}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn("classifier returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return &dto.SuggestResponse{Suggestions: []string{}}, nil
	}

	var parsed struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		s.logger.Warn("classifier response malformed", zap.Error(err))
		return &dto.SuggestResponse{Suggestions: []string{}}, nil
	}
	if len(parsed.Suggestions) > s.topN {
		parsed.Suggestions = parsed.Suggestions[:s.topN]
	}
	if parsed.Suggestions == nil {
		parsed.Suggestions = []string{}
	}
	return &dto.SuggestResponse{Suggestions: parsed.Suggestions}, nil
}

// Ping probes the classifier health endpoint for readiness checks.
func (s *ClassifierService) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier health returned %d", resp.StatusCode)
	}
	return nil
}

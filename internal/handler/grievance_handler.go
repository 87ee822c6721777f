package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/grievance-api/internal/dto"
	"github.com/civicdesk/grievance-api/internal/models"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
	"github.com/civicdesk/grievance-api/pkg/response"
)

type grievanceService interface {
	File(ctx context.Context, req dto.CreateGrievanceRequest, citizenID string, viaTriage bool) (*dto.GrievanceResponse, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Grievance, error)
	List(ctx context.Context, query dto.GrievanceQuery, claims *models.JWTClaims) ([]models.Grievance, error)
	Events(ctx context.Context, id string, claims *models.JWTClaims, limit, offset int) ([]models.GrievanceEvent, error)
	Transition(ctx context.Context, id string, req dto.TransitionRequest, actorID string) (*dto.GrievanceResponse, error)
	ReassignCategory(ctx context.Context, id string, req dto.ReassignCategoryRequest, actorID string) (*dto.GrievanceResponse, error)
	Reopen(ctx context.Context, id string, req dto.ReopenRequest, actorID string) (*dto.GrievanceResponse, error)
	GrantExtension(ctx context.Context, id string, req dto.ExtensionRequest, actorID string) (*dto.GrievanceResponse, error)
	UpdateResolution(ctx context.Context, id string, req dto.UpdateResolutionRequest, actorID string) (*dto.GrievanceResponse, error)
}

// GrievanceHandler exposes REST endpoints for the grievance workflow.
type GrievanceHandler struct {
	service grievanceService
}

// NewGrievanceHandler constructs the handler.
func NewGrievanceHandler(service grievanceService) *GrievanceHandler {
	return &GrievanceHandler{service: service}
}

// Create godoc
// @Summary File a grievance
// @Tags Grievances
// @Accept json
// @Produce json
// @Param payload body dto.CreateGrievanceRequest true "Grievance payload"
// @Success 201 {object} response.Envelope
// @Router /grievances [post]
func (h *GrievanceHandler) Create(c *gin.Context) {
	var req dto.CreateGrievanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grievance payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	viaTriage := claims.Role == models.RoleTriageOfficer
	result, err := h.service.File(c.Request.Context(), req, claims.UserID, viaTriage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// List godoc
// @Summary List grievances visible to the caller
// @Tags Grievances
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param department_id query string false "Department filter"
// @Param category_id query string false "Category filter"
// @Success 200 {object} response.Envelope
// @Router /grievances [get]
func (h *GrievanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.GrievanceQuery{
		DepartmentID: strings.TrimSpace(c.Query("department_id")),
		CategoryID:   strings.TrimSpace(c.Query("category_id")),
		Limit:        intQuery(c, "limit", 50),
		Offset:       intQuery(c, "offset", 0),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.GrievanceStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.GrievanceStatus(part))
		}
		query.Status = statuses
	}
	grievances, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grievances, nil)
}

// Get godoc
// @Summary Get grievance detail
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id} [get]
func (h *GrievanceHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	g, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, g, nil)
}

// Events godoc
// @Summary Get the grievance audit timeline
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/events [get]
func (h *GrievanceHandler) Events(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	events, err := h.service.Events(c.Request.Context(), c.Param("id"), claims,
		intQuery(c, "limit", 100), intQuery(c, "offset", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Transition godoc
// @Summary Move a grievance to a new status
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/transition [post]
func (h *GrievanceHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	req.Status = models.GrievanceStatus(strings.ToUpper(string(req.Status)))
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Transition(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reassign godoc
// @Summary Reassign a grievance to a different category
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.ReassignCategoryRequest true "Target category"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/reassign [post]
func (h *GrievanceHandler) Reassign(c *gin.Context) {
	var req dto.ReassignCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reassignment payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.ReassignCategory(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reopen godoc
// @Summary Reopen a resolved or rejected grievance
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.ReopenRequest true "Reopen reason"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/reopen [post]
func (h *GrievanceHandler) Reopen(c *gin.Context) {
	var req dto.ReopenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reopen payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Reopen(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Extend godoc
// @Summary Grant an SLA extension
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.ExtensionRequest true "Extension days"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/extension [post]
func (h *GrievanceHandler) Extend(c *gin.Context) {
	var req dto.ExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid extension payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.GrantExtension(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UpdateResolution godoc
// @Summary Record resolution artifacts
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.UpdateResolutionRequest true "Resolution fields"
// @Success 200 {object} response.Envelope
// @Router /grievances/{id}/resolution [patch]
func (h *GrievanceHandler) UpdateResolution(c *gin.Context) {
	var req dto.UpdateResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolution payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.UpdateResolution(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

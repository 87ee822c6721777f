package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/grievance-api/internal/dto"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
	"github.com/civicdesk/grievance-api/pkg/response"
)

type adminStatsService interface {
	AdminStats(ctx context.Context) (*dto.AdminStatsResponse, error)
}

type sweepService interface {
	Sweep(ctx context.Context) (*dto.SweepResponse, error)
}

// AdminHandler serves the authority dashboard and the manual sweep trigger.
type AdminHandler struct {
	stats  adminStatsService
	sweeps sweepService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(stats adminStatsService, sweeps sweepService) *AdminHandler {
	return &AdminHandler{stats: stats, sweeps: sweeps}
}

// Stats godoc
// @Summary Aggregated grievance counters
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	if h.stats == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "stats service not configured"))
		return
	}
	stats, err := h.stats.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Sweep godoc
// @Summary Run an escalation sweep now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/sweep [post]
func (h *AdminHandler) Sweep(c *gin.Context) {
	if h.sweeps == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "escalation service not configured"))
		return
	}
	result, err := h.sweeps.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/grievance-api/internal/dto"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
	"github.com/civicdesk/grievance-api/pkg/response"
)

type suggestService interface {
	Suggest(ctx context.Context, req dto.SuggestRequest) (*dto.SuggestResponse, error)
}

// ClassifierHandler proxies category suggestions from the classifier service.
type ClassifierHandler struct {
	service suggestService
}

// NewClassifierHandler constructs the handler.
func NewClassifierHandler(service suggestService) *ClassifierHandler {
	return &ClassifierHandler{service: service}
}

// Suggest godoc
// @Summary Suggest categories for a description
// @Tags Classifier
// @Accept json
// @Produce json
// @Param payload body dto.SuggestRequest true "Description"
// @Success 200 {object} response.Envelope
// @Router /classifier/suggest [post]
func (h *ClassifierHandler) Suggest(c *gin.Context) {
	var req dto.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid suggest payload"))
		return
	}
	result, err := h.service.Suggest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

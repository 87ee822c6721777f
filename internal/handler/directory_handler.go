package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/grievance-api/internal/models"
	appErrors "github.com/civicdesk/grievance-api/pkg/errors"
	"github.com/civicdesk/grievance-api/pkg/response"
)

type categoryDirectory interface {
	ListLeaves(ctx context.Context) ([]models.Category, error)
}

type departmentDirectory interface {
	List(ctx context.Context) ([]models.Department, error)
	ListSubDepartments(ctx context.Context, departmentID string) ([]models.SubDepartment, error)
}

// DirectoryHandler serves the category and department reference data used by
// filing forms and triage screens.
type DirectoryHandler struct {
	categories  categoryDirectory
	departments departmentDirectory
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(categories categoryDirectory, departments departmentDirectory) *DirectoryHandler {
	return &DirectoryHandler{categories: categories, departments: departments}
}

// Categories godoc
// @Summary List selectable leaf categories
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *DirectoryHandler) Categories(c *gin.Context) {
	categories, err := h.categories.ListLeaves(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "list categories"))
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Departments godoc
// @Summary List departments
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DirectoryHandler) Departments(c *gin.Context) {
	departments, err := h.departments.List(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "list departments"))
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// SubDepartments godoc
// @Summary List sub-departments of a department
// @Tags Directory
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id}/sub-departments [get]
func (h *DirectoryHandler) SubDepartments(c *gin.Context) {
	subs, err := h.departments.ListSubDepartments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "list sub-departments"))
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/civicdesk/grievance-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, roles ...models.UserRole) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/protected", nil)
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}

	reached := false
	RequireRoles(roles...)(c)
	if !c.IsAborted() {
		reached = true
	}
	return rec, reached
}

func TestRBACAllowsListedRole(t *testing.T) {
	_, reached := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleTopAuthority},
		models.RoleTopAuthority, models.RoleDepartmentAdmin)
	assert.True(t, reached)
}

func TestRBACRejectsOtherRoles(t *testing.T) {
	rec, reached := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen},
		models.RoleTopAuthority)
	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACRequiresClaims(t *testing.T) {
	rec, reached := performRBAC(t, nil, models.RoleTopAuthority)
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

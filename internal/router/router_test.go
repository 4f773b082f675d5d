package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	_ "github.com/fawe-tz/mne-api/api/swagger"
	"github.com/fawe-tz/mne-api/internal/handler"
	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/service"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
)

// tokenRoles treats the bearer token as the caller's role.
type tokenRoles struct{}

func (tokenRoles) ValidateToken(token string) (*models.JWTClaims, error) {
	switch role := models.UserRole(token); role {
	case models.RoleAdmin, models.RoleDataEntry, models.RoleViewer:
		return &models.JWTClaims{UserID: "user-" + token, Role: role}, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func newTestRouter() *gin.Engine {
	return newTestRouterWithDocs(false)
}

func newTestRouterWithDocs(docs bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	return New(Options{
		EnableDocs:     docs,
		Auth:           tokenRoles{},
		Metrics:        metrics,
		AuthHandler:    handler.NewAuthHandler(nil),
		UserHandler:    handler.NewUserHandler(nil),
		Import:         handler.NewImportHandler(nil, func() ([]byte, error) { return []byte("xlsx"), nil }, 0),
		Surveys:        handler.NewSurveyHandler(nil),
		Dashboard:      handler.NewDashboardHandler(nil),
		Violence:       handler.NewViolenceReportHandler(nil),
		Reports:        handler.NewReportHandler(nil),
		Indicators:     handler.NewIndicatorHandler(nil),
		MetricsHandler: handler.NewMetricsHandler(metrics, nil),
	})
}

func call(r *gin.Engine, method, path, role string) int {
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+role)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestPublicRoutes(t *testing.T) {
	r := newTestRouter()
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/ready", ""))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/metrics", ""))
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/api/v1/dashboard", "/api/v1/surveys/students", "/api/v1/auth/me", "/api/v1/users", "/api/v1/reports/policy"} {
		assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, path, ""), path)
		assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, path, "GUEST"), path)
	}
}

func TestRoleTiers(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/auth/me", "VIEWER"))

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/v1/imports/template", "VIEWER"))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/imports/template", "DATA_ENTRY"))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/imports/template", "ADMIN"))

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/v1/indicators", "VIEWER"))
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodDelete, "/api/v1/indicators/ind-1", "VIEWER"))

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/v1/users", "DATA_ENTRY"))
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/v1/users", "VIEWER"))
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/v1/users/someone-else", "VIEWER"))
}

func TestUnknownSurveyKindIsNotFound(t *testing.T) {
	r := newTestRouter()
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, "/api/v1/surveys/pupils", "VIEWER"))
}

func TestDocsToggle(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, call(newTestRouter(), http.MethodGet, "/docs/index.html", ""))

	r := newTestRouterWithDocs(true)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/docs/index.html", ""))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/doc.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "School Violence M&E API")
	assert.Contains(t, rec.Body.String(), "/reports/policy/export")
}

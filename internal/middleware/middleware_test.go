package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawe-tz/mne-api/internal/models"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/response"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	last   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.last = token
	return s.claims, s.err
}

type recordingAudit struct {
	entries []*models.AuditLog
	err     error
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.entries = append(r.entries, log)
	return r.err
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := newEngine()
	r.GET("/p", JWT(&stubValidator{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTStoresClaims(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleViewer}}
	r := newEngine()
	var actor models.Actor
	r.GET("/p", JWT(validator), func(c *gin.Context) {
		actor, _ = Actor(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "bearer  tok-1 ")
	req.Header.Set("User-Agent", "mw-test")
	rec := serve(r, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", validator.last)
	assert.Equal(t, "u-1", actor.UserID)
	assert.Equal(t, models.RoleViewer, actor.Role)
	assert.Equal(t, "mw-test", actor.UserAgent)
	assert.NotEmpty(t, actor.IP)
}

func TestJWTPropagatesValidatorError(t *testing.T) {
	r := newEngine()
	r.GET("/p", JWT(&stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer old")

	rec := serve(r, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")
}

func withRole(userID string, role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
		c.Next()
	}
}

func TestRequireRoles(t *testing.T) {
	cases := []struct {
		role models.UserRole
		want int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleDataEntry, http.StatusOK},
		{models.RoleViewer, http.StatusForbidden},
	}
	for _, tc := range cases {
		r := newEngine()
		r.POST("/indicators", withRole("u", tc.role), RequireRoles(Writers...), func(c *gin.Context) { c.Status(http.StatusOK) })
		rec := serve(r, httptest.NewRequest(http.MethodPost, "/indicators", nil))
		assert.Equal(t, tc.want, rec.Code, string(tc.role))
	}
}

func TestRBACWithoutClaims(t *testing.T) {
	r := newEngine()
	r.GET("/users", RequireRoles(Admins...), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRBACSelfAccess(t *testing.T) {
	r := newEngine()
	r.GET("/users/:id", withRole("u-7", models.RoleViewer), RBAC(string(models.RoleAdmin), SelfAccess), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/users/u-7", nil)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, httptest.NewRequest(http.MethodGet, "/users/u-8", nil)).Code)
}

func TestSetCacheHitMeta(t *testing.T) {
	r := newEngine()
	r.GET("/dashboard", WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, c.Query("cached") == "1")
		response.JSON(c, http.StatusOK, gin.H{"ok": true}, nil, ResponseMeta(c, time.Now()))
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/dashboard?cached=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	var env struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestResponseMetaMeasuresFromRequestStart(t *testing.T) {
	r := newEngine()
	r.GET("/slow", WithResponseMeta(), func(c *gin.Context) {
		time.Sleep(20 * time.Millisecond)
		response.JSON(c, http.StatusOK, nil, nil, ResponseMeta(c, time.Now()))
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/slow", nil))

	var env struct {
		Meta map[string]float64 `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.GreaterOrEqual(t, env.Meta["processing_time_ms"], 20.0)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	audit := &recordingAudit{}
	r := newEngine()
	r.GET("/surveys/:kind/export", withRole("u-1", models.RoleViewer), Audit(audit, nil, models.AuditActionSurveyExport, "surveys"), func(c *gin.Context) {
		if c.Param("kind") == "bad" {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		c.String(http.StatusOK, "csv")
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/surveys/students/export?region=Arusha", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, models.AuditActionSurveyExport, entry.Action)
	assert.Equal(t, "surveys", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-1", *entry.UserID)
	assert.Contains(t, string(entry.NewValues), "region=Arusha")

	serve(r, httptest.NewRequest(http.MethodGet, "/surveys/bad/export", nil))
	assert.Len(t, audit.entries, 1)
}

func TestAuditFailureDoesNotAffectResponse(t *testing.T) {
	audit := &recordingAudit{err: errors.New("db down")}
	r := newEngine()
	r.GET("/export/:token", Audit(audit, nil, models.AuditActionReportDownload, "report_jobs"), func(c *gin.Context) {
		c.String(http.StatusOK, "file")
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/export/tok", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "file", rec.Body.String())
	require.Len(t, audit.entries, 1)
	assert.Nil(t, audit.entries[0].UserID)
}

func TestMetricsNilServicePassesThrough(t *testing.T) {
	r := newEngine()
	r.Use(Metrics(nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/service"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/response"
)

type dashboardService interface {
	Overview(ctx context.Context) (*models.Dashboard, bool, error)
	Analyze(ctx context.Context, filter models.SurveyFilter) (*models.Analysis, bool, error)
	Trends(ctx context.Context, category models.TrendCategory) (*models.Trend, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Overview godoc
// @Summary Survey dashboard
// @Description Totals and breakdowns across all imported records
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, http.StatusOK, summary, cacheHit, start)
}

// Analyze godoc
// @Summary Filtered survey analysis
// @Tags Dashboard
// @Produce json
// @Param region query string false "Region"
// @Param district query string false "District"
// @Param school query string false "School"
// @Param gender query string false "Gender"
// @Param age_group query string false "Age group"
// @Param disability_status query bool false "Disability (students)"
// @Param education_level query string false "Education level (teachers, parents)"
// @Param employment query string false "Employment (parents)"
// @Success 200 {object} response.Envelope
// @Router /analysis [get]
func (h *DashboardHandler) Analyze(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	filter, err := parseSurveyFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	analysis, cacheHit, err := h.service.Analyze(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, http.StatusOK, analysis, cacheHit, start)
}

// Trends godoc
// @Summary Category breakdown per population
// @Tags Dashboard
// @Produce json
// @Param category query string false "region, district, school, gender, age_group, disability, violence_type, perpetrator, reporting or system_effectiveness"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /analysis/trends [get]
func (h *DashboardHandler) Trends(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	category, ok := service.ParseTrendCategory(c.Query("category"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown trend category"))
		return
	}
	start := time.Now()
	trend, cacheHit, err := h.service.Trends(c.Request.Context(), category)
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, http.StatusOK, trend, cacheHit, start)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawe-tz/mne-api/internal/models"
)

type fakeDashboardSrv struct {
	overview    *models.Dashboard
	analysis    *models.Analysis
	trend       *models.Trend
	hit         bool
	err         error
	lastFilter  models.SurveyFilter
	lastTrend   models.TrendCategory
	analyzeCall bool
}

func (f *fakeDashboardSrv) Overview(context.Context) (*models.Dashboard, bool, error) {
	return f.overview, f.hit, f.err
}

func (f *fakeDashboardSrv) Analyze(_ context.Context, filter models.SurveyFilter) (*models.Analysis, bool, error) {
	f.analyzeCall = true
	f.lastFilter = filter
	return f.analysis, f.hit, f.err
}

func (f *fakeDashboardSrv) Trends(_ context.Context, category models.TrendCategory) (*models.Trend, bool, error) {
	f.lastTrend = category
	return f.trend, f.hit, f.err
}

func TestDashboardHandlerOverviewCacheHit(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{
		overview: &models.Dashboard{Totals: models.KindTotals{Students: 4, Teachers: 2, Parents: 1}},
		hit:      true,
	})
	c, rec := newTestContext(http.MethodGet, "/dashboard", nil)

	handler.Overview(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")

	var body models.Dashboard
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 4, body.Totals.Students)
}

func TestDashboardHandlerAnalyzeParsesFilter(t *testing.T) {
	svc := &fakeDashboardSrv{analysis: &models.Analysis{}}
	handler := NewDashboardHandler(svc)
	c, rec := newTestContext(http.MethodGet, "/analysis?region=Arusha&gender=female&disability_status=true&employment=Farmer", nil)

	handler.Analyze(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "Arusha", svc.lastFilter.Region)
	assert.Equal(t, "female", svc.lastFilter.Gender)
	assert.Equal(t, "Farmer", svc.lastFilter.Employment)
	require.NotNil(t, svc.lastFilter.Disability)
	assert.True(t, *svc.lastFilter.Disability)
}

func TestDashboardHandlerAnalyzeRejectsBadDisability(t *testing.T) {
	svc := &fakeDashboardSrv{}
	handler := NewDashboardHandler(svc)
	c, rec := newTestContext(http.MethodGet, "/analysis?disability_status=maybe", nil)

	handler.Analyze(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, svc.analyzeCall)
}

func TestDashboardHandlerTrends(t *testing.T) {
	svc := &fakeDashboardSrv{trend: &models.Trend{Category: models.TrendGender, Labels: []string{"Female", "Male"}}}
	handler := NewDashboardHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/analysis/trends?category=Gender", nil)
	handler.Trends(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TrendGender, svc.lastTrend)

	c, rec = newTestContext(http.MethodGet, "/analysis/trends?category=weather", nil)
	handler.Trends(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandlerServiceError(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: errors.New("boom")})
	c, rec := newTestContext(http.MethodGet, "/dashboard", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}

func TestDashboardHandlerNilService(t *testing.T) {
	handler := NewDashboardHandler(nil)
	c, rec := newTestContext(http.MethodGet, "/dashboard", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

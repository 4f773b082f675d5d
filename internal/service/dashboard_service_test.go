package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/models"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
)

func TestDashboardOverview(t *testing.T) {
	store := seededStore()
	svc := NewDashboardService(store, nil, nil, zap.NewNop())

	out, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.KindTotals{Students: 4, Teachers: 2, Parents: 1}, out.Totals)
	assert.Equal(t, []models.GroupCount{{Label: "false", Count: 3}, {Label: "true", Count: 1}}, out.StudentsByDisability)
	assert.Equal(t, []models.GroupCount{{Label: "No", Count: 1}, {Label: "Yes", Count: 1}}, out.TeachersByTraining)

	require.Len(t, out.ByRegion, 3)
	assert.Equal(t, models.LocationCount{Name: "Arusha", Students: 2, Teachers: 1, Parents: 1}, out.ByRegion[0])
	assert.Equal(t, models.LocationCount{Name: "Dodoma", Students: 1, Teachers: 1}, out.ByRegion[1])
	assert.Equal(t, models.LocationCount{Name: "Unknown", Students: 1}, out.ByRegion[2])
}

func TestDashboardOverviewUsesCache(t *testing.T) {
	store := seededStore()
	cache := NewCacheService(newMemCache(), nil, time.Minute, nil, true)
	svc := NewDashboardService(store, cache, nil, nil)

	_, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	calls := store.calls

	_, hit, err = svc.Overview(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, calls, store.calls)
}

func TestDashboardAnalyzeByRegion(t *testing.T) {
	store := seededStore()
	svc := NewDashboardService(store, nil, nil, nil)

	out, _, err := svc.Analyze(context.Background(), models.SurveyFilter{Region: "Arusha", Page: 4, Search: "S"})
	require.NoError(t, err)
	assert.Empty(t, out.Filters.Search)
	assert.Equal(t, models.KindTotals{Students: 2, Teachers: 1, Parents: 1}, out.Totals)
	assert.Equal(t, models.KindTotals{Students: 1, Teachers: 0, Parents: 1}, out.Reporting)
	assert.Equal(t, []int{1, 1}, out.GenderCharts.Students.Values)
	assert.Equal(t, []int{0, 1}, out.GenderCharts.Teachers.Values)
	assert.Equal(t, []string{"Reporting", "Not Reporting"}, out.ReportingChart.Students.Labels)
	assert.Equal(t, []int{1, 1}, out.ReportingChart.Students.Values)
	assert.Equal(t, []string{"Students", "Teachers", "Parents"}, out.Combined.Labels)
	assert.Equal(t, []int{1, 0, 1}, out.Combined.Values)

	// case breakdowns ignore the filter
	assert.Equal(t, []models.GroupCount{{Label: "Arusha", Count: 2}, {Label: "Unknown", Count: 1}, {Label: "Dodoma", Count: 1}}, out.CasesByRegion)
	assert.Equal(t, []string{"Arusha", "Dodoma"}, out.Options.Regions)
	assert.Equal(t, []string{"Degree", "Diploma"}, out.Options.EducationLevels)
	assert.Equal(t, []string{"Farmer"}, out.Options.Employment)
}

func TestDashboardAnalyzeConflictingGender(t *testing.T) {
	store := seededStore()
	svc := NewDashboardService(store, nil, nil, nil)

	out, _, err := svc.Analyze(context.Background(), models.SurveyFilter{Gender: "female"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Totals.Students)
	assert.Equal(t, []string{"Male", "Female"}, out.GenderCharts.Students.Labels)
	assert.Equal(t, []int{0, 2}, out.GenderCharts.Students.Values)
}

func TestDashboardTrendsAlignsLabels(t *testing.T) {
	store := seededStore()
	svc := NewDashboardService(store, nil, nil, nil)

	trend, _, err := svc.Trends(context.Background(), models.TrendRegion)
	require.NoError(t, err)
	assert.Equal(t, []string{"Arusha", "Dodoma", "Unknown"}, trend.Labels)
	assert.Equal(t, []int{2, 1, 1}, trend.Students)
	assert.Equal(t, []int{1, 1, 0}, trend.Teachers)
	assert.Equal(t, []int{1, 0, 0}, trend.Parents)
}

func TestDashboardTrendsStudentOnlyCategory(t *testing.T) {
	store := seededStore()
	svc := NewDashboardService(store, nil, nil, nil)

	trend, _, err := svc.Trends(context.Background(), models.TrendDisability)
	require.NoError(t, err)
	assert.Equal(t, []string{"false", "true"}, trend.Labels)
	assert.Equal(t, []int{3, 1}, trend.Students)
	assert.Equal(t, []int{0, 0}, trend.Teachers)
	assert.Equal(t, []int{0, 0}, trend.Parents)
}

func TestDashboardTrendsEmptyStore(t *testing.T) {
	svc := NewDashboardService(newMemSurveyStore(), nil, nil, nil)

	trend, _, err := svc.Trends(context.Background(), models.TrendSchool)
	require.NoError(t, err)
	assert.NotNil(t, trend.Labels)
	assert.Empty(t, trend.Students)
}

func TestDashboardTrendsUnknownCategory(t *testing.T) {
	svc := NewDashboardService(seededStore(), nil, nil, nil)

	_, _, err := svc.Trends(context.Background(), models.TrendCategory("weather"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestParseTrendCategory(t *testing.T) {
	c, ok := ParseTrendCategory("")
	assert.True(t, ok)
	assert.Equal(t, models.TrendRegion, c)

	c, ok = ParseTrendCategory(" Violence_Type ")
	assert.True(t, ok)
	assert.Equal(t, models.TrendViolenceType, c)

	_, ok = ParseTrendCategory("weather")
	assert.False(t, ok)
}

func TestDashboardOverviewRepositoryFailure(t *testing.T) {
	store := seededStore()
	store.err = errors.New("db down")
	svc := NewDashboardService(store, nil, nil, nil)

	_, _, err := svc.Overview(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

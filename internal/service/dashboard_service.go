package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/repository"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
)

const unknownLabel = "Unknown"

var allKinds = []models.RecordKind{models.KindStudent, models.KindTeacher, models.KindParent}

// trendColumns maps a trend category to the column grouped for each kind.
// An empty column means the kind does not record that attribute.
var trendColumns = map[models.TrendCategory][3]string{
	models.TrendRegion:              {"region", "region", "region"},
	models.TrendDistrict:            {"district", "district", "district"},
	models.TrendSchool:              {"school", "school", "school"},
	models.TrendGender:              {"gender", "gender", "gender"},
	models.TrendAgeGroup:            {"age_group", "age_group", "age_group"},
	models.TrendDisability:          {"disability_status", "", ""},
	models.TrendViolenceType:        {"forms_of_violence", "forms_of_violence", "forms_of_violence"},
	models.TrendPerpetrator:         {"perpetrators", "", ""},
	models.TrendReporting:           {"reporting_violence", "reporting_violence", "reporting_violence"},
	models.TrendSystemEffectiveness: {"effectiveness_reporting_system", "effective_handling_vac", "effectiveness_positive_punishment"},
}

// DashboardService builds the overview, analysis and trend aggregates.
type DashboardService struct {
	analytics surveyAggregator
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(analytics surveyAggregator, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{analytics: analytics, cache: cache, metrics: metrics, logger: logger}
}

// Overview returns totals and breakdowns across all kinds. The bool reports a cache hit.
func (s *DashboardService) Overview(ctx context.Context) (*models.Dashboard, bool, error) {
	out, hit, err := cached(ctx, s.cache, cacheKeyDashboard, func() (*models.Dashboard, error) {
		return s.buildOverview(ctx)
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
	}
	return out, hit, nil
}

func (s *DashboardService) buildOverview(ctx context.Context) (*models.Dashboard, error) {
	defer s.observe("dashboard", time.Now())
	var (
		out models.Dashboard
		err error
		all models.SurveyFilter
	)
	for _, kind := range allKinds {
		n, err := s.analytics.Count(ctx, kind, all)
		if err != nil {
			return nil, err
		}
		out.Totals.Set(kind, n)
	}
	groups := []struct {
		dest   *[]models.GroupCount
		kind   models.RecordKind
		column string
	}{
		{&out.StudentsByGender, models.KindStudent, "gender"},
		{&out.StudentsByDisability, models.KindStudent, "disability_status"},
		{&out.TeachersByGender, models.KindTeacher, "gender"},
		{&out.TeachersByTraining, models.KindTeacher, "training_received"},
		{&out.ParentsByGender, models.KindParent, "gender"},
	}
	for _, g := range groups {
		if *g.dest, err = s.groupBy(ctx, g.kind, g.column, all); err != nil {
			return nil, err
		}
	}
	if out.ByRegion, err = s.locations(ctx, "region"); err != nil {
		return nil, err
	}
	if out.ByDistrict, err = s.locations(ctx, "district"); err != nil {
		return nil, err
	}
	if out.BySchool, err = s.locations(ctx, "school"); err != nil {
		return nil, err
	}
	return &out, nil
}

// locations merges the per-kind counts of column into one row per value.
func (s *DashboardService) locations(ctx context.Context, column string) ([]models.LocationCount, error) {
	byName := map[string]*models.LocationCount{}
	for _, kind := range allKinds {
		groups, err := s.groupBy(ctx, kind, column, models.SurveyFilter{})
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			row, ok := byName[g.Label]
			if !ok {
				row = &models.LocationCount{Name: g.Label}
				byName[g.Label] = row
			}
			switch kind {
			case models.KindStudent:
				row.Students = g.Count
			case models.KindTeacher:
				row.Teachers = g.Count
			case models.KindParent:
				row.Parents = g.Count
			}
		}
	}
	out := make([]models.LocationCount, 0, len(byName))
	for _, row := range byName {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Analyze compares the three populations under filter.
func (s *DashboardService) Analyze(ctx context.Context, filter models.SurveyFilter) (*models.Analysis, bool, error) {
	filter.Page, filter.PageSize, filter.Search = 0, 0, ""
	out, hit, err := cached(ctx, s.cache, cacheKeyAnalysis+filter.CacheKey(), func() (*models.Analysis, error) {
		return s.buildAnalysis(ctx, filter)
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build analysis")
	}
	return out, hit, nil
}

func (s *DashboardService) buildAnalysis(ctx context.Context, filter models.SurveyFilter) (*models.Analysis, error) {
	defer s.observe("analysis", time.Now())
	out := &models.Analysis{Filters: filter}
	reporting := repository.Condition{Column: "reporting_violence", Value: true}
	charts := map[models.RecordKind]*models.Chart{
		models.KindStudent: &out.GenderCharts.Students,
		models.KindTeacher: &out.GenderCharts.Teachers,
		models.KindParent:  &out.GenderCharts.Parents,
	}
	reportingCharts := map[models.RecordKind]*models.Chart{
		models.KindStudent: &out.ReportingChart.Students,
		models.KindTeacher: &out.ReportingChart.Teachers,
		models.KindParent:  &out.ReportingChart.Parents,
	}
	combined := models.Chart{Labels: []string{"Students", "Teachers", "Parents"}, Values: make([]int, 0, 3)}

	for _, kind := range allKinds {
		total, err := s.analytics.Count(ctx, kind, filter)
		if err != nil {
			return nil, err
		}
		reported, err := s.analytics.Count(ctx, kind, filter, reporting)
		if err != nil {
			return nil, err
		}
		out.Totals.Set(kind, total)
		out.Reporting.Set(kind, reported)

		chart := models.Chart{Labels: []string{"Male", "Female"}}
		for _, gender := range chart.Labels {
			n, err := s.genderCount(ctx, kind, filter, gender)
			if err != nil {
				return nil, err
			}
			chart.Values = append(chart.Values, n)
		}
		*charts[kind] = chart
		*reportingCharts[kind] = models.Chart{
			Labels: []string{"Reporting", "Not Reporting"},
			Values: []int{reported, total - reported},
		}
		combined.Values = append(combined.Values, reported)
	}
	out.Combined = combined

	var err error
	if out.CasesByRegion, err = s.groupBy(ctx, models.KindStudent, "region", models.SurveyFilter{}); err != nil {
		return nil, err
	}
	if out.ViolenceTypes, err = s.groupBy(ctx, models.KindStudent, "forms_of_violence", models.SurveyFilter{}); err != nil {
		return nil, err
	}
	if out.Options, err = s.options(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// genderCount counts rows of gender within filter. A conflicting gender
// filter yields zero.
func (s *DashboardService) genderCount(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter, gender string) (int, error) {
	if filter.Gender != "" && !strings.EqualFold(filter.Gender, gender) {
		return 0, nil
	}
	filter.Gender = gender
	return s.analytics.Count(ctx, kind, filter)
}

func (s *DashboardService) options(ctx context.Context) (models.AnalysisOptions, error) {
	var (
		out models.AnalysisOptions
		err error
	)
	lookups := []struct {
		dest   *[]string
		kind   models.RecordKind
		column string
	}{
		{&out.Regions, models.KindStudent, "region"},
		{&out.Districts, models.KindStudent, "district"},
		{&out.Schools, models.KindStudent, "school"},
		{&out.Genders, models.KindStudent, "gender"},
		{&out.AgeGroups, models.KindStudent, "age_group"},
		{&out.EducationLevels, models.KindTeacher, "education_level"},
		{&out.Employment, models.KindParent, "employment"},
	}
	for _, l := range lookups {
		if *l.dest, err = s.analytics.Distinct(ctx, l.kind, l.column); err != nil {
			return out, err
		}
	}
	return out, nil
}

// ParseTrendCategory validates a trend category name.
func ParseTrendCategory(raw string) (models.TrendCategory, bool) {
	if raw == "" {
		return models.TrendRegion, true
	}
	c := models.TrendCategory(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := trendColumns[c]
	return c, ok
}

// Trends groups each population by category. Labels come from the first kind
// with data, in ascending order; other kinds are aligned to them.
func (s *DashboardService) Trends(ctx context.Context, category models.TrendCategory) (*models.Trend, bool, error) {
	columns, ok := trendColumns[category]
	if !ok {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown trend category")
	}
	out, hit, err := cached(ctx, s.cache, cacheKeyTrends+string(category), func() (*models.Trend, error) {
		return s.buildTrend(ctx, category, columns)
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build trends")
	}
	return out, hit, nil
}

func (s *DashboardService) buildTrend(ctx context.Context, category models.TrendCategory, columns [3]string) (*models.Trend, error) {
	defer s.observe("trends", time.Now())
	counts := make([]map[string]int, len(allKinds))
	var labels []string
	for i, kind := range allKinds {
		if columns[i] == "" {
			continue
		}
		groups, err := s.groupBy(ctx, kind, columns[i], models.SurveyFilter{})
		if err != nil {
			return nil, err
		}
		counts[i] = make(map[string]int, len(groups))
		for _, g := range groups {
			counts[i][g.Label] += g.Count
		}
		if labels == nil && len(groups) > 0 {
			for label := range counts[i] {
				labels = append(labels, label)
			}
			sort.Strings(labels)
		}
	}
	if labels == nil {
		labels = []string{}
	}
	align := func(i int) []int {
		out := make([]int, len(labels))
		for j, label := range labels {
			out[j] = counts[i][label]
		}
		return out
	}
	return &models.Trend{
		Category: category,
		Labels:   labels,
		Students: align(0),
		Teachers: align(1),
		Parents:  align(2),
	}, nil
}

// groupBy wraps the repository aggregate, labelling blank groups Unknown.
func (s *DashboardService) groupBy(ctx context.Context, kind models.RecordKind, column string, filter models.SurveyFilter) ([]models.GroupCount, error) {
	groups, err := s.analytics.GroupBy(ctx, kind, column, filter)
	if err != nil {
		return nil, err
	}
	return labelUnknown(groups), nil
}

func (s *DashboardService) observe(label string, start time.Time) {
	s.metrics.ObserveDBQuery(label, time.Since(start))
}

func labelUnknown(groups []models.GroupCount) []models.GroupCount {
	for i := range groups {
		if strings.TrimSpace(groups[i].Label) == "" {
			groups[i].Label = unknownLabel
		}
	}
	return groups
}

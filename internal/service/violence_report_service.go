package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/repository"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/export"
)

const hotspotThreshold = 100

var (
	effectiveAnswers   = map[string]bool{"yes": true, "y": true, "true": true, "1": true, "effective": true, "very effective": true}
	ineffectiveAnswers = map[string]bool{"no": true, "n": true, "false": true, "0": true, "ineffective": true, "not effective": true}
)

// ViolenceReportService summarises students' experience of violence.
type ViolenceReportService struct {
	analytics surveyAggregator
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewViolenceReportService constructs a ViolenceReportService.
func NewViolenceReportService(analytics surveyAggregator, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ViolenceReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViolenceReportService{analytics: analytics, cache: cache, metrics: metrics, logger: logger}
}

// Build aggregates the violence report. Percentages are shares of all
// surveyed students rounded to two decimals.
func (s *ViolenceReportService) Build(ctx context.Context) (*models.ViolenceReport, bool, error) {
	out, hit, err := cached(ctx, s.cache, cacheKeyViolence, func() (*models.ViolenceReport, error) {
		return s.build(ctx)
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build violence report")
	}
	return out, hit, nil
}

func (s *ViolenceReportService) build(ctx context.Context) (*models.ViolenceReport, error) {
	defer func(start time.Time) { s.metrics.ObserveDBQuery("violence_report", time.Since(start)) }(time.Now())
	var (
		out  models.ViolenceReport
		err  error
		all  models.SurveyFilter
		vict = repository.Condition{Column: "experienced_vac", Value: true}
	)
	if out.TotalStudents, err = s.analytics.Count(ctx, models.KindStudent, all); err != nil {
		return nil, err
	}
	if out.ExperiencedTotal, err = s.analytics.Count(ctx, models.KindStudent, all, vict); err != nil {
		return nil, err
	}
	shares := []struct {
		dest   *[]models.PercentCount
		column string
	}{
		{&out.ByGender, "gender"},
		{&out.ByDisability, "disability_status"},
		{&out.ByAgeGroup, "age_group"},
	}
	for _, sh := range shares {
		groups, err := s.analytics.GroupBy(ctx, models.KindStudent, sh.column, all, vict)
		if err != nil {
			return nil, err
		}
		*sh.dest = percentages(labelUnknown(groups), out.TotalStudents, sh.column == "disability_status")
	}
	frequencies := []struct {
		dest   *[]models.GroupCount
		column string
	}{
		{&out.FormsOfViolence, "forms_of_violence"},
		{&out.Perpetrators, "perpetrators"},
		{&out.VulnerablePlaces, "vulnerable_places"},
		{&out.ReportingAwareness, "effectiveness_reporting_system"},
	}
	for _, f := range frequencies {
		groups, err := s.analytics.GroupBy(ctx, models.KindStudent, f.column, all)
		if err != nil {
			return nil, err
		}
		*f.dest = labelUnknown(groups)
	}
	return &out, nil
}

// Summary derives the headline findings and recommendations.
func (s *ViolenceReportService) Summary(ctx context.Context) (*models.ExecutiveSummary, error) {
	report, _, err := s.Build(ctx)
	if err != nil {
		return nil, err
	}
	regions, err := s.analytics.GroupBy(ctx, models.KindStudent, "region", models.SurveyFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank regions")
	}
	schools, err := s.analytics.GroupBy(ctx, models.KindStudent, "school", models.SurveyFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank schools")
	}
	return summarize(report, labelUnknown(regions), labelUnknown(schools)), nil
}

func summarize(report *models.ViolenceReport, regions, schools []models.GroupCount) *models.ExecutiveSummary {
	out := &models.ExecutiveSummary{
		TopRegion:       first(regions),
		TopSchool:       first(schools),
		TopViolence:     first(report.FormsOfViolence),
		Recommendations: []string{},
	}
	for _, g := range report.ReportingAwareness {
		answer := strings.ToLower(strings.TrimSpace(g.Label))
		switch {
		case effectiveAnswers[answer]:
			out.Effective += g.Count
		case ineffectiveAnswers[answer]:
			out.Ineffective += g.Count
		}
	}

	share := 0.0
	if report.TotalStudents > 0 {
		share = round2(float64(report.ExperiencedTotal) / float64(report.TotalStudents) * 100)
	}
	out.Summary = fmt.Sprintf(
		"Survey data covers %d students, of whom %d (%.2f%%) reported experiencing violence. "+
			"The most affected region is %s and the most affected school is %s. The most common form of violence is %s.",
		report.TotalStudents, report.ExperiencedTotal, share,
		labelOr(out.TopRegion), labelOr(out.TopSchool), labelOr(out.TopViolence))

	if out.Ineffective > out.Effective {
		out.Recommendations = append(out.Recommendations, "Strengthen confidential reporting channels and child protection committees.")
	}
	if out.TopViolence != nil && strings.Contains(strings.ToLower(out.TopViolence.Label), "corporal") {
		out.Recommendations = append(out.Recommendations, "Expand teacher training on positive discipline methods.")
	}
	if out.TopRegion != nil && out.TopRegion.Count > hotspotThreshold {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf("Prioritize interventions in %s.", out.TopRegion.Label))
	}
	return out
}

// Rates computes the headline indicator percentages.
func (s *ViolenceReportService) Rates(ctx context.Context) (*models.SurveyRates, error) {
	out, _, err := cached(ctx, s.cache, cacheKeyRates, func() (*models.SurveyRates, error) {
		var rates models.SurveyRates
		columns := []struct {
			dest   *float64
			kind   models.RecordKind
			column string
		}{
			{&rates.StudentAwareness, models.KindStudent, "knowledge_on_violence"},
			{&rates.StudentReporting, models.KindStudent, "reporting_violence"},
			{&rates.TeacherReporting, models.KindTeacher, "reporting_violence"},
			{&rates.ParentReporting, models.KindParent, "reporting_violence"},
		}
		for _, col := range columns {
			rate, err := s.rate(ctx, col.kind, col.column)
			if err != nil {
				return nil, err
			}
			*col.dest = rate
		}
		return &rates, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute indicator rates")
	}
	return out, nil
}

func (s *ViolenceReportService) rate(ctx context.Context, kind models.RecordKind, column string) (float64, error) {
	total, err := s.analytics.Count(ctx, kind, models.SurveyFilter{})
	if err != nil || total == 0 {
		return 0, err
	}
	yes, err := s.analytics.Count(ctx, kind, models.SurveyFilter{}, repository.Condition{Column: column, Value: true})
	if err != nil {
		return 0, err
	}
	return round2(float64(yes) / float64(total) * 100), nil
}

// Export renders the violence report with its executive summary.
func (s *ViolenceReportService) Export(ctx context.Context, format export.Format) (*ExportFile, error) {
	if _, err := export.RendererFor(format); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	return renderFile(doc, format, "violence_reports")
}

func renderFile(doc export.Report, format export.Format, basename string) (*ExportFile, error) {
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	payload, err := renderer.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render "+strings.ReplaceAll(basename, "_", " "))
	}
	return &ExportFile{
		Filename:    basename + "." + format.Extension(),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

// Document lays the report out as export sections.
func (s *ViolenceReportService) Document(ctx context.Context) (export.Report, error) {
	report, _, err := s.Build(ctx)
	if err != nil {
		return export.Report{}, err
	}
	summary, err := s.Summary(ctx)
	if err != nil {
		return export.Report{}, err
	}
	return violenceDocument(report, summary), nil
}

func violenceDocument(report *models.ViolenceReport, summary *models.ExecutiveSummary) export.Report {
	overview := export.Dataset{
		Headers: []string{"Metric", "Value"},
		Rows: []map[string]string{
			{"Metric": "Total students", "Value": strconv.Itoa(report.TotalStudents)},
			{"Metric": "Experienced violence", "Value": strconv.Itoa(report.ExperiencedTotal)},
			{"Metric": "Effective reporting responses", "Value": strconv.Itoa(summary.Effective)},
			{"Metric": "Ineffective reporting responses", "Value": strconv.Itoa(summary.Ineffective)},
			{"Metric": "Summary", "Value": summary.Summary},
		},
	}
	recs := export.Dataset{Headers: []string{"Recommendation"}, Rows: []map[string]string{}}
	for _, r := range summary.Recommendations {
		recs.Rows = append(recs.Rows, map[string]string{"Recommendation": r})
	}
	return export.Report{
		Title: "Violence Reports",
		Sections: []export.Section{
			{Heading: "Overview", Data: overview},
			{Heading: "Experienced Violence by Gender", Data: percentDataset("Gender", report.ByGender)},
			{Heading: "Experienced Violence by Disability", Data: percentDataset("Disability Status", report.ByDisability)},
			{Heading: "Experienced Violence by Age Group", Data: percentDataset("Age Group", report.ByAgeGroup)},
			{Heading: "Forms of Violence", Data: countDataset("Form of Violence", report.FormsOfViolence)},
			{Heading: "Perpetrators", Data: countDataset("Perpetrator", report.Perpetrators)},
			{Heading: "Vulnerable Places", Data: countDataset("Place", report.VulnerablePlaces)},
			{Heading: "Recommendations", Data: recs},
		},
	}
}

func percentDataset(label string, rows []models.PercentCount) export.Dataset {
	ds := export.Dataset{Headers: []string{label, "Count", "Percentage"}, Rows: make([]map[string]string, 0, len(rows))}
	for _, r := range rows {
		ds.Rows = append(ds.Rows, map[string]string{
			label:        r.Label,
			"Count":      strconv.Itoa(r.Count),
			"Percentage": strconv.FormatFloat(r.Percentage, 'f', 2, 64),
		})
	}
	return ds
}

func countDataset(label string, rows []models.GroupCount) export.Dataset {
	ds := export.Dataset{Headers: []string{label, "Count"}, Rows: make([]map[string]string, 0, len(rows))}
	for _, r := range rows {
		ds.Rows = append(ds.Rows, map[string]string{label: r.Label, "Count": strconv.Itoa(r.Count)})
	}
	return ds
}

func percentages(groups []models.GroupCount, total int, boolean bool) []models.PercentCount {
	out := make([]models.PercentCount, 0, len(groups))
	for _, g := range groups {
		label := g.Label
		if boolean {
			switch label {
			case "true":
				label = "Yes"
			case "false":
				label = "No"
			}
		}
		pct := 0.0
		if total > 0 {
			pct = round2(float64(g.Count) / float64(total) * 100)
		}
		out = append(out, models.PercentCount{Label: label, Count: g.Count, Percentage: pct})
	}
	return out
}

func first(groups []models.GroupCount) *models.GroupCount {
	if len(groups) == 0 {
		return nil
	}
	g := groups[0]
	return &g
}

func labelOr(g *models.GroupCount) string {
	if g == nil {
		return "n/a"
	}
	return g.Label
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

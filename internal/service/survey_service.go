package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/repository"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/export"
)

type surveyReader interface {
	List(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter) ([]models.SurveyRecord, int, error)
	ListAll(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter) ([]models.SurveyRecord, error)
	FindByID(ctx context.Context, kind models.RecordKind, id string) (*models.SurveyRecord, error)
}

type surveyAggregator interface {
	Count(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter, conds ...repository.Condition) (int, error)
	GroupBy(ctx context.Context, kind models.RecordKind, column string, filter models.SurveyFilter, conds ...repository.Condition) ([]models.GroupCount, error)
	Distinct(ctx context.Context, kind models.RecordKind, column string, conds ...repository.Condition) ([]string, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// SurveyService exposes read access to imported survey records.
type SurveyService struct {
	repo      surveyReader
	analytics surveyAggregator
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewSurveyService constructs a SurveyService.
func NewSurveyService(repo surveyReader, analytics surveyAggregator, metrics *MetricsService, logger *zap.Logger) *SurveyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurveyService{repo: repo, analytics: analytics, metrics: metrics, logger: logger}
}

// List returns one page of kind's records.
func (s *SurveyService) List(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter) ([]models.SurveyRecord, *models.Pagination, error) {
	start := time.Now()
	records, total, err := s.repo.List(ctx, kind, filter)
	s.metrics.ObserveDBQuery("survey_list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list survey records")
	}
	page, size := normalizePage(filter.Page, filter.PageSize, 10, 100)
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single record.
func (s *SurveyService) Get(ctx context.Context, kind models.RecordKind, id string) (*models.SurveyRecord, error) {
	record, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", kind))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey record")
	}
	return record, nil
}

// Export renders every record matching filter. The header row is id_number
// followed by the kind's columns in storage order.
func (s *SurveyService) Export(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter, format export.Format) (*ExportFile, error) {
	fs, ok := models.FieldSetFor(kind)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown record kind")
	}
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	start := time.Now()
	records, err := s.repo.ListAll(ctx, kind, filter)
	s.metrics.ObserveDBQuery("survey_export", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey records")
	}
	payload, err := renderer.Render(export.Single(fmt.Sprintf("%s survey", titleKind(kind)), SurveyDataset(fs, records)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s_filtered.%s", kind.Plural(), format.Extension()),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

// SurveyDataset tabulates records for the export renderers.
func SurveyDataset(fs models.FieldSet, records []models.SurveyRecord) export.Dataset {
	headers := append([]string{models.IDField}, fs.Columns()...)
	rows := make([]map[string]string, 0, len(records))
	for i := range records {
		row := map[string]string{models.IDField: records[i].IDNumber}
		for _, col := range fs.Columns() {
			row[col] = records[i].Display(fs, col)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// Districts lists the districts recorded for region in the student survey.
func (s *SurveyService) Districts(ctx context.Context, region string) ([]string, error) {
	if region == "" {
		return []string{}, nil
	}
	return s.distinct(ctx, models.KindStudent, "district", repository.Condition{Column: "region", Value: region})
}

// Schools lists the schools recorded for district in the student survey.
func (s *SurveyService) Schools(ctx context.Context, district string) ([]string, error) {
	if district == "" {
		return []string{}, nil
	}
	return s.distinct(ctx, models.KindStudent, "school", repository.Condition{Column: "district", Value: district})
}

// EducationLevels lists teacher education levels.
func (s *SurveyService) EducationLevels(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, models.KindTeacher, "education_level")
}

// Employment lists parent employment values.
func (s *SurveyService) Employment(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, models.KindParent, "employment")
}

func (s *SurveyService) distinct(ctx context.Context, kind models.RecordKind, column string, conds ...repository.Condition) ([]string, error) {
	start := time.Now()
	values, err := s.analytics.Distinct(ctx, kind, column, conds...)
	s.metrics.ObserveDBQuery("lookup_"+column, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lookup values")
	}
	return values, nil
}

func normalizePage(page, size, def, max int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return page, size
}

func titleKind(kind models.RecordKind) string {
	switch kind {
	case models.KindStudent:
		return "Student"
	case models.KindTeacher:
		return "Teacher"
	case models.KindParent:
		return "Parent"
	}
	return string(kind)
}

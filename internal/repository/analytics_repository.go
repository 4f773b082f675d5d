package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fawe-tz/mne-api/internal/models"
)

// AnalyticsRepository runs aggregate queries over the survey tables.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs an AnalyticsRepository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Count returns the number of rows of kind matching filter and conds.
func (r *AnalyticsRepository) Count(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter, conds ...Condition) (int, error) {
	fs, err := fieldSet(kind)
	if err != nil {
		return 0, err
	}
	where, args := surveyWhere(fs, filter, conds...)
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM %s %s", fs.Table, where), args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", fs.Table, err)
	}
	return total, nil
}

// GroupBy counts rows per distinct value of column. Boolean columns yield
// "true"/"false" labels. Groups are ordered by count descending, then label.
func (r *AnalyticsRepository) GroupBy(ctx context.Context, kind models.RecordKind, column string, filter models.SurveyFilter, conds ...Condition) ([]models.GroupCount, error) {
	fs, err := fieldSet(kind)
	if err != nil {
		return nil, err
	}
	if !fs.Has(column) {
		return nil, fmt.Errorf("%s has no column %q", fs.Table, column)
	}
	where, args := surveyWhere(fs, filter, conds...)
	query := fmt.Sprintf(`SELECT COALESCE(CAST(%[1]s AS TEXT), '') AS label, COUNT(*) AS count FROM %[2]s %[3]s
GROUP BY %[1]s ORDER BY count DESC, label ASC`, column, fs.Table, where)
	groups := make([]models.GroupCount, 0)
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("group %s by %s: %w", fs.Table, column, err)
	}
	return groups, nil
}

// Distinct lists the non-empty distinct values of column in ascending order.
func (r *AnalyticsRepository) Distinct(ctx context.Context, kind models.RecordKind, column string, conds ...Condition) ([]string, error) {
	fs, err := fieldSet(kind)
	if err != nil {
		return nil, err
	}
	if !fs.Has(column) || fs.IsBoolean(column) {
		return nil, fmt.Errorf("%s has no text column %q", fs.Table, column)
	}
	where, args := surveyWhere(fs, models.SurveyFilter{}, conds...)
	query := fmt.Sprintf("SELECT DISTINCT %[1]s FROM %[2]s %[3]s AND %[1]s <> '' ORDER BY %[1]s ASC", column, fs.Table, where)
	values := make([]string, 0)
	if err := r.db.SelectContext(ctx, &values, query, args...); err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", fs.Table, column, err)
	}
	return values, nil
}

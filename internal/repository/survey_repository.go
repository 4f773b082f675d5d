package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fawe-tz/mne-api/internal/models"
)

const (
	defaultSurveyPageSize = 10
	maxSurveyPageSize     = 100
)

// SurveyRepository persists student, teacher and parent survey rows. SQL is
// derived from the kind's field set so all three tables share one code path.
type SurveyRepository struct {
	db *sqlx.DB
}

// NewSurveyRepository constructs a SurveyRepository.
func NewSurveyRepository(db *sqlx.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

// Condition is an extra equality predicate on a field-set column.
type Condition struct {
	Column string
	Value  interface{}
}

func fieldSet(kind models.RecordKind) (models.FieldSet, error) {
	fs, ok := models.FieldSetFor(kind)
	if !ok {
		return models.FieldSet{}, fmt.Errorf("unknown record kind %q", kind)
	}
	return fs, nil
}

// FindIDByIDNumber looks up the primary key of the row with idNumber.
func (r *SurveyRepository) FindIDByIDNumber(ctx context.Context, kind models.RecordKind, idNumber string) (string, bool, error) {
	fs, err := fieldSet(kind)
	if err != nil {
		return "", false, err
	}
	query := fmt.Sprintf("SELECT id FROM %s WHERE id_number = $1 LIMIT 1", fs.Table)
	var id string
	if err := r.db.GetContext(ctx, &id, query, idNumber); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("find %s by id_number: %w", kind, err)
	}
	return id, true, nil
}

// Create inserts record and assigns its ID.
func (r *SurveyRepository) Create(ctx context.Context, record *models.SurveyRecord) error {
	fs, err := fieldSet(record.Kind)
	if err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	cols := append([]string{"id", models.IDField}, fs.Columns()...)
	cols = append(cols, "created_at", "updated_at")
	args := []interface{}{record.ID, record.IDNumber}
	for _, c := range fs.Columns() {
		args = append(args, record.Value(fs, c))
	}
	args = append(args, record.CreatedAt, record.UpdatedAt)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", fs.Table, strings.Join(cols, ", "), placeholders(1, len(cols)))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create %s: %w", record.Kind, err)
	}
	return nil
}

// Update overwrites every non-identifier column of the row id.
func (r *SurveyRepository) Update(ctx context.Context, id string, record *models.SurveyRecord) error {
	fs, err := fieldSet(record.Kind)
	if err != nil {
		return err
	}
	record.ID = id
	record.UpdatedAt = time.Now().UTC()

	set := make([]string, 0, len(fs.Fields)+1)
	args := make([]interface{}, 0, len(fs.Fields)+2)
	for _, c := range fs.Columns() {
		args = append(args, record.Value(fs, c))
		set = append(set, fmt.Sprintf("%s = $%d", c, len(args)))
	}
	args = append(args, record.UpdatedAt)
	set = append(set, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", fs.Table, strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", record.Kind, err)
	}
	return nil
}

// List returns one page of records matching filter plus the total match count.
func (r *SurveyRepository) List(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter) ([]models.SurveyRecord, int, error) {
	fs, err := fieldSet(kind)
	if err != nil {
		return nil, 0, err
	}
	where, args := surveyWhere(fs, filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = defaultSurveyPageSize
	}
	if size > maxSurveyPageSize {
		size = maxSurveyPageSize
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY id_number ASC, created_at ASC LIMIT %d OFFSET %d", selectColumns(fs), fs.Table, where, size, offset)
	records, err := r.query(ctx, fs, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", fs.Table, err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM %s %s", fs.Table, where), args...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", fs.Table, err)
	}
	return records, total, nil
}

// ListAll returns every record matching filter, ignoring pagination.
func (r *SurveyRepository) ListAll(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter) ([]models.SurveyRecord, error) {
	fs, err := fieldSet(kind)
	if err != nil {
		return nil, err
	}
	where, args := surveyWhere(fs, filter)
	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY id_number ASC, created_at ASC", selectColumns(fs), fs.Table, where)
	records, err := r.query(ctx, fs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", fs.Table, err)
	}
	return records, nil
}

// FindByID fetches a record by primary key. sql.ErrNoRows is returned unwrapped.
func (r *SurveyRepository) FindByID(ctx context.Context, kind models.RecordKind, id string) (*models.SurveyRecord, error) {
	fs, err := fieldSet(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectColumns(fs), fs.Table)
	records, err := r.query(ctx, fs, query, id)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	if len(records) == 0 {
		return nil, sql.ErrNoRows
	}
	return &records[0], nil
}

func (r *SurveyRepository) query(ctx context.Context, fs models.FieldSet, query string, args ...interface{}) ([]models.SurveyRecord, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.SurveyRecord, 0)
	for rows.Next() {
		raw := make(map[string]interface{})
		if err := rows.MapScan(raw); err != nil {
			return nil, err
		}
		records = append(records, recordFromRow(fs, raw))
	}
	return records, rows.Err()
}

func recordFromRow(fs models.FieldSet, raw map[string]interface{}) models.SurveyRecord {
	rec := models.NewSurveyRecord(fs.Kind, asString(raw[models.IDField]))
	rec.ID = asString(raw["id"])
	for _, f := range fs.Fields {
		if f.Class == models.ClassBoolean {
			rec.Flags[f.Name] = asBool(raw[f.Name])
			continue
		}
		rec.Text[f.Name] = asString(raw[f.Name])
	}
	rec.CreatedAt = asTime(raw["created_at"])
	rec.UpdatedAt = asTime(raw["updated_at"])
	return *rec
}

func selectColumns(fs models.FieldSet) string {
	cols := append([]string{"id", models.IDField}, fs.Columns()...)
	return strings.Join(append(cols, "created_at", "updated_at"), ", ")
}

// surveyWhere renders filter as a WHERE clause. Filters on columns the kind
// does not have are skipped.
func surveyWhere(fs models.FieldSet, filter models.SurveyFilter, conds ...Condition) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	eq := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	exact := []struct {
		column string
		value  string
	}{
		{"region", filter.Region},
		{"district", filter.District},
		{"school", filter.School},
		{"age_group", filter.AgeGroup},
		{"education_level", filter.EducationLevel},
		{"employment", filter.Employment},
	}
	for _, e := range exact {
		if e.value != "" && fs.Has(e.column) {
			eq(e.column, e.value)
		}
	}
	if filter.Gender != "" {
		args = append(args, strings.ToLower(filter.Gender))
		conditions = append(conditions, fmt.Sprintf("LOWER(gender) = $%d", len(args)))
	}
	if filter.Disability != nil && fs.Has("disability_status") {
		eq("disability_status", *filter.Disability)
	}
	if filter.Search != "" {
		args = append(args, escapeLike(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("id_number LIKE $%d", len(args)))
	}
	for _, c := range conds {
		if fs.Has(c.Column) {
			eq(c.Column, c.Value)
		}
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func placeholders(from, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(out, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case []byte:
		return string(t) == "t" || string(t) == "true"
	case string:
		return t == "t" || t == "true"
	case int64:
		return t != 0
	}
	return false
}

func asTime(v interface{}) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}

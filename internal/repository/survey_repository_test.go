package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawe-tz/mne-api/internal/models"
)

func newSQLMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func anyArgs(n int) []driver.Value {
	out := make([]driver.Value, n)
	for i := range out {
		out[i] = sqlmock.AnyArg()
	}
	return out
}

func TestSurveyRepositoryFindIDByIDNumber(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM teachers WHERE id_number = $1 LIMIT 1")).
		WithArgs("T001").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("uuid-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM teachers WHERE id_number = $1 LIMIT 1")).
		WithArgs("T404").
		WillReturnError(sql.ErrNoRows)

	id, found, err := repo.FindIDByIDNumber(context.Background(), models.KindTeacher, "T001")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "uuid-1", id)

	_, found, err = repo.FindIDByIDNumber(context.Background(), models.KindTeacher, "T404")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepositoryCreateUsesFieldSetColumns(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	rec := models.NewSurveyRecord(models.KindStudent, "S001")
	rec.Text["region"] = "Arusha"
	rec.Flags["experienced_vac"] = true

	args := append([]driver.Value{sqlmock.AnyArg(), "S001", "Arusha"}, anyArgs(4)...)
	args = append(args, false, false, true)
	args = append(args, anyArgs(5)...)
	args = append(args, sqlmock.AnyArg(), sqlmock.AnyArg())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students (id, id_number, region, district, school, gender, age_group, disability_status, knowledge_on_violence, experienced_vac, forms_of_violence, perpetrators, vulnerable_places, reporting_violence, effectiveness_reporting_system, created_at, updated_at) VALUES ($1, $2, $3")).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepositoryUpdateOverwritesAllFields(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	fs, _ := models.FieldSetFor(models.KindParent)
	rec := models.NewSurveyRecord(models.KindParent, "P1")
	rec.Text["employment"] = "Farmer"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE parents SET region = $1, district = $2")).
		WithArgs(anyArgs(len(fs.Fields) + 2)...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "uuid-9", rec))
	assert.Equal(t, "uuid-9", rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepositoryCreateWrapsDriverError(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	mock.ExpectExec("INSERT INTO teachers").WillReturnError(errors.New("duplicate key"))
	err := repo.Create(context.Background(), models.NewSurveyRecord(models.KindTeacher, "T1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create teacher: duplicate key")
}

func TestSurveyRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	disabled := true
	filter := models.SurveyFilter{Region: "Arusha", Gender: "FEMALE", Disability: &disabled, Search: "S_1", Page: 2, PageSize: 500}

	fs, _ := models.FieldSetFor(models.KindStudent)
	cols := append([]string{"id", "id_number"}, fs.Columns()...)
	cols = append(cols, "created_at", "updated_at")
	now := time.Now()
	rows := sqlmock.NewRows(cols).
		AddRow("uuid-1", "S_1a", "Arusha", "Arumeru", "Kisimiri", "Female", "10-14", true, false, true, "Bullying", "Peer", "Toilets", false, "", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE 1=1 AND region = $1 AND LOWER(gender) = $2 AND disability_status = $3 AND id_number LIKE $4 ORDER BY id_number ASC, created_at ASC LIMIT 100 OFFSET 100")).
		WithArgs("Arusha", "female", true, `S\_1%`).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1 AND region = $1")).
		WithArgs("Arusha", "female", true, `S\_1%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(101))

	records, total, err := repo.List(context.Background(), models.KindStudent, filter)
	require.NoError(t, err)
	assert.Equal(t, 101, total)
	require.Len(t, records, 1)
	assert.Equal(t, "S_1a", records[0].IDNumber)
	assert.Equal(t, "Kisimiri", records[0].Text["school"])
	assert.True(t, records[0].Flags["experienced_vac"])
	assert.False(t, records[0].Flags["reporting_violence"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepositoryListSkipsForeignFilters(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	disabled := false
	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE 1=1 AND education_level = $1 ORDER BY id_number ASC, created_at ASC LIMIT 10 OFFSET 0")).
		WithArgs("Diploma").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM teachers WHERE 1=1 AND education_level = $1")).
		WithArgs("Diploma").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	records, total, err := repo.List(context.Background(), models.KindTeacher, models.SurveyFilter{EducationLevel: "Diploma", Employment: "Farmer", Disability: &disabled})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveyRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM parents WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), models.KindParent, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

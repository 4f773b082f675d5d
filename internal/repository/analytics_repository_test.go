package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawe-tz/mne-api/internal/models"
)

func TestAnalyticsRepositoryGroupByWithCondition(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(CAST(gender AS TEXT), '') AS label, COUNT(*) AS count FROM students WHERE 1=1 AND experienced_vac = $1 GROUP BY gender ORDER BY count DESC, label ASC")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"label", "count"}).AddRow("Female", 3).AddRow("", 1))

	groups, err := repo.GroupBy(context.Background(), models.KindStudent, "gender", models.SurveyFilter{}, Condition{Column: "experienced_vac", Value: true})
	require.NoError(t, err)
	assert.Equal(t, []models.GroupCount{{Label: "Female", Count: 3}, {Label: "", Count: 1}}, groups)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryGroupByRejectsUnknownColumn(t *testing.T) {
	db, _, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	_, err := repo.GroupBy(context.Background(), models.KindTeacher, "perpetrators; DROP TABLE teachers", models.SurveyFilter{})
	assert.Error(t, err)
}

func TestAnalyticsRepositoryCount(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM parents WHERE 1=1 AND district = $1 AND reporting_violence = $2")).
		WithArgs("Ilala", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.Count(context.Background(), models.KindParent, models.SurveyFilter{District: "Ilala"}, Condition{Column: "reporting_violence", Value: true})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryDistinct(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT district FROM students WHERE 1=1 AND region = $1 AND district <> '' ORDER BY district ASC")).
		WithArgs("Arusha").
		WillReturnRows(sqlmock.NewRows([]string{"district"}).AddRow("Arumeru").AddRow("Karatu"))

	values, err := repo.Distinct(context.Background(), models.KindStudent, "district", Condition{Column: "region", Value: "Arusha"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Arumeru", "Karatu"}, values)

	_, err = repo.Distinct(context.Background(), models.KindStudent, "experienced_vac")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

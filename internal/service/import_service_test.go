package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/models"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
)

type importerStub struct {
	summary *models.ImportSummary
	err     error
	calls   int
}

func (s *importerStub) Import(ctx context.Context, actor models.Actor, data []byte) (*models.ImportSummary, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := *s.summary
	out.Actor = actor
	return &out, nil
}

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func sampleSummary() *models.ImportSummary {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return &models.ImportSummary{
		ImportID:   "imp-1",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Sheets: []models.SheetSummary{
			{Kind: models.KindStudent, Sheet: "Students", Rows: 3, Created: 2, Updated: 1},
			{Kind: models.KindParent, Sheet: "Parents", Rows: 1, Created: 1},
		},
		IgnoredSheets: []string{"Notes"},
	}
}

func TestImportServiceRecordsAuditAndInvalidatesCache(t *testing.T) {
	importer := &importerStub{summary: sampleSummary()}
	audit := &auditStub{}
	cacheRepo := newMemCache()
	cacheRepo.entries["dashboard"] = []byte(`{}`)
	metrics := NewMetricsService()
	svc := NewImportService(importer, audit, NewCacheService(cacheRepo, metrics, time.Minute, nil, true), metrics, 1024, zap.NewNop())

	summary, err := svc.Import(context.Background(), ImportRequest{
		Actor:    models.Actor{UserID: "u1", Role: models.RoleDataEntry},
		Filename: "survey.xlsx",
		Data:     []byte("PK"),
		IP:       "127.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "survey.xlsx", summary.Filename)
	assert.Equal(t, 4, summary.TotalRows())
	assert.Empty(t, cacheRepo.entries)

	require.Len(t, audit.logs, 1)
	entry := audit.logs[0]
	assert.Equal(t, models.AuditActionSurveyImport, entry.Action)
	assert.Equal(t, "imp-1", *entry.ResourceID)
	assert.Equal(t, "u1", *entry.UserID)
	assert.Equal(t, "127.0.0.1", entry.IPAddress)
	var stored models.ImportSummary
	require.NoError(t, json.Unmarshal(entry.NewValues, &stored))
	assert.Equal(t, []string{"Notes"}, stored.IgnoredSheets)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.ImportsTotal)
	assert.Equal(t, uint64(4), snap.ImportedRowsTotal)
}

func TestImportServiceRejectsEmptyAndOversizedUploads(t *testing.T) {
	importer := &importerStub{summary: sampleSummary()}
	svc := NewImportService(importer, nil, nil, nil, 4, nil)

	_, err := svc.Import(context.Background(), ImportRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Import(context.Background(), ImportRequest{Data: []byte("too large")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)
	assert.Zero(t, importer.calls)
}

func TestImportServiceFailureStillInvalidatesCache(t *testing.T) {
	importer := &importerStub{err: appErrors.Clone(appErrors.ErrMalformedWorkbook, "not a workbook")}
	audit := &auditStub{}
	cacheRepo := newMemCache()
	cacheRepo.entries["rates"] = []byte(`{}`)
	svc := NewImportService(importer, audit, NewCacheService(cacheRepo, nil, time.Minute, nil, true), nil, 0, nil)

	_, err := svc.Import(context.Background(), ImportRequest{Data: []byte("garbage")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMalformedWorkbook.Code, appErrors.FromError(err).Code)
	assert.Empty(t, cacheRepo.entries)
	assert.Empty(t, audit.logs)
}

func TestImportServiceAuditFailureIsNotFatal(t *testing.T) {
	importer := &importerStub{summary: sampleSummary()}
	audit := &auditStub{err: errors.New("audit table missing")}
	svc := NewImportService(importer, audit, nil, nil, 0, nil)

	summary, err := svc.Import(context.Background(), ImportRequest{Data: []byte("PK")})
	require.NoError(t, err)
	assert.Equal(t, "imp-1", summary.ImportID)
}

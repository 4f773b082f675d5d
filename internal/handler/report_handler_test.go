package handler

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawe-tz/mne-api/internal/dto"
	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/service"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
)

type fakeReportSrv struct {
	lastReq   dto.ReportRequest
	lastActor models.Actor
	lastID    string
	download  *service.ReportDownload
	err       error
}

func (f *fakeReportSrv) CreateJob(_ context.Context, req dto.ReportRequest, actor models.Actor) (*dto.ReportJobResponse, error) {
	f.lastReq, f.lastActor = req, actor
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued}, nil
}

func (f *fakeReportSrv) GetStatus(_ context.Context, id string, actor models.Actor) (*dto.ReportStatusResponse, error) {
	f.lastID, f.lastActor = id, actor
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ReportStatusResponse{ID: id, Status: models.ReportStatusFinished, Progress: 100}, nil
}

func (f *fakeReportSrv) ResolveDownload(_ context.Context, token string) (*service.ReportDownload, error) {
	f.lastID = token
	if f.err != nil {
		return nil, f.err
	}
	return f.download, nil
}

func TestReportHandlerGenerate(t *testing.T) {
	svc := &fakeReportSrv{}
	handler := NewReportHandler(svc)
	body := bytes.NewBufferString(`{"type":"students","format":"csv","filters":{"region":"Arusha"}}`)
	c, rec := newTestContext(http.MethodPost, "/reports/generate", body)
	c.Request.Header.Set("Content-Type", "application/json")
	withClaims(c, "viewer-1", models.RoleViewer)

	handler.Generate(c)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, models.ReportTypeStudents, svc.lastReq.Type)
	assert.Equal(t, "Arusha", svc.lastReq.Filters.Region)
	assert.Equal(t, "viewer-1", svc.lastActor.UserID)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"id":"job-1"`)
}

func TestReportHandlerGenerateBadJSON(t *testing.T) {
	handler := NewReportHandler(&fakeReportSrv{})
	c, rec := newTestContext(http.MethodPost, "/reports/generate", bytes.NewBufferString(`{`))
	c.Request.Header.Set("Content-Type", "application/json")
	withClaims(c, "viewer-1", models.RoleViewer)

	handler.Generate(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerStatusForbidden(t *testing.T) {
	svc := &fakeReportSrv{err: appErrors.Clone(appErrors.ErrForbidden, "not your job")}
	handler := NewReportHandler(svc)
	c, rec := newTestContext(http.MethodGet, "/reports/status/job-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-9"}}
	withClaims(c, "viewer-2", models.RoleViewer)

	handler.Status(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "job-9", svc.lastID)
}

func TestReportHandlerDownloadStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students_job-1.csv")
	require.NoError(t, os.WriteFile(path, []byte("id_number\nS1\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	svc := &fakeReportSrv{download: &service.ReportDownload{
		File:      file,
		Filename:  "students_job-1.csv",
		Format:    models.ReportFormat("csv"),
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	handler := NewReportHandler(svc)
	c, rec := newTestContext(http.MethodGet, "/export/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", svc.lastID)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="students_job-1.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "id_number\nS1\n", rec.Body.String())
}

func TestReportHandlerDownloadInvalidToken(t *testing.T) {
	handler := NewReportHandler(&fakeReportSrv{err: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})
	c, rec := newTestContext(http.MethodGet, "/export/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

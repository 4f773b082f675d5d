package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/pkg/export"
	"github.com/fawe-tz/mne-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type tokenSigner interface {
	Sign(jobID, relPath string) (string, time.Time, error)
	Verify(token string) (storage.SignedToken, error)
}

type violenceDocumenter interface {
	Document(ctx context.Context) (export.Report, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report documents for jobs and persists the rendered files.
type ExportService struct {
	surveys  surveyReader
	violence violenceDocumenter
	storage  fileStorage
	signer   tokenSigner
	logger   *zap.Logger
	cfg      ExportConfig
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(surveys surveyReader, violence violenceDocumenter, storage fileStorage, signer tokenSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		surveys:  surveys,
		violence: violence,
		storage:  storage,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate renders the job's document, stores it and signs a download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	format := export.Format(job.Params.Format)
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, err
	}
	doc, err := s.buildDocument(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}

	relPath, err := s.storage.Save(s.buildFilename(job, format), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Sign(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Debug("report rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string) (storage.SignedToken, error) {
	return s.signer.Verify(token)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDocument(ctx context.Context, job *models.ReportJob) (export.Report, error) {
	if job.Type == models.ReportTypeViolence {
		return s.violence.Document(ctx)
	}
	kind, ok := job.Type.SurveyKind()
	if !ok {
		return export.Report{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
	fs, _ := models.FieldSetFor(kind)
	records, err := s.surveys.ListAll(ctx, kind, job.Params.Filters)
	if err != nil {
		return export.Report{}, err
	}
	return export.Single(fmt.Sprintf("%s Survey Report", titleKind(kind)), SurveyDataset(fs, records)), nil
}

func (s *ExportService) buildFilename(job *models.ReportJob, format export.Format) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s.%s", timestamp[:8], job.Type, timestamp, format.Extension())
}

package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/models"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
)

type workbookImporter interface {
	Import(ctx context.Context, actor models.Actor, data []byte) (*models.ImportSummary, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ImportRequest carries an uploaded workbook and request metadata.
type ImportRequest struct {
	Actor     models.Actor
	Filename  string
	Data      []byte
	IP        string
	UserAgent string
}

// ImportService runs workbook imports on behalf of an authenticated caller.
type ImportService struct {
	importer workbookImporter
	audit    auditWriter
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	maxBytes int64
}

// NewImportService constructs an ImportService. maxBytes <= 0 disables the size check.
func NewImportService(importer workbookImporter, audit auditWriter, cache *CacheService, metrics *MetricsService, maxBytes int64, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{importer: importer, audit: audit, cache: cache, metrics: metrics, maxBytes: maxBytes, logger: logger}
}

// Import processes the workbook synchronously. Rows written before a
// persistence failure stay committed.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (*models.ImportSummary, error) {
	if len(req.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "excel_file is empty")
	}
	if s.maxBytes > 0 && int64(len(req.Data)) > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "workbook exceeds upload limit")
	}

	summary, err := s.importer.Import(ctx, req.Actor, req.Data)
	if err != nil {
		s.logger.Warn("survey import failed",
			zap.String("user_id", req.Actor.UserID),
			zap.String("filename", req.Filename),
			zap.Error(err))
		// earlier rows may be committed already
		s.invalidate(ctx)
		return nil, err
	}
	summary.Filename = req.Filename

	s.metrics.ObserveImport(summary)
	s.invalidate(ctx)
	s.record(ctx, req, summary)

	s.logger.Info("survey import finished",
		zap.String("import_id", summary.ImportID),
		zap.String("user_id", req.Actor.UserID),
		zap.String("filename", req.Filename),
		zap.Int("rows", summary.TotalRows()),
		zap.Strings("ignored_sheets", summary.IgnoredSheets),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary, nil
}

func (s *ImportService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "*"); err != nil {
		s.logger.Warn("failed to invalidate cache after import", zap.Error(err))
	}
}

func (s *ImportService) record(ctx context.Context, req ImportRequest, summary *models.ImportSummary) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		s.logger.Warn("failed to encode import summary", zap.Error(err))
		return
	}
	var userID *string
	if req.Actor.UserID != "" {
		userID = &req.Actor.UserID
	}
	importID := summary.ImportID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     models.AuditActionSurveyImport,
		Resource:   "survey_import",
		ResourceID: &importID,
		NewValues:  payload,
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record import audit log", zap.Error(err))
	}
}

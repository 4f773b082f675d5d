package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/dto"
	"github.com/fawe-tz/mne-api/internal/models"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
)

var proofExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".csv": true, ".png": true, ".jpg": true, ".jpeg": true, ".txt": true,
}

type indicatorStore interface {
	List(ctx context.Context, filter models.IndicatorFilter) ([]models.Indicator, int, error)
	FindByID(ctx context.Context, id string) (*models.Indicator, error)
	Create(ctx context.Context, item *models.Indicator) error
	Update(ctx context.Context, item *models.Indicator) error
	Delete(ctx context.Context, id string) error
}

type proofStorage interface {
	SaveStream(name string, r io.Reader, limit int64) (string, int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

// IndicatorService manages M&E indicators and their proof documents.
type IndicatorService struct {
	repo      indicatorStore
	storage   proofStorage
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	maxProof  int64
}

// NewIndicatorService constructs an IndicatorService.
func NewIndicatorService(repo indicatorStore, storage proofStorage, audit auditWriter, validate *validator.Validate, maxProof int64, logger *zap.Logger) *IndicatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if maxProof <= 0 {
		maxProof = 10 * 1024 * 1024
	}
	return &IndicatorService{repo: repo, storage: storage, audit: audit, validator: validate, maxProof: maxProof, logger: logger}
}

// List returns a page of indicators.
func (s *IndicatorService) List(ctx context.Context, filter models.IndicatorFilter) ([]dto.IndicatorResponse, *models.Pagination, error) {
	if filter.Type != "" && !validIndicatorType(filter.Type) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown indicator type")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list indicators")
	}
	out := make([]dto.IndicatorResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.NewIndicatorResponse(item))
	}
	page, size := normalizePage(filter.Page, filter.PageSize, 20, 100)
	return out, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one indicator.
func (s *IndicatorService) Get(ctx context.Context, id string) (*dto.IndicatorResponse, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewIndicatorResponse(*item)
	return &resp, nil
}

// Create validates and stores a new indicator.
func (s *IndicatorService) Create(ctx context.Context, actor models.Actor, req dto.IndicatorRequest) (*dto.IndicatorResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid indicator payload")
	}
	item := &models.Indicator{
		Name:        strings.TrimSpace(req.Name),
		Type:        req.Type,
		TargetValue: req.TargetValue,
		ActualValue: req.ActualValue,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create indicator")
	}
	s.record(ctx, actor, models.AuditActionIndicatorCreate, item.ID, nil, item)
	resp := dto.NewIndicatorResponse(*item)
	return &resp, nil
}

// Update replaces the editable fields of an indicator.
func (s *IndicatorService) Update(ctx context.Context, actor models.Actor, id string, req dto.IndicatorRequest) (*dto.IndicatorResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid indicator payload")
	}
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *item
	item.Name = strings.TrimSpace(req.Name)
	item.Type = req.Type
	item.TargetValue = req.TargetValue
	item.ActualValue = req.ActualValue
	item.Description = req.Description
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "indicator not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update indicator")
	}
	s.record(ctx, actor, models.AuditActionIndicatorUpdate, item.ID, &before, item)
	resp := dto.NewIndicatorResponse(*item)
	return &resp, nil
}

// Delete removes an indicator and its proof document.
func (s *IndicatorService) Delete(ctx context.Context, actor models.Actor, id string) error {
	item, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "indicator not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete indicator")
	}
	if item.ProofDocument != nil {
		if err := s.storage.Delete(*item.ProofDocument); err != nil {
			s.logger.Warn("failed to delete proof document", zap.String("indicator_id", id), zap.Error(err))
		}
	}
	s.record(ctx, actor, models.AuditActionIndicatorDelete, id, item, nil)
	return nil
}

// AttachProof stores an uploaded proof document and links it to the indicator,
// replacing any previous document.
func (s *IndicatorService) AttachProof(ctx context.Context, actor models.Actor, id, filename string, r io.Reader) (*dto.IndicatorResponse, error) {
	ext := strings.ToLower(path.Ext(filename))
	if !proofExtensions[ext] {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("proof documents of type %q are not accepted", ext))
	}
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("indicators/%s/%s%s", id, uuid.NewString(), ext)
	stored, n, err := s.storage.SaveStream(name, r, s.maxProof+1)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store proof document")
	}
	if n > s.maxProof {
		_ = s.storage.Delete(stored)
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "proof document exceeds upload limit")
	}
	if n == 0 {
		_ = s.storage.Delete(stored)
		return nil, appErrors.Clone(appErrors.ErrValidation, "proof document is empty")
	}

	before := *item
	previous := item.ProofDocument
	item.ProofDocument = &stored
	if err := s.repo.Update(ctx, item); err != nil {
		_ = s.storage.Delete(stored)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link proof document")
	}
	if previous != nil && *previous != stored {
		if err := s.storage.Delete(*previous); err != nil {
			s.logger.Warn("failed to delete replaced proof document", zap.String("indicator_id", id), zap.Error(err))
		}
	}
	s.record(ctx, actor, models.AuditActionIndicatorUpdate, id, &before, item)
	resp := dto.NewIndicatorResponse(*item)
	return &resp, nil
}

// OpenProof opens the indicator's proof document.
func (s *IndicatorService) OpenProof(ctx context.Context, id string) (*os.File, string, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if item.ProofDocument == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "indicator has no proof document")
	}
	file, err := s.storage.Open(*item.ProofDocument)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "proof document missing")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open proof document")
	}
	return file, path.Base(*item.ProofDocument), nil
}

func (s *IndicatorService) find(ctx context.Context, id string) (*models.Indicator, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "indicator not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load indicator")
	}
	return item, nil
}

func (s *IndicatorService) record(ctx context.Context, actor models.Actor, action, id string, before, after *models.Indicator) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "indicator",
		ResourceID: &id,
		CreatedAt:  time.Now().UTC(),
	}
	if actor.UserID != "" {
		entry.UserID = &actor.UserID
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record indicator audit log", zap.String("action", action), zap.Error(err))
	}
}

func validIndicatorType(t models.IndicatorType) bool {
	switch t {
	case models.IndicatorInput, models.IndicatorOutput, models.IndicatorOutcome, models.IndicatorImpact:
		return true
	}
	return false
}

package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/service"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/export"
	"github.com/fawe-tz/mne-api/pkg/response"
)

type surveyService interface {
	List(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter) ([]models.SurveyRecord, *models.Pagination, error)
	Get(ctx context.Context, kind models.RecordKind, id string) (*models.SurveyRecord, error)
	Export(ctx context.Context, kind models.RecordKind, filter models.SurveyFilter, format export.Format) (*service.ExportFile, error)
	Districts(ctx context.Context, region string) ([]string, error)
	Schools(ctx context.Context, district string) ([]string, error)
	EducationLevels(ctx context.Context) ([]string, error)
	Employment(ctx context.Context) ([]string, error)
}

// SurveyHandler exposes imported survey records and lookup lists.
type SurveyHandler struct {
	service surveyService
}

// NewSurveyHandler constructs the handler.
func NewSurveyHandler(svc surveyService) *SurveyHandler {
	return &SurveyHandler{service: svc}
}

// List godoc
// @Summary List survey records
// @Tags Surveys
// @Produce json
// @Param kind path string true "students, teachers or parents"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Param region query string false "Region"
// @Param district query string false "District"
// @Param school query string false "School"
// @Param gender query string false "Gender"
// @Param age_group query string false "Age group"
// @Param disability_status query bool false "Disability (students)"
// @Param search query string false "ID number prefix"
// @Success 200 {object} response.Envelope
// @Router /surveys/{kind} [get]
func (h *SurveyHandler) List(c *gin.Context) {
	kind, ok := parseRecordKind(c)
	if !ok {
		return
	}
	filter, err := parseSurveyFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, pagination, err := h.service.List(c.Request.Context(), kind, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get survey record
// @Tags Surveys
// @Produce json
// @Param kind path string true "students, teachers or parents"
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /surveys/{kind}/{id} [get]
func (h *SurveyHandler) Get(c *gin.Context) {
	kind, ok := parseRecordKind(c)
	if !ok {
		return
	}
	record, err := h.service.Get(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Export godoc
// @Summary Export filtered survey records
// @Tags Surveys
// @Produce text/csv
// @Param kind path string true "students, teachers or parents"
// @Param format query string false "csv (default), pdf or xlsx"
// @Success 200 {file} binary
// @Router /surveys/{kind}/export [get]
func (h *SurveyHandler) Export(c *gin.Context) {
	kind, ok := parseRecordKind(c)
	if !ok {
		return
	}
	filter, err := parseSurveyFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := export.FormatCSV
	if raw := strings.TrimSpace(c.Query("format")); raw != "" {
		if format, err = export.ParseFormat(raw); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
	}
	file, err := h.service.Export(c.Request.Context(), kind, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// Districts godoc
// @Summary Districts of a region
// @Tags Lookups
// @Produce json
// @Param region query string true "Region"
// @Success 200 {object} response.Envelope
// @Router /lookups/districts [get]
func (h *SurveyHandler) Districts(c *gin.Context) {
	h.lookup(c, func(ctx context.Context) ([]string, error) {
		return h.service.Districts(ctx, strings.TrimSpace(c.Query("region")))
	})
}

// Schools godoc
// @Summary Schools of a district
// @Tags Lookups
// @Produce json
// @Param district query string true "District"
// @Success 200 {object} response.Envelope
// @Router /lookups/schools [get]
func (h *SurveyHandler) Schools(c *gin.Context) {
	h.lookup(c, func(ctx context.Context) ([]string, error) {
		return h.service.Schools(ctx, strings.TrimSpace(c.Query("district")))
	})
}

// EducationLevels godoc
// @Summary Teacher and parent education levels
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lookups/education-levels [get]
func (h *SurveyHandler) EducationLevels(c *gin.Context) {
	h.lookup(c, h.service.EducationLevels)
}

// Employment godoc
// @Summary Parent employment values
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lookups/employment [get]
func (h *SurveyHandler) Employment(c *gin.Context) {
	h.lookup(c, h.service.Employment)
}

func (h *SurveyHandler) lookup(c *gin.Context, fn func(ctx context.Context) ([]string, error)) {
	values, err := fn(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}

package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/service"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/export"
	"github.com/fawe-tz/mne-api/pkg/response"
)

type violenceReportService interface {
	Build(ctx context.Context) (*models.ViolenceReport, bool, error)
	Summary(ctx context.Context) (*models.ExecutiveSummary, error)
	Rates(ctx context.Context) (*models.SurveyRates, error)
	Export(ctx context.Context, format export.Format) (*service.ExportFile, error)
	Policy(ctx context.Context) (*models.PolicyReport, error)
	PolicyExport(ctx context.Context, format export.Format) (*service.ExportFile, error)
}

// ViolenceReportHandler serves the violence-against-children report.
type ViolenceReportHandler struct {
	service violenceReportService
}

// NewViolenceReportHandler constructs the handler.
func NewViolenceReportHandler(svc violenceReportService) *ViolenceReportHandler {
	return &ViolenceReportHandler{service: svc}
}

// Report godoc
// @Summary Violence report
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/violence [get]
func (h *ViolenceReportHandler) Report(c *gin.Context) {
	start := time.Now()
	report, cacheHit, err := h.service.Build(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, http.StatusOK, report, cacheHit, start)
}

// Export godoc
// @Summary Download violence report
// @Tags Reports
// @Produce application/pdf
// @Param format query string true "pdf, docx, xlsx or csv"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /reports/violence/export [get]
func (h *ViolenceReportHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(strings.TrimSpace(c.Query("format")))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	file, err := h.service.Export(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// Summary godoc
// @Summary Executive summary of the violence report
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/violence/summary [get]
func (h *ViolenceReportHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Rates godoc
// @Summary Awareness and reporting rates
// @Tags Indicators
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /indicators/rates [get]
func (h *ViolenceReportHandler) Rates(c *gin.Context) {
	rates, err := h.service.Rates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}

// Policy godoc
// @Summary Policy brief linking findings to gaps and recommendations
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/policy [get]
func (h *ViolenceReportHandler) Policy(c *gin.Context) {
	policy, err := h.service.Policy(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// PolicyExport godoc
// @Summary Download the policy brief
// @Tags Reports
// @Produce application/pdf
// @Param format query string false "pdf (default), docx, xlsx or csv"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /reports/policy/export [get]
func (h *ViolenceReportHandler) PolicyExport(c *gin.Context) {
	format := export.FormatPDF
	if raw := strings.TrimSpace(c.Query("format")); raw != "" {
		parsed, err := export.ParseFormat(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
		format = parsed
	}
	file, err := h.service.PolicyExport(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/service"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/response"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type importService interface {
	Import(ctx context.Context, req service.ImportRequest) (*models.ImportSummary, error)
}

// ImportHandler accepts survey workbook uploads.
type ImportHandler struct {
	service  importService
	template func() ([]byte, error)
	maxBytes int64
}

// NewImportHandler constructs the handler. template renders the blank upload workbook.
func NewImportHandler(svc importService, template func() ([]byte, error), maxBytes int64) *ImportHandler {
	return &ImportHandler{service: svc, template: template, maxBytes: maxBytes}
}

// Upload godoc
// @Summary Import survey workbook
// @Description Upserts student, teacher and parent records from an xlsx or xls workbook
// @Tags Imports
// @Accept mpfd
// @Produce json
// @Param excel_file formData file true "Workbook"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /imports [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	header, err := c.FormFile("excel_file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "excel_file is required"))
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "workbook exceeds upload limit"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read upload"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read upload"))
		return
	}

	summary, err := h.service.Import(c.Request.Context(), service.ImportRequest{
		Actor:     actor,
		Filename:  header.Filename,
		Data:      data,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, summary)
}

// Template godoc
// @Summary Download import template
// @Tags Imports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /imports/template [get]
func (h *ImportHandler) Template(c *gin.Context) {
	payload, err := h.template()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template"))
		return
	}
	response.Attachment(c, "survey_import_template.xlsx", workbookContentType, payload)
}

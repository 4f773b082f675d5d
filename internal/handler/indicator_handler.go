package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fawe-tz/mne-api/internal/dto"
	"github.com/fawe-tz/mne-api/internal/models"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/response"
)

type indicatorService interface {
	List(ctx context.Context, filter models.IndicatorFilter) ([]dto.IndicatorResponse, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.IndicatorResponse, error)
	Create(ctx context.Context, actor models.Actor, req dto.IndicatorRequest) (*dto.IndicatorResponse, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.IndicatorRequest) (*dto.IndicatorResponse, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	AttachProof(ctx context.Context, actor models.Actor, id, filename string, r io.Reader) (*dto.IndicatorResponse, error)
	OpenProof(ctx context.Context, id string) (*os.File, string, error)
}

// IndicatorHandler manages monitoring indicators.
type IndicatorHandler struct {
	service indicatorService
}

// NewIndicatorHandler constructs the handler.
func NewIndicatorHandler(svc indicatorService) *IndicatorHandler {
	return &IndicatorHandler{service: svc}
}

// List godoc
// @Summary List indicators
// @Tags Indicators
// @Produce json
// @Param type query string false "input, output, outcome or impact"
// @Param search query string false "Name contains"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /indicators [get]
func (h *IndicatorHandler) List(c *gin.Context) {
	filter := models.IndicatorFilter{
		Type:     models.IndicatorType(strings.ToLower(strings.TrimSpace(c.Query("type")))),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get indicator
// @Tags Indicators
// @Produce json
// @Param id path string true "Indicator ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /indicators/{id} [get]
func (h *IndicatorHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create indicator
// @Tags Indicators
// @Accept json
// @Produce json
// @Param payload body dto.IndicatorRequest true "Indicator"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /indicators [post]
func (h *IndicatorHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.IndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update indicator
// @Tags Indicators
// @Accept json
// @Produce json
// @Param id path string true "Indicator ID"
// @Param payload body dto.IndicatorRequest true "Indicator"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /indicators/{id} [put]
func (h *IndicatorHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.IndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete indicator
// @Tags Indicators
// @Param id path string true "Indicator ID"
// @Success 204
// @Router /indicators/{id} [delete]
func (h *IndicatorHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadProof godoc
// @Summary Attach proof document
// @Tags Indicators
// @Accept mpfd
// @Produce json
// @Param id path string true "Indicator ID"
// @Param proof_document formData file true "Proof document"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /indicators/{id}/proof [post]
func (h *IndicatorHandler) UploadProof(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("proof_document")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "proof_document is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read upload"))
		return
	}
	defer file.Close()

	item, err := h.service.AttachProof(c.Request.Context(), actor, c.Param("id"), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DownloadProof godoc
// @Summary Download proof document
// @Tags Indicators
// @Param id path string true "Indicator ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /indicators/{id}/proof [get]
func (h *IndicatorHandler) DownloadProof(c *gin.Context) {
	file, name, err := h.service.OpenProof(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamFile(c, file, name, "")
}

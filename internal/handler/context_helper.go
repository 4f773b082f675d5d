package handler

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fawe-tz/mne-api/internal/middleware"
	"github.com/fawe-tz/mne-api/internal/models"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/response"
)

// actorFromContext writes a 401 and returns false when no caller is authenticated.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

// parseSurveyFilter reads the shared survey query parameters. The page size
// may be given as limit or page_size.
func parseSurveyFilter(c *gin.Context) (models.SurveyFilter, error) {
	filter := models.SurveyFilter{
		Region:         strings.TrimSpace(c.Query("region")),
		District:       strings.TrimSpace(c.Query("district")),
		School:         strings.TrimSpace(c.Query("school")),
		Gender:         strings.TrimSpace(c.Query("gender")),
		AgeGroup:       strings.TrimSpace(c.Query("age_group")),
		EducationLevel: strings.TrimSpace(c.Query("education_level")),
		Employment:     strings.TrimSpace(c.Query("employment")),
		Search:         strings.TrimSpace(c.Query("search")),
		Page:           parseQueryInt(c, "page", 1),
		PageSize:       parseQueryInt(c, "limit", parseQueryInt(c, "page_size", 0)),
	}
	if raw := strings.TrimSpace(c.Query("disability_status")); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "disability_status must be true or false")
		}
		filter.Disability = &val
	}
	return filter, nil
}

func parseRecordKind(c *gin.Context) (models.RecordKind, bool) {
	kind, ok := models.ParseRecordKind(c.Param("kind"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown survey kind"))
		return "", false
	}
	return kind, true
}

// cachedJSON writes data with the cache flag and processing time in meta.
func cachedJSON(c *gin.Context, status int, data interface{}, cacheHit bool, start time.Time) {
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, status, data, nil, middleware.ResponseMeta(c, start))
}

// streamFile sends an opened file as an attachment and closes it.
func streamFile(c *gin.Context, file *os.File, filename, contentType string) {
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filename),
	})
}

package dto

import "github.com/fawe-tz/mne-api/internal/models"

// ReportRequest captures POST /reports/generate payload.
type ReportRequest struct {
	Type    models.ReportType   `json:"type" validate:"required,oneof=students teachers parents violence"`
	Format  models.ReportFormat `json:"format" validate:"required,oneof=csv pdf xlsx"`
	Filters models.SurveyFilter `json:"filters"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID         string              `json:"id"`
	Type       models.ReportType   `json:"type"`
	Status     models.ReportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	ResultURL  *string             `json:"result_url,omitempty"`
	Error      *string             `json:"error,omitempty"`
	FinishedAt *string             `json:"finished_at,omitempty"`
}

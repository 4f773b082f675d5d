package dto

import "github.com/fawe-tz/mne-api/internal/models"

// IndicatorRequest is the create/update payload for an indicator.
type IndicatorRequest struct {
	Name        string               `json:"name" validate:"required,max=255"`
	Type        models.IndicatorType `json:"indicator_type" validate:"required,oneof=input output outcome impact"`
	TargetValue int                  `json:"target_value" validate:"min=0"`
	ActualValue int                  `json:"actual_value" validate:"min=0"`
	Description string               `json:"description"`
}

// IndicatorResponse adds the derived progress to an indicator.
type IndicatorResponse struct {
	models.Indicator
	ProgressPercentage int `json:"progress_percentage"`
}

// NewIndicatorResponse wraps item.
func NewIndicatorResponse(item models.Indicator) IndicatorResponse {
	return IndicatorResponse{Indicator: item, ProgressPercentage: item.ProgressPercentage()}
}

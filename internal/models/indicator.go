package models

import "time"

// IndicatorType classifies an M&E indicator on the results chain.
type IndicatorType string

const (
	IndicatorInput   IndicatorType = "input"
	IndicatorOutput  IndicatorType = "output"
	IndicatorOutcome IndicatorType = "outcome"
	IndicatorImpact  IndicatorType = "impact"
)

// Indicator tracks progress of a programme measure against its target.
type Indicator struct {
	ID            string        `db:"id" json:"id"`
	Name          string        `db:"name" json:"name"`
	Type          IndicatorType `db:"indicator_type" json:"indicator_type"`
	TargetValue   int           `db:"target_value" json:"target_value"`
	ActualValue   int           `db:"actual_value" json:"actual_value"`
	Description   string        `db:"description" json:"description"`
	ProofDocument *string       `db:"proof_document" json:"proof_document,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// ProgressPercentage is actual/target truncated to an integer percent, or 0
// when no positive target is set.
func (i Indicator) ProgressPercentage() int {
	if i.TargetValue <= 0 {
		return 0
	}
	return int(float64(i.ActualValue) / float64(i.TargetValue) * 100)
}

// IndicatorFilter narrows indicator listings.
type IndicatorFilter struct {
	Type     IndicatorType
	Search   string
	Page     int
	PageSize int
}

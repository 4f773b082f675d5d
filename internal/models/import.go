package models

import "time"

// Actor is the explicit caller identity passed into state-changing operations.
type Actor struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	IP        string   `json:"-"`
	UserAgent string   `json:"-"`
}

// SheetSummary reports what happened to one recognized sheet.
type SheetSummary struct {
	Kind    RecordKind `json:"kind"`
	Sheet   string     `json:"sheet"`
	Rows    int        `json:"rows"`
	Created int        `json:"created"`
	Updated int        `json:"updated"`
}

// ImportSummary is returned after a workbook has been fully processed.
type ImportSummary struct {
	ImportID      string         `json:"import_id"`
	Actor         Actor          `json:"actor"`
	Filename      string         `json:"filename,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Sheets        []SheetSummary `json:"sheets"`
	IgnoredSheets []string       `json:"ignored_sheets"`
}

// TotalRows sums processed rows across sheets.
func (s *ImportSummary) TotalRows() int {
	total := 0
	for _, sh := range s.Sheets {
		total += sh.Rows
	}
	return total
}

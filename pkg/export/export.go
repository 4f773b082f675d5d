// Package export renders tabular datasets into downloadable documents.
package export

import (
	"fmt"
	"strings"
)

// Format is a downloadable document format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatDOCX Format = "docx"
)

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Section is a titled dataset within a report.
type Section struct {
	Heading string
	Data    Dataset
}

// Report is an ordered collection of sections under one title.
type Report struct {
	Title    string
	Sections []Section
}

// Single wraps a dataset as a one-section report.
func Single(title string, data Dataset) Report {
	return Report{Title: title, Sections: []Section{{Data: data}}}
}

// Renderer turns a report into document bytes.
type Renderer interface {
	Render(Report) ([]byte, error)
}

// ParseFormat validates a user supplied format string.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatPDF, FormatXLSX, FormatDOCX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/csv"
	}
}

// Extension returns the file extension for f without the dot.
func (f Format) Extension() string {
	return string(f)
}

// RendererFor returns the renderer handling f.
func RendererFor(f Format) (Renderer, error) {
	switch f {
	case FormatCSV:
		return NewCSVExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	case FormatXLSX:
		return NewXLSXExporter(), nil
	case FormatDOCX:
		return NewDOCXExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

func validate(r Report) error {
	if len(r.Sections) == 0 {
		return fmt.Errorf("report has no sections")
	}
	for _, s := range r.Sections {
		if len(s.Data.Headers) == 0 {
			return fmt.Errorf("section %q requires at least one header", s.Heading)
		}
	}
	return nil
}

func rowValues(headers []string, row map[string]string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = row[h]
	}
	return out
}

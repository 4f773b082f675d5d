package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfBodyWidth    = 190.0
	pdfPageHeight   = 297.0
	pdfBottomMargin = 15.0
	pdfLineHeight   = 5.0
)

// PDFExporter renders reports as simple bordered tables, one per section.
type PDFExporter struct {
	now func() time.Time
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{now: time.Now}
}

// Render creates a PDF document with the report title and one table per section.
func (e *PDFExporter) Render(r Report) ([]byte, error) {
	if err := validate(r); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, pdfBottomMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if r.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(r.Title), "", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 5, "Generated "+e.now().UTC().Format("2006-01-02 15:04 MST"), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	for _, section := range r.Sections {
		if section.Heading != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, tr(section.Heading), "", 1, "L", false, 0, "")
		}
		headers := section.Data.Headers
		colWidth := pdfBodyWidth / float64(len(headers))

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range headers {
			pdf.CellFormat(colWidth, 7, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, row := range section.Data.Rows {
			writeWrappedRow(pdf, colWidth, tr, rowValues(headers, row))
		}
		pdf.Ln(5)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// writeWrappedRow draws one table row, wrapping each cell onto as many lines
// as its text needs. The row moves to a new page when it would cross the
// bottom margin.
func writeWrappedRow(pdf *gofpdf.Fpdf, colWidth float64, tr func(string) string, values []string) {
	lines := make([][][]byte, len(values))
	height := 1
	for i, v := range values {
		lines[i] = pdf.SplitLines([]byte(tr(v)), colWidth-2)
		if len(lines[i]) > height {
			height = len(lines[i])
		}
	}
	rowHeight := float64(height) * pdfLineHeight
	if pdf.GetY()+rowHeight > pdfPageHeight-pdfBottomMargin {
		pdf.AddPage()
	}
	x, y := pdf.GetXY()
	for i := range values {
		left := x + float64(i)*colWidth
		pdf.Rect(left, y, colWidth, rowHeight, "D")
		for j, line := range lines[i] {
			pdf.SetXY(left+1, y+float64(j)*pdfLineHeight)
			pdf.CellFormat(colWidth-2, pdfLineHeight, string(line), "", 0, "L", false, 0, "")
		}
	}
	pdf.SetXY(x, y+rowHeight)
}

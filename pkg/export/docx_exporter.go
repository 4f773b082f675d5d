package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/fumiama/go-docx"
)

// Run sizes are in half points.
const (
	docxTitleSize   = "32"
	docxHeadingSize = "26"
	docxBodySize    = "20"
)

// DOCXExporter renders reports as Word documents: a title block followed by
// one heading and table per section.
type DOCXExporter struct {
	now func() time.Time
}

// NewDOCXExporter constructs a Word exporter.
func NewDOCXExporter() *DOCXExporter {
	return &DOCXExporter{now: time.Now}
}

// Render writes the report into an OOXML word processing document.
func (e *DOCXExporter) Render(r Report) ([]byte, error) {
	if err := validate(r); err != nil {
		return nil, err
	}
	doc := docx.New().WithDefaultTheme()

	if r.Title != "" {
		doc.AddParagraph().Justification("center").AddText(r.Title).Bold().Size(docxTitleSize)
		doc.AddParagraph().Justification("center").
			AddText("Generated " + e.now().UTC().Format("2006-01-02 15:04 MST")).Size(docxBodySize)
	}

	for _, section := range r.Sections {
		if section.Heading != "" {
			doc.AddParagraph().AddText(section.Heading).Bold().Size(docxHeadingSize)
		}
		headers := section.Data.Headers
		table := doc.AddTable(len(section.Data.Rows)+1, len(headers), 0, nil)
		for i, h := range headers {
			table.TableRows[0].TableCells[i].AddParagraph().AddText(h).Bold().Size(docxBodySize)
		}
		for r, row := range section.Data.Rows {
			for i, v := range rowValues(headers, row) {
				table.TableRows[r+1].TableCells[i].AddParagraph().AddText(v).Size(docxBodySize)
			}
		}
		doc.AddParagraph()
	}

	buf := &bytes.Buffer{}
	if _, err := doc.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

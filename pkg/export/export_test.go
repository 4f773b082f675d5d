package export

import (
	"bytes"
	"encoding/csv"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() Report {
	return Report{
		Title: "Violence Report",
		Sections: []Section{
			{Heading: "By Gender", Data: Dataset{
				Headers: []string{"gender", "count", "percentage"},
				Rows: []map[string]string{
					{"gender": "Female", "count": "3", "percentage": "60.00"},
					{"gender": "Unknown", "count": "1", "percentage": "20.00"},
				},
			}},
			{Heading: "Perpetrators", Data: Dataset{
				Headers: []string{"perpetrator", "count"},
				Rows:    []map[string]string{{"perpetrator": "Teacher, Peer", "count": "2"}},
			}},
		},
	}
}

func TestCSVExporterSections(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleReport())
	require.NoError(t, err)

	r := csv.NewReader(bytes.NewReader(out))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"By Gender"}, records[0])
	assert.Equal(t, []string{"gender", "count", "percentage"}, records[1])
	assert.Equal(t, []string{"Female", "3", "60.00"}, records[2])
	assert.Equal(t, []string{"Perpetrators"}, records[4])
	assert.Equal(t, []string{"Teacher, Peer", "2"}, records[6])
}

func TestCSVExporterSingleDataset(t *testing.T) {
	out, err := NewCSVExporter().Render(Single("", Dataset{
		Headers: []string{"id_number", "gender"},
		Rows:    []map[string]string{{"id_number": "S001"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "id_number,gender\nS001,\n", string(out))
}

func TestRenderRejectsEmptyHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Single("x", Dataset{}))
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Report{})
	assert.Error(t, err)
}

func TestPDFExporter(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleReport())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterWrapsLongCells(t *testing.T) {
	long := strings.Repeat("Establish anonymous reporting channels and follow up. ", 6)
	data := Dataset{Headers: []string{"Findings", "Policy Gaps", "Recommendations"}}
	for i := 0; i < 20; i++ {
		data.Rows = append(data.Rows, map[string]string{"Findings": long, "Policy Gaps": "short", "Recommendations": long})
	}
	out, err := NewPDFExporter().Render(Single("Policy", data))
	require.NoError(t, err)

	m := regexp.MustCompile(`/Count (\d+)`).FindSubmatch(out)
	require.NotNil(t, m)
	pages, err := strconv.Atoi(string(m[1]))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pages, 3)
}

func TestXLSXExporterOneSheetPerSection(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"By Gender", "Perpetrators"}, f.GetSheetList())
	rows, err := f.GetRows("By Gender")
	require.NoError(t, err)
	assert.Equal(t, []string{"Female", "3", "60.00"}, rows[1])
}

func TestSheetNameSanitizesAndDedupes(t *testing.T) {
	used := map[string]int{}
	assert.Equal(t, "a b", sheetName("a/b", "", 0, used))
	assert.Equal(t, "a b (2)", sheetName("a:b", "", 1, used))
	assert.Equal(t, "Sheet3", sheetName("", "", 2, used))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())

	f, err = ParseFormat("DOCX")
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", f.ContentType())

	_, err = ParseFormat("odt")
	assert.Error(t, err)
}

func TestDOCXExporterCarriesSectionsAndRows(t *testing.T) {
	out, err := NewDOCXExporter().Render(sampleReport())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("PK")))

	doc, err := docx.Parse(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)

	var paragraphs, tables []string
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			paragraphs = append(paragraphs, it.String())
		case *docx.Table:
			tables = append(tables, it.String())
		}
	}
	assert.Equal(t, "Violence Report", paragraphs[0])
	assert.Contains(t, paragraphs, "By Gender")
	assert.Contains(t, paragraphs, "Perpetrators")
	require.Len(t, tables, 2)
	assert.Contains(t, tables[0], "| Female | 3 | 60.00 |")
	assert.Contains(t, tables[1], "| Teacher, Peer | 2 |")
}

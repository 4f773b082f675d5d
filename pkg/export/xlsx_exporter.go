package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// XLSXExporter renders each report section onto its own worksheet.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the report into an OOXML workbook.
func (e *XLSXExporter) Render(r Report) ([]byte, error) {
	if err := validate(r); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	used := map[string]int{}
	for i, section := range r.Sections {
		name := sheetName(section.Heading, r.Title, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", name, err)
		}

		if err := writeRow(f, name, 1, section.Data.Headers); err != nil {
			return nil, err
		}
		last, _ := excelize.CoordinatesToCellName(len(section.Data.Headers), 1)
		if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
			return nil, fmt.Errorf("style header: %w", err)
		}
		for r, row := range section.Data.Rows {
			if err := writeRow(f, name, r+2, rowValues(section.Data.Headers, row)); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

func sheetName(heading, title string, idx int, used map[string]int) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(heading))
	if name == "" {
		name = strings.TrimSpace(sheetNameReplacer.Replace(title))
	}
	if name == "" {
		name = fmt.Sprintf("Sheet%d", idx+1)
	}
	if len([]rune(name)) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	key := strings.ToLower(name)
	if n := used[key]; n > 0 {
		suffix := fmt.Sprintf(" (%d)", n+1)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		name = string(runes) + suffix
	}
	used[key]++
	return name
}

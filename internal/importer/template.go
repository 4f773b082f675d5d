package importer

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fawe-tz/mne-api/internal/models"
)

// Template renders an empty upload workbook with one sheet per record kind
// and its canonical header row.
func Template() ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, fs := range models.FieldSets() {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", fs.Sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(fs.Sheet); err != nil {
			return nil, fmt.Errorf("add sheet %s: %w", fs.Sheet, err)
		}
		header := append([]interface{}{models.IDField}, toInterfaces(fs.Columns())...)
		if err := f.SetSheetRow(fs.Sheet, "A1", &header); err != nil {
			return nil, fmt.Errorf("write %s header: %w", fs.Sheet, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}
	return buf.Bytes(), nil
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

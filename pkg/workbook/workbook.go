// Package workbook reads spreadsheet uploads into plain string grids.
//
// Both OOXML (.xlsx) and legacy BIFF (.xls) payloads are accepted; the format
// is sniffed from the leading magic bytes rather than a file name.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Format identifies the container format of a workbook payload.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

var (
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

	// ErrUnsupportedFormat is returned for payloads that are neither xlsx nor xls.
	ErrUnsupportedFormat = errors.New("workbook: unsupported format")
	// ErrNoSheets is returned when a workbook contains no worksheets.
	ErrNoSheets = errors.New("workbook: no worksheets")
)

// Workbook is an in-memory, read-only view of every sheet in an upload.
type Workbook struct {
	format Format
	names  []string
	rows   map[string][][]string
}

// Detect sniffs the container format.
func Detect(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, ole2Magic):
		return FormatXLS, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Open parses data and loads all sheets.
func Open(data []byte) (*Workbook, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, err
	}

	var wb *Workbook
	switch format {
	case FormatXLSX:
		wb, err = openXLSX(data)
	case FormatXLS:
		wb, err = openXLS(data)
	}
	if err != nil {
		return nil, err
	}
	if len(wb.names) == 0 {
		return nil, ErrNoSheets
	}
	return wb, nil
}

// Format reports which reader decoded the workbook.
func (w *Workbook) Format() Format {
	return w.format
}

// SheetNames returns sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	out := make([]string, len(w.names))
	copy(out, w.names)
	return out
}

// Find resolves name against the sheet list ignoring case and surrounding
// whitespace. The first matching sheet wins.
func (w *Workbook) Find(name string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, sheet := range w.names {
		if strings.ToLower(strings.TrimSpace(sheet)) == want {
			return sheet, true
		}
	}
	return "", false
}

// Rows returns every row of sheet. Rows may be ragged; trailing empty cells
// are not guaranteed to be present.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	rows, ok := w.rows[sheet]
	if !ok {
		return nil, fmt.Errorf("workbook: sheet %q not found", sheet)
	}
	return rows, nil
}

func openXLSX(data []byte) (*Workbook, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = file.Close() }()

	wb := &Workbook{format: FormatXLSX, rows: make(map[string][][]string)}
	for _, name := range file.GetSheetList() {
		rows, err := file.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		wb.names = append(wb.names, name)
		wb.rows[name] = rows
	}
	return wb, nil
}

func openXLS(data []byte) (*Workbook, error) {
	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if book == nil {
		return nil, errors.New("open xls: no workbook stream")
	}

	wb := &Workbook{format: FormatXLS, rows: make(map[string][][]string)}
	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			continue
		}
		wb.names = append(wb.names, sheet.Name)
		wb.rows[sheet.Name] = xlsRows(sheet)
	}
	return wb, nil
}

// xlsRows converts a BIFF sheet to the same shape excelize.GetRows returns:
// missing rows are nil and trailing empty cells and rows are dropped.
func xlsRows(sheet *xls.WorkSheet) [][]string {
	width := 0
	raw := make([]*xls.Row, int(sheet.MaxRow)+1)
	for r := range raw {
		raw[r] = xlsRow(sheet, r)
		if raw[r] != nil && raw[r].LastCol()+1 > width {
			width = raw[r].LastCol() + 1
		}
	}

	rows := make([][]string, 0, len(raw))
	for _, row := range raw {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		// rows without a ROW record report LastCol 0, so read up to the widest row
		cells := make([]string, width)
		for c := range cells {
			cells[c] = row.Col(c)
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		rows = append(rows, cells)
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows
}

// xlsRow returns row i or nil. WorkSheet.Row dereferences the row without
// checking that it exists, which panics on gaps left by blank rows.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// Package importer turns uploaded survey workbooks into upserted student,
// teacher and parent records.
package importer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fawe-tz/mne-api/internal/models"
	appErrors "github.com/fawe-tz/mne-api/pkg/errors"
	"github.com/fawe-tz/mne-api/pkg/workbook"
)

// Store is the per-kind record store the importer upserts into.
type Store interface {
	FindIDByIDNumber(ctx context.Context, kind models.RecordKind, idNumber string) (string, bool, error)
	Create(ctx context.Context, record *models.SurveyRecord) error
	Update(ctx context.Context, id string, record *models.SurveyRecord) error
}

// Importer normalizes workbook rows and upserts them by id_number.
type Importer struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// New builds an importer over store.
func New(store Store, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, logger: logger, now: time.Now}
}

// Import processes the Students, Teachers and Parents sheets of data, in that
// order. Each kind reads the first sheet whose name matches ignoring case and
// surrounding whitespace; every other sheet is reported as ignored. Sheets are
// committed row by row; a persistence failure aborts the import and leaves
// earlier rows in place.
func (im *Importer) Import(ctx context.Context, actor models.Actor, data []byte) (*models.ImportSummary, error) {
	wb, err := workbook.Open(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedWorkbook.Code, appErrors.ErrMalformedWorkbook.Status, appErrors.ErrMalformedWorkbook.Message)
	}

	summary := &models.ImportSummary{
		ImportID:      uuid.NewString(),
		Actor:         actor,
		StartedAt:     im.now().UTC(),
		Sheets:        []models.SheetSummary{},
		IgnoredSheets: []string{},
	}

	used := make(map[string]bool, 3)
	for _, fs := range models.FieldSets() {
		name, ok := wb.Find(fs.Sheet)
		if !ok {
			continue
		}
		used[name] = true
		rows, err := wb.Rows(name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrMalformedWorkbook.Code, appErrors.ErrMalformedWorkbook.Status, appErrors.ErrMalformedWorkbook.Message)
		}
		sheet, err := im.importSheet(ctx, fs, name, rows)
		if err != nil {
			return nil, err
		}
		summary.Sheets = append(summary.Sheets, sheet)
		im.logger.Debug("sheet imported",
			zap.String("import_id", summary.ImportID),
			zap.String("sheet", name),
			zap.Int("rows", sheet.Rows),
			zap.Int("created", sheet.Created),
			zap.Int("updated", sheet.Updated),
		)
	}
	for _, name := range wb.SheetNames() {
		if !used[name] {
			summary.IgnoredSheets = append(summary.IgnoredSheets, name)
		}
	}

	summary.FinishedAt = im.now().UTC()
	return summary, nil
}

func (im *Importer) importSheet(ctx context.Context, fs models.FieldSet, name string, rows [][]string) (models.SheetSummary, error) {
	out := models.SheetSummary{Kind: fs.Kind, Sheet: name}
	if len(rows) == 0 {
		return out, nil
	}
	columns := headerIndex(rows[0])

	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		record := Derive(fs, columns, row)
		created, err := im.upsert(ctx, record)
		if err != nil {
			return out, appErrors.Wrapf(appErrors.ErrPersistence, err, "%s row %d (id_number %q) could not be written", name, i+2, record.IDNumber)
		}
		out.Rows++
		if created {
			out.Created++
		} else {
			out.Updated++
		}
	}
	return out, nil
}

func (im *Importer) upsert(ctx context.Context, record *models.SurveyRecord) (bool, error) {
	id, found, err := im.store.FindIDByIDNumber(ctx, record.Kind, record.IDNumber)
	if err != nil {
		return false, err
	}
	if found {
		return false, im.store.Update(ctx, id, record)
	}
	return true, im.store.Create(ctx, record)
}

// Derive builds the normalized record for one data row. columns maps
// normalized header keys to cell positions.
func Derive(fs models.FieldSet, columns map[string]int, row []string) *models.SurveyRecord {
	record := models.NewSurveyRecord(fs.Kind, NormalizeID(cell(row, columns, models.IDField)))
	for _, f := range fs.Fields {
		raw := cell(row, columns, f.Name)
		switch f.Class {
		case models.ClassBoolean:
			record.Flags[f.Name] = ToBool(raw)
		case models.ClassMultiValue:
			record.Text[f.Name] = NormalizeMulti(raw)
		default:
			record.Text[f.Name] = NormalizeText(raw)
		}
	}
	return record
}

// headerIndex maps normalized labels to positions; the first duplicate wins.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, label := range header {
		key := NormalizeHeader(label)
		if key == "" {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

func cell(row []string, columns map[string]int, field string) string {
	i, ok := columns[field]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// blankRow reports rows whose cells are all empty or whitespace-only; they
// are skipped as spacer rows.
func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

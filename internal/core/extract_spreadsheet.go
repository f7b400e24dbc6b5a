package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/logging"
	"github.com/JonMunkholm/prodcheck/internal/schema"
	"github.com/xuri/excelize/v2"
)

// ContextCheckInterval is how many rows are processed between cancellation checks.
var ContextCheckInterval = 100

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("spreadsheet has no sheets")

// SpreadsheetExtractor reads product rows from .xlsx workbooks and from legacy
// Excel 97-2003 (.xls) workbooks.
type SpreadsheetExtractor struct {
	mapper *schema.Mapper
}

// NewSpreadsheetExtractor returns an extractor using the spreadsheet alias table.
func NewSpreadsheetExtractor() *SpreadsheetExtractor {
	return &SpreadsheetExtractor{mapper: schema.NewMapper(schema.SpreadsheetAliases)}
}

func init() {
	RegisterExtractor(FileTypeSpreadsheet, NewSpreadsheetExtractor())
}

// Extract reads the first sheet of the workbook at path.
func (e *SpreadsheetExtractor) Extract(ctx context.Context, path string) ([]ProductRecord, error) {
	return e.ExtractSheet(ctx, path, "")
}

// ExtractSheet reads the named sheet, or the first sheet when sheet is empty.
// Rows without a product code are logged and skipped.
func (e *SpreadsheetExtractor) ExtractSheet(ctx context.Context, path, sheet string) ([]ProductRecord, error) {
	if isLegacyWorkbook(path) {
		rows, name, err := readLegacySheet(path, sheet)
		if err != nil {
			return nil, fmt.Errorf("open spreadsheet: %w", err)
		}
		log := logging.WithFields(ctx, "file", filepath.Base(path), "sheet", name, "format", "xls")
		return e.extractRows(ctx, rows, log)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoSheets
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	log := logging.WithFields(ctx, "file", filepath.Base(path), "sheet", sheet)
	return e.extractRows(ctx, rows, log)
}

// SheetNames lists the worksheets of the workbook at path, in workbook order.
func SheetNames(path string) ([]string, error) {
	if isLegacyWorkbook(path) {
		names, err := legacySheetNames(path)
		if err != nil {
			return nil, fmt.Errorf("open spreadsheet: %w", err)
		}
		return names, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func (e *SpreadsheetExtractor) extractRows(ctx context.Context, rows [][]string, log *slog.Logger) ([]ProductRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	header, data := rows[0], rows[1:]
	firstLine := 2
	if syntheticHeader(header) && len(data) > 0 {
		log.Debug("header row is unnamed, promoting first data row")
		header, data = data[0], data[1:]
		firstLine = 3
	}

	headers := normalizeHeaders(header)
	cols := e.mapper.Resolve(headers)

	position := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := position[h]; !dup {
			position[h] = i
		}
	}

	records := make([]ProductRecord, 0, len(data))
	for i, row := range data {
		if i%ContextCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var rec ProductRecord
		for _, field := range schema.Fields {
			var raw string
			present := false
			if col, ok := cols[field]; ok {
				if idx := position[col]; idx < len(row) {
					raw, present = row[idx], true
				}
			}
			setField(&rec, field, raw, present)
		}

		if rec.ProductCode == "" {
			log.Warn("row skipped: empty product code", "row", firstLine+i)
			continue
		}
		synthesizeDescription(&rec)
		rec.Raw = rowSnapshot(headers, row)
		records = append(records, rec)
	}

	log.Info("spreadsheet extracted", "rows", len(data), "records", len(records), "mapped_fields", len(cols))
	return records, nil
}

// syntheticHeader reports whether every header cell is empty or an
// auto-generated "Unnamed: n" label.
func syntheticHeader(header []string) bool {
	for _, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && !strings.HasPrefix(h, "unnamed") {
			return false
		}
	}
	return true
}

// normalizeHeaders normalises each header, naming blanks "unnamed: <i>" and
// suffixing repeats with ".1", ".2", ... so every key is distinct.
func normalizeHeaders(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := schema.NormalizeHeader(h)
		if name == "" {
			name = "unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func rowSnapshot(headers, row []string) map[string]any {
	snap := make(map[string]any, len(headers))
	for i, h := range headers {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		snap[h] = snapshotValue(cell)
	}
	return snap
}

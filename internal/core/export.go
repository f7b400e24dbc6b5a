package core

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/schema"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Produtos"

// exportColumns follow the canonical field order, then the review state.
var exportColumns = append(fieldNames(), "validation_status", "code_validated",
	"supplier_validated", "validation_error", "synced_to_protheus", "protheus_error")

// recordFieldIndex maps a json field name of ProductRecord to its struct index.
var recordFieldIndex = func() map[string]int {
	t := reflect.TypeOf(ProductRecord{})
	idx := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			idx[name] = i
		}
	}
	return idx
}()

func fieldNames() []string {
	names := make([]string, 0, len(schema.Fields)+1)
	names = append(names, "id")
	for _, f := range schema.Fields {
		names = append(names, string(f))
	}
	return names
}

// ExportBatch writes the batch's records with their validation state to w
// as an .xlsx workbook.
func (s *Service) ExportBatch(ctx context.Context, code string, w io.Writer) error {
	detail, err := s.GetBatchDetail(ctx, code)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := setRow(f, 1, toCells(exportColumns)); err != nil {
		return err
	}
	for i := range detail.Records {
		if i%ContextCheckInterval == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if err := setRow(f, i+2, exportRow(&detail.Records[i])); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func exportRow(rec *ProductRecord) []any {
	v := reflect.ValueOf(rec).Elem()
	row := make([]any, 0, len(exportColumns))
	for _, col := range exportColumns {
		i, ok := recordFieldIndex[col]
		if !ok {
			row = append(row, nil)
			continue
		}
		row = append(row, cellValue(v.Field(i).Interface()))
	}
	return row
}

func cellValue(v any) any {
	switch x := v.(type) {
	case decimal.NullDecimal:
		if !x.Valid {
			return nil
		}
		return x.Decimal.InexactFloat64()
	case ValidationStatus:
		return string(x)
	default:
		return x
	}
}

func toCells(names []string) []any {
	cells := make([]any, len(names))
	for i, n := range names {
		cells[i] = n
	}
	return cells
}

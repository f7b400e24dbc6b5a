// Package store holds what the SQL implementations of core.Store share: the
// product column order and the mapping of a ProductRecord onto it.
package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/core"
)

// FieldColumns are the catalog columns of the products table, in the order
// used by FieldArgs and FieldDest.
var FieldColumns = []string{
	"product_code", "description", "short_description", "product_type",
	"product_group", "product_category", "unit_of_measure", "second_unit",
	"conversion_factor", "sale_price", "cost_price", "currency",
	"current_stock", "minimum_stock", "warehouse_code", "ncm_code",
	"ipi_percentage", "icms_percentage", "icms_base", "origin",
	"quantity", "unit_value", "discount", "supplier_code",
	"supplier_name", "barcode", "weight", "weight_unit",
	"active", "observations", "raw_data",
}

// ReviewColumns are written by the validator and the sync workflow.
var ReviewColumns = []string{
	"validation_status", "code_validated", "supplier_validated", "validation_error",
	"synced_to_protheus", "protheus_sync_date", "protheus_error",
}

// SelectColumns is the full products projection: id, batch_id, FieldColumns,
// ReviewColumns, created_at.
func SelectColumns() string {
	cols := make([]string, 0, len(FieldColumns)+len(ReviewColumns)+3)
	cols = append(cols, "id", "batch_id")
	cols = append(cols, FieldColumns...)
	cols = append(cols, ReviewColumns...)
	cols = append(cols, "created_at")
	return strings.Join(cols, ", ")
}

// Placeholders returns n bind markers produced by mark (1-based).
func Placeholders(n int, mark func(i int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = mark(i + 1)
	}
	return strings.Join(parts, ", ")
}

// FieldArgs returns the values of rec for FieldColumns. raw_data is encoded
// as JSON, or nil when the record carries no snapshot.
func FieldArgs(rec *core.ProductRecord) ([]any, error) {
	var raw []byte
	if len(rec.Raw) > 0 {
		b, err := json.Marshal(rec.Raw)
		if err != nil {
			return nil, fmt.Errorf("encode raw_data: %w", err)
		}
		raw = b
	}
	return []any{
		rec.ProductCode, rec.Description, rec.ShortDescription, rec.ProductType,
		rec.ProductGroup, rec.ProductCategory, rec.UnitOfMeasure, rec.SecondUnit,
		rec.ConversionFactor, rec.SalePrice, rec.CostPrice, rec.Currency,
		rec.CurrentStock, rec.MinimumStock, rec.WarehouseCode, rec.NCMCode,
		rec.IPIPercentage, rec.ICMSPercentage, rec.ICMSBase, rec.Origin,
		rec.Quantity, rec.UnitValue, rec.Discount, rec.SupplierCode,
		rec.SupplierName, rec.Barcode, rec.Weight, rec.WeightUnit,
		rec.Active, rec.Observations, raw,
	}, nil
}

// FieldDest returns scan targets for FieldColumns. raw receives raw_data and
// is decoded with DecodeRaw after the scan.
func FieldDest(rec *core.ProductRecord, raw *[]byte) []any {
	return []any{
		&rec.ProductCode, &rec.Description, &rec.ShortDescription, &rec.ProductType,
		&rec.ProductGroup, &rec.ProductCategory, &rec.UnitOfMeasure, &rec.SecondUnit,
		&rec.ConversionFactor, &rec.SalePrice, &rec.CostPrice, &rec.Currency,
		&rec.CurrentStock, &rec.MinimumStock, &rec.WarehouseCode, &rec.NCMCode,
		&rec.IPIPercentage, &rec.ICMSPercentage, &rec.ICMSBase, &rec.Origin,
		&rec.Quantity, &rec.UnitValue, &rec.Discount, &rec.SupplierCode,
		&rec.SupplierName, &rec.Barcode, &rec.Weight, &rec.WeightUnit,
		&rec.Active, &rec.Observations, raw,
	}
}

// DecodeRaw fills rec.Raw from a scanned raw_data value.
func DecodeRaw(rec *core.ProductRecord, raw []byte) error {
	if len(raw) == 0 {
		rec.Raw = nil
		return nil
	}
	if err := json.Unmarshal(raw, &rec.Raw); err != nil {
		return fmt.Errorf("decode raw_data of product %d: %w", rec.ID, err)
	}
	return nil
}

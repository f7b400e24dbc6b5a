// Package schema holds the canonical product field set and the alias tables
// that map supplier column headers and XML tags onto it.
//
// The tables are package-level values built once at init and never mutated.
package schema

// Field is a canonical product field key.
type Field string

// Kind is the coercion applied to a field's raw value.
type Kind int

const (
	KindText Kind = iota
	KindDecimal
	KindBool
)

const (
	ProductCode      Field = "product_code"
	Description      Field = "description"
	ShortDescription Field = "short_description"
	ProductType      Field = "product_type"
	ProductGroup     Field = "product_group"
	ProductCategory  Field = "product_category"
	UnitOfMeasure    Field = "unit_of_measure"
	SecondUnit       Field = "second_unit"
	ConversionFactor Field = "conversion_factor"
	SalePrice        Field = "sale_price"
	CostPrice        Field = "cost_price"
	Currency         Field = "currency"
	CurrentStock     Field = "current_stock"
	MinimumStock     Field = "minimum_stock"
	WarehouseCode    Field = "warehouse_code"
	NCMCode          Field = "ncm_code"
	IPIPercentage    Field = "ipi_percentage"
	ICMSPercentage   Field = "icms_percentage"
	ICMSBase         Field = "icms_base"
	Origin           Field = "origin"
	Quantity         Field = "quantity"
	UnitValue        Field = "unit_value"
	Discount         Field = "discount"
	SupplierCode     Field = "supplier_code"
	SupplierName     Field = "supplier_name"
	Barcode          Field = "barcode"
	Weight           Field = "weight"
	WeightUnit       Field = "weight_unit"
	Active           Field = "active"
	Observations     Field = "observations"
)

// Fields lists every canonical field in record order.
var Fields = []Field{
	ProductCode, Description, ShortDescription, ProductType, ProductGroup,
	ProductCategory, UnitOfMeasure, SecondUnit, ConversionFactor, SalePrice,
	CostPrice, Currency, CurrentStock, MinimumStock, WarehouseCode, NCMCode,
	IPIPercentage, ICMSPercentage, ICMSBase, Origin, Quantity, UnitValue,
	Discount, SupplierCode, SupplierName, Barcode, Weight, WeightUnit, Active,
	Observations,
}

var kinds = map[Field]Kind{
	ConversionFactor: KindDecimal,
	SalePrice:        KindDecimal,
	CostPrice:        KindDecimal,
	CurrentStock:     KindDecimal,
	MinimumStock:     KindDecimal,
	IPIPercentage:    KindDecimal,
	ICMSPercentage:   KindDecimal,
	ICMSBase:         KindDecimal,
	Quantity:         KindDecimal,
	UnitValue:        KindDecimal,
	Discount:         KindDecimal,
	Weight:           KindDecimal,
	Active:           KindBool,
}

// KindOf returns the coercion kind of f. Unlisted fields are text.
func KindOf(f Field) Kind {
	return kinds[f]
}

// Defaults are applied when a source does not provide a field at all.
var Defaults = map[Field]string{
	Currency:     "BRL",
	CurrentStock: "0",
	WeightUnit:   "KG",
	Active:       "true",
}

package core

// convert.go turns supplier cell and element text into typed record values.
//
// Supplier files mix Brazilian and US number formats ("1.234,56", "1,234.56",
// "R$ 12,90"), spreadsheet formula artifacts and free-form yes/no words.
// Coercion never fails: unparsable input yields the caller's default.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/JonMunkholm/prodcheck/internal/schema"
	"github.com/shopspring/decimal"
)

// numericRegex validates a cleaned decimal string before handing it to decimal.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var (
	trueTokens  = map[string]bool{"true": true, "sim": true, "s": true, "yes": true, "y": true, "1": true, "ativo": true}
	falseTokens = map[string]bool{"false": true, "nao": true, "não": true, "n": true, "no": true, "0": true, "inativo": true}
)

// NullDecimal is the "no value" default for ParseDecimal.
var NullDecimal = decimal.NullDecimal{}

// maxDecimalExponent bounds the base-10 exponent ParseDecimal accepts. Rendering
// a decimal costs time proportional to its exponent, so a cell like
// "1e2000000000" must not reach the validator or the database driver.
const maxDecimalExponent = 30

// ParseDecimal converts v to a decimal. Strings may use either comma or dot as
// the decimal separator, with the other one as thousands separator, and may
// carry spaces and currency symbols. Returns def on any failure, including a
// value whose exponent lies outside ±maxDecimalExponent.
func ParseDecimal(v any, def decimal.NullDecimal) decimal.NullDecimal {
	d := parseDecimal(v, def)
	if d.Valid && !exponentInRange(d.Decimal) {
		return def
	}
	return d
}

func exponentInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp <= maxDecimalExponent && exp >= -maxDecimalExponent
}

func parseDecimal(v any, def decimal.NullDecimal) decimal.NullDecimal {
	switch n := v.(type) {
	case nil:
		return def
	case decimal.Decimal:
		return decimal.NewNullDecimal(n)
	case decimal.NullDecimal:
		if !n.Valid {
			return def
		}
		return n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return def
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(n))
	case float32:
		return parseDecimal(float64(n), def)
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(n)))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(n))
	case string:
		s, ok := cleanDecimal(n)
		if !ok {
			return def
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return def
		}
		return decimal.NewNullDecimal(d)
	default:
		return def
	}
}

// cleanDecimal reduces a locale-formatted number to the form decimal accepts.
func cleanDecimal(s string) (string, bool) {
	s = CleanCell(s)
	if s == "" {
		return "", false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.NewReplacer("R$", "", "$", "", "%", "").Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// whichever separator comes last is the decimal one
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	if negative {
		s = "-" + s
	}
	return s, numericRegex.MatchString(s)
}

// ParseBool converts v to a boolean. Numbers are true when non-zero; strings
// are matched case-insensitively against Portuguese and English yes/no words.
// Anything else yields def.
func ParseBool(v any, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int:
		return b != 0
	case int64:
		return b != 0
	case float64:
		if math.IsNaN(b) {
			return def
		}
		return b != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(b))
		if trueTokens[s] {
			return true
		}
		if falseTokens[s] {
			return false
		}
		return def
	default:
		return def
	}
}

// CleanCell removes common spreadsheet artifacts from a value:
// surrounding whitespace, the ="..." formula wrapper and matching outer quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// snapshotValue converts a raw cell for the JSON-safe audit snapshot:
// empty becomes nil, plain numbers become float64 or int64, all else stays text.
// Numbers with leading zeros stay text so codes like "00123" survive.
func snapshotValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) > 1 && s[0] == '0' && s[1] != '.' {
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && numericRegex.MatchString(s) {
		return f
	}
	return s
}

// setField assigns a raw source value to the record field f using the field's
// coercion kind. Missing or empty values fall back to schema.Defaults.
func setField(rec *ProductRecord, f schema.Field, raw string, present bool) {
	raw = CleanCell(raw)
	if !present || raw == "" {
		def, ok := schema.Defaults[f]
		if !ok {
			return
		}
		raw = def
	}

	switch schema.KindOf(f) {
	case schema.KindDecimal:
		setDecimal(rec, f, ParseDecimal(raw, NullDecimal))
	case schema.KindBool:
		rec.Active = ParseBool(raw, true)
	default:
		setText(rec, f, raw)
	}
}

func setText(rec *ProductRecord, f schema.Field, v string) {
	switch f {
	case schema.ProductCode:
		rec.ProductCode = v
	case schema.Description:
		rec.Description = v
	case schema.ShortDescription:
		rec.ShortDescription = v
	case schema.ProductType:
		rec.ProductType = v
	case schema.ProductGroup:
		rec.ProductGroup = v
	case schema.ProductCategory:
		rec.ProductCategory = v
	case schema.UnitOfMeasure:
		rec.UnitOfMeasure = v
	case schema.SecondUnit:
		rec.SecondUnit = v
	case schema.Currency:
		rec.Currency = v
	case schema.WarehouseCode:
		rec.WarehouseCode = v
	case schema.NCMCode:
		rec.NCMCode = v
	case schema.Origin:
		rec.Origin = v
	case schema.SupplierCode:
		rec.SupplierCode = v
	case schema.SupplierName:
		rec.SupplierName = v
	case schema.Barcode:
		rec.Barcode = v
	case schema.WeightUnit:
		rec.WeightUnit = v
	case schema.Observations:
		rec.Observations = v
	}
}

func setDecimal(rec *ProductRecord, f schema.Field, d decimal.NullDecimal) {
	switch f {
	case schema.ConversionFactor:
		rec.ConversionFactor = d
	case schema.SalePrice:
		rec.SalePrice = d
	case schema.CostPrice:
		rec.CostPrice = d
	case schema.CurrentStock:
		rec.CurrentStock = d
	case schema.MinimumStock:
		rec.MinimumStock = d
	case schema.IPIPercentage:
		rec.IPIPercentage = d
	case schema.ICMSPercentage:
		rec.ICMSPercentage = d
	case schema.ICMSBase:
		rec.ICMSBase = d
	case schema.Quantity:
		rec.Quantity = d
	case schema.UnitValue:
		rec.UnitValue = d
	case schema.Discount:
		rec.Discount = d
	case schema.Weight:
		rec.Weight = d
	}
}

// synthesizeDescription fills an empty description from the product code.
func synthesizeDescription(rec *ProductRecord) {
	if rec.Description == "" {
		rec.Description = "Produto " + rec.ProductCode
	}
}

package core

import (
	"math"
	"testing"

	"github.com/JonMunkholm/prodcheck/internal/schema"
	"github.com/shopspring/decimal"
)

func TestParseDecimal(t *testing.T) {
	def := decimal.NewNullDecimal(decimal.NewFromInt(-1))

	tests := []struct {
		name    string
		input   any
		want    string // "" means def
		wantNil bool
	}{
		{name: "plain", input: "1234.56", want: "1234.56"},
		{name: "brazilian thousands and comma", input: "1.234,56", want: "1234.56"},
		{name: "us thousands and dot", input: "1,234.56", want: "1234.56"},
		{name: "single comma is decimal", input: "12,5", want: "12.5"},
		{name: "several commas are thousands", input: "1,234,567", want: "1234567"},
		{name: "several dots are thousands", input: "1.234.567", want: "1234567"},
		{name: "spaces stripped", input: " 1 234,50 ", want: "1234.5"},
		{name: "currency symbol", input: "R$ 12,90", want: "12.9"},
		{name: "percent", input: "18%", want: "18"},
		{name: "accounting negative", input: "(10,00)", want: "-10"},
		{name: "formula wrapper", input: `="0,5"`, want: "0.5"},
		{name: "int", input: 7, want: "7"},
		{name: "float", input: 2.5, want: "2.5"},
		{name: "empty string", input: "", want: ""},
		{name: "garbage", input: "abc", want: ""},
		{name: "half number", input: "12abc", want: ""},
		{name: "nil", input: nil, want: ""},
		{name: "NaN", input: math.NaN(), want: ""},
		{name: "spreadsheet scientific", input: "1.23E+16", want: "12300000000000000"},
		{name: "small scientific", input: "2,5e-3", want: "0.0025"},
		{name: "huge exponent", input: "1e2000000000", want: ""},
		{name: "exponent past int32", input: "1e99999999999", want: ""},
		{name: "tiny exponent", input: "1e-40", want: ""},
		{name: "huge float", input: 1e300, want: ""},
		{name: "unsupported type", input: []int{1}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDecimal(tt.input, def)
			if tt.want == "" {
				if got != def {
					t.Errorf("ParseDecimal(%v) = %v, want default", tt.input, got)
				}
				return
			}
			if !got.Valid {
				t.Fatalf("ParseDecimal(%v) invalid, want %s", tt.input, tt.want)
			}
			if !got.Decimal.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseDecimal(%v) = %s, want %s", tt.input, got.Decimal, tt.want)
			}
		})
	}
}

func TestParseDecimal_LocalesAgree(t *testing.T) {
	a := ParseDecimal("1.234,56", NullDecimal)
	b := ParseDecimal("1234.56", NullDecimal)
	if !a.Valid || !b.Valid || !a.Decimal.Equal(b.Decimal) {
		t.Errorf("1.234,56 = %v and 1234.56 = %v, want equal", a, b)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input any
		def   bool
		want  bool
	}{
		{"sim", false, true},
		{"SIM", false, true},
		{" s ", false, true},
		{"yes", false, true},
		{"ativo", false, true},
		{"1", false, true},
		{"inativo", true, false},
		{"não", true, false},
		{"nao", true, false},
		{"N", true, false},
		{"0", true, false},
		{"talvez", true, true},
		{"talvez", false, false},
		{"", true, true},
		{true, false, true},
		{false, true, false},
		{2, false, true},
		{0, true, false},
		{0.0, true, false},
		{1.5, false, true},
		{nil, true, true},
	}

	for _, tt := range tests {
		if got := ParseBool(tt.input, tt.def); got != tt.want {
			t.Errorf("ParseBool(%#v, %v) = %v, want %v", tt.input, tt.def, got, tt.want)
		}
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  abc  ", "abc"},
		{`="00123"`, "00123"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{`tubo 1/2"`, `tubo 1/2"`},
		{`"`, `"`},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSnapshotValue(t *testing.T) {
	tests := []struct {
		input string
		want  any
	}{
		{"", nil},
		{"00123", "00123"},
		{"0.5", 0.5},
		{"42", int64(42)},
		{"1,5", "1,5"},
		{"abc", "abc"},
	}

	for _, tt := range tests {
		if got := snapshotValue(tt.input); got != tt.want {
			t.Errorf("snapshotValue(%q) = %#v, want %#v", tt.input, got, tt.want)
		}
	}
}

func TestSetField_Defaults(t *testing.T) {
	var rec ProductRecord
	for _, f := range schema.Fields {
		setField(&rec, f, "", false)
	}

	if rec.Currency != "BRL" {
		t.Errorf("Currency = %q, want BRL", rec.Currency)
	}
	if rec.WeightUnit != "KG" {
		t.Errorf("WeightUnit = %q, want KG", rec.WeightUnit)
	}
	if !rec.CurrentStock.Valid || !rec.CurrentStock.Decimal.IsZero() {
		t.Errorf("CurrentStock = %v, want 0", rec.CurrentStock)
	}
	if !rec.Active {
		t.Error("Active = false, want true by default")
	}
	if rec.SalePrice.Valid {
		t.Errorf("SalePrice = %v, want null", rec.SalePrice)
	}
}

func TestSynthesizeDescription(t *testing.T) {
	rec := ProductRecord{ProductCode: "A-1"}
	synthesizeDescription(&rec)
	if rec.Description != "Produto A-1" {
		t.Errorf("Description = %q, want %q", rec.Description, "Produto A-1")
	}

	rec = ProductRecord{ProductCode: "A-1", Description: "Bomba"}
	synthesizeDescription(&rec)
	if rec.Description != "Bomba" {
		t.Errorf("Description = %q, want it kept", rec.Description)
	}
}

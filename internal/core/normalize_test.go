package core

import "testing"

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		group    string
		supplier string
		want     string
	}{
		{"JF pads right and dots", "1234", "0052", "JF", "12.340000"},
		{"JF truncates to 8 digits", "12345678901", "0052", "JF", "12.345678"},
		{"JF strips punctuation first", "AB-12.34", "0052", "JF", "12.340000"},
		{"JUMIL pads left", "1234", "0004", "JUMIL", "00.01.234"},
		{"JUMIL full length", "1234567", "0004", "JUMIL", "12.34.567"},
		{"JACTO four digits", "1234", "0003", "JACTO", "12.34"},
		{"JACTO seven digits", "1-234-567", "0003", "JACTO", "1.234.567"},
		{"JACTO other length is digits only", "12345", "0003", "JACTO", "12345"},
		{"TATU digits only", "123.4567.890", "0007", "TATU", "1234567890"},
		{"group 0009 any supplier unchanged", "AB-12", "0009", "WHOEVER", "AB-12"},
		{"group 0009 without supplier unchanged", "AB-12", "0009", "", "AB-12"},
		{"OUTROS unchanged", "x.1/2", "OUTROS", "OUTROS", "x.1/2"},
		{"unknown pair unchanged", "12.34", "0052", "ACME", "12.34"},
		{"surrounding spaces ignored", "1234", " 0052 ", " JF ", "12.340000"},
		{"supplier case must match", "1234", "0052", "jf", "1234"},
		{"group must match exactly", "1234", "52", "JF", "1234"},
		{"code is trimmed", "  1234  ", "", "", "1234"},
		{"no digits left as is", "ABC", "0052", "JF", "ABC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCode(tt.code, tt.group, tt.supplier); got != tt.want {
				t.Errorf("NormalizeCode(%q, %q, %q) = %q, want %q", tt.code, tt.group, tt.supplier, got, tt.want)
			}
		})
	}
}

func TestAlternateCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		group    string
		supplier string
		want     string
		wantOK   bool
	}{
		{"TATU grouped", "1234567890", "0007", "TATU", "123.4567.890", true},
		{"TATU pads short codes", "123", "0007", "TATU", "000.0000.123", true},
		{"lowercase tatu is another supplier", "1234567890", "0007", "tatu", "", false},
		{"TATU regroups formatted input", "123-4567-890", "0007", "TATU", "123.4567.890", true},
		{"no alternate for JF", "1234", "0052", "JF", "", false},
		{"no alternate for unknown pair", "1234", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AlternateCode(tt.code, tt.group, tt.supplier)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("AlternateCode(%q, %q, %q) = %q, %v; want %q, %v",
					tt.code, tt.group, tt.supplier, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

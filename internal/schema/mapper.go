package schema

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Alias lists the accepted source names for one canonical field, in priority order.
type Alias struct {
	Field Field
	Names []string
}

// AliasTable is an ordered set of aliases covering the canonical fields.
type AliasTable []Alias

// Names returns the candidate names for f, or nil if the table does not cover it.
func (t AliasTable) Names(f Field) []string {
	for _, a := range t {
		if a.Field == f {
			return a.Names
		}
	}
	return nil
}

// ColumnMap maps a canonical field to the actual header present in one file.
// Fields with no matching header are absent.
type ColumnMap map[Field]string

// NormalizeHeader trims, lowercases and NFC-normalises a header so that
// "Descrição", " DESCRIÇÃO " and the decomposed form compare equal.
func NormalizeHeader(s string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(s)))
}

// Mapper resolves file headers against an alias table. Build one per table
// and reuse it; Resolve runs once per file, not per row.
type Mapper struct {
	table AliasTable
}

// NewMapper returns a Mapper over table with every alias header-normalised.
func NewMapper(table AliasTable) *Mapper {
	normalized := make(AliasTable, len(table))
	for i, a := range table {
		names := make([]string, len(a.Names))
		for j, n := range a.Names {
			names[j] = NormalizeHeader(n)
		}
		normalized[i] = Alias{Field: a.Field, Names: names}
	}
	return &Mapper{table: normalized}
}

// Resolve picks, for each canonical field, the first alias in table order that
// appears among present. present must already be header-normalised.
func (m *Mapper) Resolve(present []string) ColumnMap {
	seen := make(map[string]struct{}, len(present))
	for _, p := range present {
		seen[p] = struct{}{}
	}

	cols := make(ColumnMap, len(m.table))
	for _, a := range m.table {
		for _, name := range a.Names {
			if _, ok := seen[name]; ok {
				cols[a.Field] = name
				break
			}
		}
	}
	return cols
}

package schema

import "testing"

func TestMapper_Resolve(t *testing.T) {
	m := NewMapper(SpreadsheetAliases)

	tests := []struct {
		name    string
		present []string
		want    ColumnMap
	}{
		{
			name:    "first alias in table order wins",
			present: []string{"cod", "codigo", "preço"},
			want:    ColumnMap{ProductCode: "codigo", SalePrice: "preço"},
		},
		{
			name:    "missing fields are absent not errors",
			present: []string{"ncm"},
			want:    ColumnMap{NCMCode: "ncm"},
		},
		{
			name:    "one header may serve two fields",
			present: []string{"qtd"},
			want:    ColumnMap{CurrentStock: "qtd", Quantity: "qtd"},
		},
		{
			name:    "quoted alias",
			present: []string{`cod "bruto"`},
			want:    ColumnMap{ProductCode: `cod "bruto"`},
		},
		{
			name:    "unknown headers ignored",
			present: []string{"foo", "bar"},
			want:    ColumnMap{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Resolve(tt.present)
			if len(got) != len(tt.want) {
				t.Fatalf("Resolve() = %v, want %v", got, tt.want)
			}
			for f, col := range tt.want {
				if got[f] != col {
					t.Errorf("Resolve()[%s] = %q, want %q", f, got[f], col)
				}
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	decomposed := "Descric\u0327a\u0303o" // c + combining cedilla, a + combining tilde
	tests := []struct {
		in   string
		want string
	}{
		{"  Código ", "código"},
		{"PREÇO DE VENDA", "preço de venda"},
		{decomposed, "descrição"},
	}
	for _, tt := range tests {
		if got := NormalizeHeader(tt.in); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTablesCoverEveryField(t *testing.T) {
	for _, table := range []struct {
		name string
		t    AliasTable
	}{
		{"spreadsheet", SpreadsheetAliases},
		{"xml", XMLTags},
	} {
		if len(table.t) != len(Fields) {
			t.Errorf("%s table has %d entries, want %d", table.name, len(table.t), len(Fields))
		}
		for _, f := range Fields {
			if len(table.t.Names(f)) == 0 {
				t.Errorf("%s table has no aliases for %s", table.name, f)
			}
		}
	}
}

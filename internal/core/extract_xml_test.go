package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

func writeXML(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.xml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write xml: %v", err)
	}
	return path
}

func TestXMLExtractor_Extract(t *testing.T) {
	path := writeXML(t, `<?xml version="1.0" encoding="UTF-8"?>
<catalogo xmlns="http://example.com/cat">
  <produtos>
    <produto codigo="P-1">
      <descricao>Bico pulverizador</descricao>
      <pICMS>4,00</pICMS>
      <orig>0</orig>
      <qCom>10</qCom>
      <vUnCom>2.50</vUnCom>
    </produto>
    <produto>
      <codigo>P-2</codigo>
    </produto>
    <produto>
      <CODIGO>P-3</CODIGO>
      <Descricao>Filtro</Descricao>
      <ativo>nao</ativo>
    </produto>
  </produtos>
</catalogo>`)

	records, err := NewXMLExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (element without description skipped)", len(records))
	}

	first := records[0]
	if first.ProductCode != "P-1" {
		t.Errorf("code from attribute = %q, want P-1", first.ProductCode)
	}
	if !first.ICMSPercentage.Decimal.Equal(decimal.NewFromInt(4)) {
		t.Errorf("ICMSPercentage = %v, want 4", first.ICMSPercentage)
	}
	if first.Origin != "0" {
		t.Errorf("Origin = %q, want 0", first.Origin)
	}
	if !first.UnitValue.Decimal.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("UnitValue = %v, want 2.5", first.UnitValue)
	}
	if first.Raw["descricao"] != "Bico pulverizador" {
		t.Errorf("Raw[descricao] = %#v", first.Raw["descricao"])
	}

	second := records[1]
	if second.ProductCode != "P-3" || second.Description != "Filtro" {
		t.Errorf("case-insensitive lookup = %q / %q", second.ProductCode, second.Description)
	}
	if second.Active {
		t.Error("Active = true, want false")
	}
}

func TestXMLExtractor_Latin1(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?><itens><item><cod>7</cod><desc>Válvula</desc></item></itens>`
	encoded, err := charmap.ISO8859_1.NewEncoder().String(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeXML(t, encoded)

	records, err := NewXMLExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 1 || records[0].Description != "Válvula" {
		t.Fatalf("records = %+v, want Válvula", records)
	}
}

func TestXMLExtractor_RootChildrenFallback(t *testing.T) {
	path := writeXML(t, "\ufeff<lista><linha><codigo>A</codigo><nome>Alfa</nome></linha><linha><codigo>B</codigo><nome>Beta</nome></linha></lista>")

	records, err := NewXMLExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 2 || records[1].Description != "Beta" {
		t.Fatalf("records = %+v, want A and B", records)
	}
}

func TestXMLExtractor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
		wantMsg string
	}{
		{name: "malformed", doc: "<produtos><produto>", wantMsg: "parse xml"},
		{name: "empty", doc: "   ", wantErr: ErrEmptyXML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewXMLExtractor().Extract(context.Background(), writeXML(t, tt.doc))
			if err == nil {
				t.Fatal("Extract() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/prodcheck/internal/config"
	"github.com/JonMunkholm/prodcheck/internal/core"
	"github.com/JonMunkholm/prodcheck/internal/erp"
	"github.com/JonMunkholm/prodcheck/internal/store/sqlite"
)

const catalogXML = `<produtos>
  <produto><codigo>1234</codigo><descricao>Bico</descricao><orig>0</orig><qCom>2</qCom><vUnCom>10,50</vUnCom></produto>
  <produto><codigo>5678</codigo><descricao>Filtro</descricao><orig>2</orig></produto>
</produtos>`

// stubRegistry knows every supplier and every product except 5678.
type stubRegistry struct{}

func (stubRegistry) ProductExists(_ context.Context, code, _ string) (bool, error) {
	return code != "5678", nil
}

func (stubRegistry) SupplierExists(context.Context, string) (bool, error) {
	return true, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 30 * time.Second},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, svcCfg core.ServiceConfig) *Server {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "prodcheck.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svcCfg.UploadDir = t.TempDir()
	svc, err := core.NewService(store, svcCfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewServer(svc, cfg)
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, method, path, strings.NewReader(body), "application/json")
}

func uploadFile(t *testing.T, s *Server, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	if name != "" {
		part, err := mp.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		part.Write([]byte(content))
	}
	mp.WriteField("uploaded_by", "ana")
	mp.Close()
	return do(t, s, http.MethodPost, "/api/uploads", &buf, mp.FormDataContentType())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, rec.Body.String(), err)
	}
	return v
}

func TestAPI_ReviewWorkflow(t *testing.T) {
	erpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"numero_pedido":"000123"}`))
	}))
	defer erpSrv.Close()

	client := erp.New(erp.Config{BaseURL: erpSrv.URL, TenantID: "01"})
	s := newTestServer(t, testConfig(), core.ServiceConfig{
		Registry: stubRegistry{},
		Orders:   client,
	})

	rec := uploadFile(t, s, "catalogo.xml", catalogXML)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body)
	}
	intake := decode[core.IntakeResult](t, rec)
	if intake.Saved != 2 || intake.BatchCode == "" {
		t.Fatalf("intake = %+v", intake)
	}
	batchPath := "/api/batches/" + intake.BatchCode

	rec = do(t, s, http.MethodGet, "/api/uploads/"+intake.UploadID, nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), intake.BatchCode) {
		t.Errorf("get upload = %d %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodPut, batchPath+"/context", `{"fornecedor_code":"F001","product_group":"0009"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set context = %d %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodPost, batchPath+"/validate", ``)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate = %d %s", rec.Code, rec.Body)
	}
	summary := decode[core.ValidationSummary](t, rec)
	if summary.Checked != 2 || summary.Valid != 1 || summary.Invalid != 1 {
		t.Errorf("summary = %+v", summary)
	}

	rec = do(t, s, http.MethodGet, batchPath+"/products?status=invalid", nil, "")
	products := decode[BatchProductsResponse](t, rec)
	if products.TotalProducts != 1 || products.Products[0].ProductCode != "5678" {
		t.Errorf("invalid products = %+v", products)
	}

	rec = do(t, s, http.MethodGet, "/api/products/pending-sync?batch_code="+intake.BatchCode, nil, "")
	if pending := decode[PendingSyncResponse](t, rec); pending.Count != 1 {
		t.Errorf("pending before submit = %d", pending.Count)
	}

	rec = doJSON(t, s, http.MethodPost, batchPath+"/submit", `{"fornecedor":"F001","loja":"01","condicao_pagamento":"001"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit = %d %s", rec.Code, rec.Body)
	}
	if res := decode[core.SubmitResult](t, rec); res.OrderNumber != "000123" || res.Items != 1 {
		t.Errorf("submit result = %+v", res)
	}

	rec = do(t, s, http.MethodGet, "/api/products/pending-sync?batch_code="+intake.BatchCode, nil, "")
	if pending := decode[PendingSyncResponse](t, rec); pending.Count != 0 {
		t.Errorf("pending after submit = %d", pending.Count)
	}

	rec = do(t, s, http.MethodGet, batchPath+"/export", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Disposition"), intake.BatchCode+".xlsx") {
		t.Errorf("export = %d %v", rec.Code, rec.Header())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("export body is not a zip container")
	}
}

func TestAPI_SyncStatus(t *testing.T) {
	s := newTestServer(t, testConfig(), core.ServiceConfig{})

	intake := decode[core.IntakeResult](t, uploadFile(t, s, "catalogo.xml", catalogXML))
	detail := decode[BatchProductsResponse](t,
		do(t, s, http.MethodGet, "/api/batches/"+intake.BatchCode+"/products", nil, ""))
	if len(detail.Products) != 2 {
		t.Fatalf("products = %d", len(detail.Products))
	}
	first, second := detail.Products[0].ID, detail.Products[1].ID

	body, _ := json.Marshal(SyncStatusRequest{Updates: []core.SyncStatusUpdate{
		{ProductID: first, Success: true},
		{ProductID: second, Success: false, Error: "NCM invalido"},
		{ProductID: 999999, Success: false},
	}})
	rec := doJSON(t, s, http.MethodPost, "/api/products/sync-status", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("sync-status = %d %s", rec.Code, rec.Body)
	}
	res := decode[core.SyncStatusResult](t, rec)
	if res.Synced != 1 || res.Failed != 1 || len(res.Errors) != 1 {
		t.Errorf("result = %+v", res)
	}

	rec = do(t, s, http.MethodGet, "/api/products/"+itoa(second), nil, "")
	if p := decode[core.ProductRecord](t, rec); p.SyncError != "NCM invalido" || p.SyncedToERP {
		t.Errorf("failed product = %+v", p)
	}

	rec = do(t, s, http.MethodPost, "/api/products/"+itoa(second)+"/mark-synced", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Produto 5678") {
		t.Errorf("mark-synced = %d %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodPost, "/api/batches/"+intake.BatchCode+"/mark-synced", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("batch mark-synced = %d %s", rec.Code, rec.Body)
	}
	rec = do(t, s, http.MethodGet, "/api/batches/"+intake.BatchCode, nil, "")
	if b := decode[core.Batch](t, rec); !b.SyncedToERP {
		t.Errorf("batch = %+v", b)
	}
}

func TestAPI_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 128
	s := newTestServer(t, cfg, core.ServiceConfig{})

	intake := decode[core.IntakeResult](t, uploadFile(t, s, "a.xml", `<p><produto><codigo>1</codigo><descricao>Bico</descricao></produto></p>`))

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown batch", http.MethodGet, "/api/batches/BATCH-NOPE", "", 404, "BAT001"},
		{"unknown upload", http.MethodGet, "/api/uploads/nope", "", 404, "UPL001"},
		{"bad status filter", http.MethodGet, "/api/batches/" + intake.BatchCode + "/products?status=done", "", 400, "VAL004"},
		{"bad product id", http.MethodPost, "/api/products/abc/mark-synced", "", 400, "VAL004"},
		{"malformed body", http.MethodPut, "/api/batches/" + intake.BatchCode + "/context", "{", 400, "VAL004"},
		{"missing order fields", http.MethodPost, "/api/batches/" + intake.BatchCode + "/submit", `{"loja":"01"}`, 400, "VAL004"},
		{"erp disabled", http.MethodPost, "/api/batches/" + intake.BatchCode + "/submit", `{"fornecedor":"F1","loja":"01","condicao_pagamento":"001"}`, 503, "ERP004"},
		{"registry disabled", http.MethodPost, "/api/batches/" + intake.BatchCode + "/validate", "", 503, "VAL003"},
		{"empty sync updates", http.MethodPost, "/api/products/sync-status", `{"updates":[]}`, 400, "VAL004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", got.Code, tt.wantErr)
			}
		})
	}

	t.Run("no file", func(t *testing.T) {
		rec := uploadFile(t, s, "", "")
		if got := decode[ErrorResponse](t, rec); rec.Code != 400 || got.Code != "FILE004" {
			t.Errorf("status = %d, code = %q", rec.Code, got.Code)
		}
	})
	t.Run("file too large", func(t *testing.T) {
		rec := uploadFile(t, s, "big.xml", strings.Repeat("x", 129))
		if got := decode[ErrorResponse](t, rec); rec.Code != 413 || got.Code != "FILE001" {
			t.Errorf("status = %d, code = %q", rec.Code, got.Code)
		}
	})
	t.Run("failed intake", func(t *testing.T) {
		rec := uploadFile(t, s, "empty.xml", `<p></p>`)
		res := decode[core.IntakeResult](t, rec)
		if rec.Code != http.StatusUnprocessableEntity || res.Status != string(core.UploadFailed) {
			t.Errorf("status = %d, result = %+v", rec.Code, res)
		}
	})
}

func TestAPI_KeyAndHealth(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"k1"}
	s := newTestServer(t, cfg, core.ServiceConfig{MaxConcurrent: 3})

	rec := do(t, s, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	health := decode[HealthResponse](t, rec)
	if health.Uploads.MaxConcurrent != 3 || len(health.FileTypes) < 2 {
		t.Errorf("health = %+v", health)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	if rec := do(t, s, http.MethodGet, "/api/batches/x", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/batches/x", nil)
	req.Header.Set("X-API-Key", "k1")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("with key = %d, want 404", rec.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

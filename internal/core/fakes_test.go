package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/prodcheck/internal/erp"
)

// memStore is an in-memory Store for orchestrator and validation tests.
type memStore struct {
	mu       sync.Mutex
	uploads  map[string]*Upload
	batches  map[int64]*Batch
	records  map[int64]*ProductRecord
	nextID   int64
	failCode string // Insert fails for records with this code
}

func newMemStore() *memStore {
	return &memStore{
		uploads: make(map[string]*Upload),
		batches: make(map[int64]*Batch),
		records: make(map[int64]*ProductRecord),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUpload(_ context.Context, u *Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.uploads[u.ID] = &cp
	return nil
}

func (m *memStore) UpdateUpload(_ context.Context, u *Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[u.ID]; !ok {
		return fmt.Errorf("upload %s: %w", u.ID, ErrNotFound)
	}
	cp := *u
	m.uploads[u.ID] = &cp
	return nil
}

func (m *memStore) GetUpload(_ context.Context, id string) (*Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return nil, fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) FailStaleUploads(_ context.Context, cutoff time.Time, msg string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.uploads {
		if u.Status == UploadProcessing && u.UpdatedAt.Before(cutoff) {
			u.Status = UploadFailed
			u.ErrorMessage = msg
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateBatch(_ context.Context, b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.batches {
		if existing.UploadID == b.UploadID {
			return ErrBatchExists
		}
	}
	b.ID = m.id()
	b.CreatedAt = time.Now()
	cp := *b
	m.batches[b.ID] = &cp
	return nil
}

func (m *memStore) BatchForUpload(_ context.Context, uploadID string) (*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.UploadID == uploadID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("batch for upload %s: %w", uploadID, ErrNotFound)
}

func (m *memStore) GetBatch(_ context.Context, code string) (*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.Code == code {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("batch %s: %w", code, ErrNotFound)
}

func (m *memStore) SetBatchContext(_ context.Context, batchID int64, supplier, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return ErrNotFound
	}
	b.SupplierCode, b.ProductGroup = supplier, group
	return nil
}

func (m *memStore) MarkBatchSynced(_ context.Context, batchID int64, at time.Time, withRecords bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return 0, ErrNotFound
	}
	b.SyncedToERP, b.SyncedAt = true, &at
	var n int64
	if withRecords {
		for _, r := range m.records {
			if r.BatchID == batchID {
				r.SyncedToERP, r.SyncedAt = true, &at
				n++
			}
		}
	}
	return n, nil
}

type memWriter struct{ m *memStore }

func (w memWriter) Insert(_ context.Context, rec *ProductRecord) error {
	if w.m.failCode != "" && rec.ProductCode == w.m.failCode {
		return errors.New("duplicate key value violates unique constraint")
	}
	rec.ID = w.m.id()
	rec.CreatedAt = time.Now()
	cp := *rec
	w.m.records[rec.ID] = &cp
	return nil
}

func (m *memStore) WithRecordTx(ctx context.Context, fn func(RecordWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(memWriter{m})
}

func (m *memStore) CountRecords(_ context.Context, batchID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.BatchID == batchID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetRecord(_ context.Context, id int64) (*ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) collect(keep func(*ProductRecord) bool) []ProductRecord {
	var out []ProductRecord
	for _, r := range m.records {
		if keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListRecords(_ context.Context, batchID int64, ids []int64) ([]ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return m.collect(func(r *ProductRecord) bool {
		return r.BatchID == batchID && (len(ids) == 0 || want[r.ID])
	}), nil
}

func (m *memStore) UpdateValidation(_ context.Context, rec *ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	r.ValidationStatus = rec.ValidationStatus
	r.CodeValidated = rec.CodeValidated
	r.SupplierValidated = rec.SupplierValidated
	r.ValidationError = rec.ValidationError
	return nil
}

func (m *memStore) ResetValidation(_ context.Context, batchID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.records {
		if r.BatchID == batchID {
			r.ValidationStatus = ValidationPending
			r.CodeValidated, r.SupplierValidated = false, false
			r.ValidationError = ""
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListPendingSync(_ context.Context, batchID int64) ([]ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(func(r *ProductRecord) bool {
		return (batchID == 0 || r.BatchID == batchID) && r.ValidationStatus == ValidationValid && !r.SyncedToERP
	}), nil
}

func (m *memStore) MarkRecordsSynced(_ context.Context, ids []int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			r.SyncedToERP, r.SyncedAt, r.SyncError = true, &at, ""
			n++
		}
	}
	return n, nil
}

func (m *memStore) SetSyncError(_ context.Context, id int64, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	r.SyncError = msg
	return nil
}

// fakeRegistry answers existence checks from fixed sets.
type fakeRegistry struct {
	mu        sync.Mutex
	products  map[string]bool // key: group + "|" + code
	suppliers map[string]bool
	failCode  string // ProductExists errors for this code
	calls     []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{products: map[string]bool{}, suppliers: map[string]bool{}}
}

func (f *fakeRegistry) addProduct(group, code string) { f.products[group+"|"+code] = true }

func (f *fakeRegistry) ProductExists(_ context.Context, code, group string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, code)
	if f.failCode != "" && code == f.failCode {
		return false, fmt.Errorf("%w: connection refused", erp.ErrConnection)
	}
	return f.products[group+"|"+code], nil
}

func (f *fakeRegistry) SupplierExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suppliers[code], nil
}

// fakeOrders records submitted orders.
type fakeOrders struct {
	orders []erp.PurchaseOrder
	tenant string
	err    error
}

func (f *fakeOrders) CreatePurchaseOrder(_ context.Context, tenant string, order erp.PurchaseOrder) (*erp.OrderResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tenant = tenant
	f.orders = append(f.orders, order)
	return &erp.OrderResponse{Number: fmt.Sprintf("%06d", len(f.orders))}, nil
}

// seedBatch stores a batch of the given type with records and returns it.
func seedBatch(t interface{ Fatalf(string, ...any) }, m *memStore, ft FileType, recs ...ProductRecord) *Batch {
	b := &Batch{Code: NewBatchCode(time.Now()), UploadID: fmt.Sprintf("up-%d", m.nextID+1), FileType: ft}
	if err := m.CreateBatch(context.Background(), b); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	err := m.WithRecordTx(context.Background(), func(w RecordWriter) error {
		for i := range recs {
			recs[i].BatchID = b.ID
			if recs[i].ValidationStatus == "" {
				recs[i].ValidationStatus = ValidationPending
			}
			if err := w.Insert(context.Background(), &recs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed records: %v", err)
	}
	return b
}

// Package sqlite implements core.Store on an embedded SQLite file through
// modernc.org/sqlite. It backs local runs and the persistence tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/prodcheck/internal/core"
	"github.com/JonMunkholm/prodcheck/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a core.Store backed by one SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer at a time; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) stamp() (time.Time, string) {
	t := s.now().UTC()
	return t, t.Format(timeLayout)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timeScanner reads a stored timestamp into dst, or into *nullDst when the
// column is nullable.
type timeScanner struct {
	dst     *time.Time
	nullDst **time.Time
}

func (ts timeScanner) Scan(src any) error {
	if src == nil {
		if ts.nullDst != nil {
			*ts.nullDst = nil
			return nil
		}
		return errors.New("unexpected NULL timestamp")
	}

	var t time.Time
	switch v := src.(type) {
	case time.Time:
		t = v
	case string, []byte:
		var text string
		if b, ok := v.([]byte); ok {
			text = string(b)
		} else {
			text = v.(string)
		}
		parsed, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", text, err)
		}
		t = parsed
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}

	if ts.nullDst != nil {
		*ts.nullDst = &t
	} else {
		*ts.dst = t
	}
	return nil
}

func scanTime(dst *time.Time) sql.Scanner      { return timeScanner{dst: dst} }
func scanNullTime(dst **time.Time) sql.Scanner { return timeScanner{nullDst: dst} }

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, core.ErrNotFound)...)
	}
	return err
}

func isUniqueViolation(err error, column string) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func inList(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(" + store.Placeholders(len(ids), func(int) string { return "?" }) + ")", args
}

// --- uploads ---

const uploadColumns = `id, file_name, file_path, file_type, uploaded_by, uploaded_at,
	status, total_records, processed_records, error_message, updated_at`

func (s *Store) CreateUpload(ctx context.Context, u *core.Upload) error {
	now, ts := s.stamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (id, file_name, file_path, file_type, uploaded_by, uploaded_at, status,
			total_records, processed_records, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FileName, u.FilePath, string(u.FileType), u.UploadedBy, ts, string(u.Status),
		u.TotalRecords, u.ProcessedRecords, u.ErrorMessage, ts,
	)
	if err != nil {
		return fmt.Errorf("insert upload %s: %w", u.ID, err)
	}
	u.UploadedAt, u.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateUpload(ctx context.Context, u *core.Upload) error {
	now, ts := s.stamp()
	res, err := s.db.ExecContext(ctx, `
		UPDATE uploads
		SET status = ?, total_records = ?, processed_records = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		string(u.Status), u.TotalRecords, u.ProcessedRecords, u.ErrorMessage, ts, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update upload %s: %w", u.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("upload %s: %w", u.ID, core.ErrNotFound)
	}
	u.UpdatedAt = now
	return nil
}

func (s *Store) GetUpload(ctx context.Context, id string) (*core.Upload, error) {
	var u core.Upload
	var ft, status string
	err := s.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id).Scan(
		&u.ID, &u.FileName, &u.FilePath, &ft, &u.UploadedBy, scanTime(&u.UploadedAt),
		&status, &u.TotalRecords, &u.ProcessedRecords, &u.ErrorMessage, scanTime(&u.UpdatedAt),
	)
	if err != nil {
		return nil, notFound(err, "upload %s", id)
	}
	u.FileType, u.Status = core.FileType(ft), core.UploadStatus(status)
	return &u, nil
}

func (s *Store) FailStaleUploads(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	_, ts := s.stamp()
	res, err := s.db.ExecContext(ctx, `
		UPDATE uploads SET status = ?, error_message = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?`,
		string(core.UploadFailed), message, ts, string(core.UploadProcessing), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale uploads: %w", err)
	}
	return res.RowsAffected()
}

// --- batches ---

const batchColumns = `id, batch_code, upload_id, file_type, fornecedor_code, product_group,
	synced_to_protheus, synced_at, created_at`

func (s *Store) CreateBatch(ctx context.Context, b *core.Batch) error {
	now, ts := s.stamp()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO batches (batch_code, upload_id, file_type, fornecedor_code, product_group, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		b.Code, b.UploadID, string(b.FileType), b.SupplierCode, b.ProductGroup, ts,
	).Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err, "batches.upload_id") {
			return core.ErrBatchExists
		}
		return fmt.Errorf("insert batch %s: %w", b.Code, err)
	}
	b.CreatedAt = now
	return nil
}

func scanBatch(row *sql.Row) (*core.Batch, error) {
	var b core.Batch
	var ft string
	if err := row.Scan(&b.ID, &b.Code, &b.UploadID, &ft, &b.SupplierCode, &b.ProductGroup,
		&b.SyncedToERP, scanNullTime(&b.SyncedAt), scanTime(&b.CreatedAt)); err != nil {
		return nil, err
	}
	b.FileType = core.FileType(ft)
	return &b, nil
}

func (s *Store) BatchForUpload(ctx context.Context, uploadID string) (*core.Batch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE upload_id = ?`, uploadID))
	if err != nil {
		return nil, notFound(err, "batch for upload %s", uploadID)
	}
	return b, nil
}

func (s *Store) GetBatch(ctx context.Context, code string) (*core.Batch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE batch_code = ?`, code))
	if err != nil {
		return nil, notFound(err, "batch %s", code)
	}
	return b, nil
}

func (s *Store) SetBatchContext(ctx context.Context, batchID int64, supplierCode, productGroup string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET fornecedor_code = ?, product_group = ? WHERE id = ?`,
		supplierCode, productGroup, batchID)
	if err != nil {
		return fmt.Errorf("set batch context: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("batch %d: %w", batchID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkBatchSynced(ctx context.Context, batchID int64, at time.Time, withRecords bool) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ts := formatTime(at)
	res, err := tx.ExecContext(ctx, `UPDATE batches SET synced_to_protheus = 1, synced_at = ? WHERE id = ?`, ts, batchID)
	if err != nil {
		return 0, fmt.Errorf("mark batch %d synced: %w", batchID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("batch %d: %w", batchID, core.ErrNotFound)
	}

	var n int64
	if withRecords {
		res, err = tx.ExecContext(ctx, `
			UPDATE products SET synced_to_protheus = 1, protheus_sync_date = ?, protheus_error = ''
			WHERE batch_id = ?`, ts, batchID)
		if err != nil {
			return 0, fmt.Errorf("mark products of batch %d synced: %w", batchID, err)
		}
		n, _ = res.RowsAffected()
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// --- products ---

var (
	insertProductSQL = fmt.Sprintf(
		`INSERT INTO products (batch_id, validation_status, created_at, %s) VALUES (%s) RETURNING id`,
		strings.Join(store.FieldColumns, ", "),
		store.Placeholders(len(store.FieldColumns)+3, func(int) string { return "?" }),
	)
	selectProductSQL = `SELECT ` + store.SelectColumns() + ` FROM products`
)

type recordWriter struct {
	tx  *sql.Tx
	now func() time.Time
	n   int
}

func (w *recordWriter) Insert(ctx context.Context, rec *core.ProductRecord) error {
	fields, err := store.FieldArgs(rec)
	if err != nil {
		return err
	}
	created := w.now().UTC()
	args := append([]any{rec.BatchID, string(rec.ValidationStatus), formatTime(created)}, fields...)

	w.n++
	savepoint := fmt.Sprintf("sp_%d", w.n)
	if _, err := w.tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := w.tx.QueryRowContext(ctx, insertProductSQL, args...).Scan(&rec.ID); err != nil {
		_, _ = w.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
		return fmt.Errorf("insert: %w", err)
	}
	_, _ = w.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint)
	rec.CreatedAt = created
	return nil
}

func (s *Store) WithRecordTx(ctx context.Context, fn func(w core.RecordWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&recordWriter{tx: tx, now: s.now}); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*core.ProductRecord, error) {
	var rec core.ProductRecord
	var raw []byte
	var status string
	dest := []any{&rec.ID, &rec.BatchID}
	dest = append(dest, store.FieldDest(&rec, &raw)...)
	dest = append(dest, &status, &rec.CodeValidated, &rec.SupplierValidated, &rec.ValidationError,
		&rec.SyncedToERP, scanNullTime(&rec.SyncedAt), &rec.SyncError, scanTime(&rec.CreatedAt))
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec.ValidationStatus = core.ValidationStatus(status)
	if err := store.DecodeRaw(&rec, raw); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]core.ProductRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ProductRecord
	for rows.Next() {
		rec, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *Store) CountRecords(ctx context.Context, batchID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products WHERE batch_id = ?`, batchID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (s *Store) GetRecord(ctx context.Context, id int64) (*core.ProductRecord, error) {
	rec, err := scanProduct(s.db.QueryRowContext(ctx, selectProductSQL+` WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "product %d", id)
	}
	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context, batchID int64, ids []int64) ([]core.ProductRecord, error) {
	query := selectProductSQL + ` WHERE batch_id = ?`
	args := []any{batchID}
	if len(ids) > 0 {
		in, idArgs := inList(ids)
		query += ` AND id IN ` + in
		args = append(args, idArgs...)
	}
	recs, err := s.queryProducts(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list products of batch %d: %w", batchID, err)
	}
	return recs, nil
}

func (s *Store) UpdateValidation(ctx context.Context, rec *core.ProductRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET validation_status = ?, code_validated = ?, supplier_validated = ?, validation_error = ?
		WHERE id = ?`,
		string(rec.ValidationStatus), rec.CodeValidated, rec.SupplierValidated, rec.ValidationError, rec.ID)
	if err != nil {
		return fmt.Errorf("update validation of product %d: %w", rec.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", rec.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) ResetValidation(ctx context.Context, batchID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET validation_status = ?, code_validated = 0, supplier_validated = 0, validation_error = ''
		WHERE batch_id = ?`, string(core.ValidationPending), batchID)
	if err != nil {
		return 0, fmt.Errorf("reset validation of batch %d: %w", batchID, err)
	}
	return res.RowsAffected()
}

func (s *Store) ListPendingSync(ctx context.Context, batchID int64) ([]core.ProductRecord, error) {
	query := selectProductSQL + ` WHERE validation_status = ? AND synced_to_protheus = 0`
	args := []any{string(core.ValidationValid)}
	if batchID != 0 {
		query += ` AND batch_id = ?`
		args = append(args, batchID)
	}
	recs, err := s.queryProducts(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	return recs, nil
}

func (s *Store) MarkRecordsSynced(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	in, idArgs := inList(ids)
	args := append([]any{formatTime(at)}, idArgs...)
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET synced_to_protheus = 1, protheus_sync_date = ?, protheus_error = ''
		WHERE id IN `+in, args...)
	if err != nil {
		return 0, fmt.Errorf("mark products synced: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) SetSyncError(ctx context.Context, id int64, message string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET protheus_error = ? WHERE id = ?`, message, id)
	if err != nil {
		return fmt.Errorf("set sync error of product %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// Package postgres implements core.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/prodcheck/internal/core"
	"github.com/JonMunkholm/prodcheck/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a core.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// Open connects to url, verifies the connection and returns a Store.
func Open(ctx context.Context, url string, pc PoolConfig) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = int32(pc.MaxConns)
	}
	if pc.MinConns > 0 {
		cfg.MinConns = int32(pc.MinConns)
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, core.ErrNotFound)...)
	}
	return err
}

func isUniqueViolation(err error, column string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation &&
		strings.Contains(pgErr.ConstraintName, column)
}

// --- uploads ---

const uploadColumns = `id, file_name, file_path, file_type, uploaded_by, uploaded_at,
	status, total_records, processed_records, error_message, updated_at`

func (s *Store) CreateUpload(ctx context.Context, u *core.Upload) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO uploads (id, file_name, file_path, file_type, uploaded_by, status,
			total_records, processed_records, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING uploaded_at, updated_at`,
		u.ID, u.FileName, u.FilePath, string(u.FileType), u.UploadedBy, string(u.Status),
		u.TotalRecords, u.ProcessedRecords, u.ErrorMessage,
	).Scan(&u.UploadedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert upload %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) UpdateUpload(ctx context.Context, u *core.Upload) error {
	err := s.pool.QueryRow(ctx, `
		UPDATE uploads
		SET status = $2, total_records = $3, processed_records = $4, error_message = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, string(u.Status), u.TotalRecords, u.ProcessedRecords, u.ErrorMessage,
	).Scan(&u.UpdatedAt)
	if err != nil {
		return notFound(err, "upload %s", u.ID)
	}
	return nil
}

func (s *Store) GetUpload(ctx context.Context, id string) (*core.Upload, error) {
	var u core.Upload
	var ft, status string
	err := s.pool.QueryRow(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = $1`, id).Scan(
		&u.ID, &u.FileName, &u.FilePath, &ft, &u.UploadedBy, &u.UploadedAt,
		&status, &u.TotalRecords, &u.ProcessedRecords, &u.ErrorMessage, &u.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "upload %s", id)
	}
	u.FileType, u.Status = core.FileType(ft), core.UploadStatus(status)
	return &u, nil
}

func (s *Store) FailStaleUploads(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE uploads SET status = $1, error_message = $2, updated_at = now()
		WHERE status = $3 AND updated_at < $4`,
		string(core.UploadFailed), message, string(core.UploadProcessing), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale uploads: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- batches ---

const batchColumns = `id, batch_code, upload_id, file_type, fornecedor_code, product_group,
	synced_to_protheus, synced_at, created_at`

func (s *Store) CreateBatch(ctx context.Context, b *core.Batch) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO batches (batch_code, upload_id, file_type, fornecedor_code, product_group)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		b.Code, b.UploadID, string(b.FileType), b.SupplierCode, b.ProductGroup,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "upload_id") {
			return core.ErrBatchExists
		}
		return fmt.Errorf("insert batch %s: %w", b.Code, err)
	}
	return nil
}

func (s *Store) scanBatch(row pgx.Row) (*core.Batch, error) {
	var b core.Batch
	var ft string
	if err := row.Scan(&b.ID, &b.Code, &b.UploadID, &ft, &b.SupplierCode, &b.ProductGroup,
		&b.SyncedToERP, &b.SyncedAt, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.FileType = core.FileType(ft)
	return &b, nil
}

func (s *Store) BatchForUpload(ctx context.Context, uploadID string) (*core.Batch, error) {
	b, err := s.scanBatch(s.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE upload_id = $1`, uploadID))
	if err != nil {
		return nil, notFound(err, "batch for upload %s", uploadID)
	}
	return b, nil
}

func (s *Store) GetBatch(ctx context.Context, code string) (*core.Batch, error) {
	b, err := s.scanBatch(s.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE batch_code = $1`, code))
	if err != nil {
		return nil, notFound(err, "batch %s", code)
	}
	return b, nil
}

func (s *Store) SetBatchContext(ctx context.Context, batchID int64, supplierCode, productGroup string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET fornecedor_code = $2, product_group = $3 WHERE id = $1`,
		batchID, supplierCode, productGroup)
	if err != nil {
		return fmt.Errorf("set batch context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch %d: %w", batchID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkBatchSynced(ctx context.Context, batchID int64, at time.Time, withRecords bool) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE batches SET synced_to_protheus = true, synced_at = $2 WHERE id = $1`, batchID, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("batch %d: %w", batchID, core.ErrNotFound)
		}
		if !withRecords {
			return nil
		}
		tag, err = tx.Exec(ctx, `
			UPDATE products SET synced_to_protheus = true, protheus_sync_date = $2, protheus_error = ''
			WHERE batch_id = $1`, batchID, at)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark batch %d synced: %w", batchID, err)
	}
	return n, nil
}

// --- products ---

var (
	insertProductSQL = fmt.Sprintf(
		`INSERT INTO products (batch_id, validation_status, %s) VALUES (%s) RETURNING id, created_at`,
		strings.Join(store.FieldColumns, ", "),
		store.Placeholders(len(store.FieldColumns)+2, func(i int) string { return fmt.Sprintf("$%d", i) }),
	)
	selectProductSQL = `SELECT ` + store.SelectColumns() + ` FROM products`
)

// recordWriter inserts each record under its own savepoint so one failure
// does not abort the enclosing transaction.
type recordWriter struct {
	tx pgx.Tx
	n  int
}

func (w *recordWriter) Insert(ctx context.Context, rec *core.ProductRecord) error {
	fields, err := store.FieldArgs(rec)
	if err != nil {
		return err
	}
	args := append([]any{rec.BatchID, string(rec.ValidationStatus)}, fields...)

	w.n++
	savepoint := fmt.Sprintf("sp_%d", w.n)
	if _, err := w.tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := w.tx.QueryRow(ctx, insertProductSQL, args...).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		_, _ = w.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
		return fmt.Errorf("insert: %w", err)
	}
	_, _ = w.tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint)
	return nil
}

func (s *Store) WithRecordTx(ctx context.Context, fn func(w core.RecordWriter) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&recordWriter{tx: tx})
	})
}

func scanProduct(row pgx.Row) (*core.ProductRecord, error) {
	var rec core.ProductRecord
	var raw []byte
	var status string
	dest := []any{&rec.ID, &rec.BatchID}
	dest = append(dest, store.FieldDest(&rec, &raw)...)
	dest = append(dest, &status, &rec.CodeValidated, &rec.SupplierValidated, &rec.ValidationError,
		&rec.SyncedToERP, &rec.SyncedAt, &rec.SyncError, &rec.CreatedAt)
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
	rows, err := s.pool.Query(ctx, query, args...)
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
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE batch_id = $1`, batchID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (s *Store) GetRecord(ctx context.Context, id int64) (*core.ProductRecord, error) {
	rec, err := scanProduct(s.pool.QueryRow(ctx, selectProductSQL+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "product %d", id)
	}
	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context, batchID int64, ids []int64) ([]core.ProductRecord, error) {
	var (
		recs []core.ProductRecord
		err  error
	)
	if len(ids) == 0 {
		recs, err = s.queryProducts(ctx, selectProductSQL+` WHERE batch_id = $1 ORDER BY id`, batchID)
	} else {
		recs, err = s.queryProducts(ctx, selectProductSQL+` WHERE batch_id = $1 AND id = ANY($2) ORDER BY id`, batchID, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("list products of batch %d: %w", batchID, err)
	}
	return recs, nil
}

func (s *Store) UpdateValidation(ctx context.Context, rec *core.ProductRecord) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET validation_status = $2, code_validated = $3, supplier_validated = $4, validation_error = $5
		WHERE id = $1`,
		rec.ID, string(rec.ValidationStatus), rec.CodeValidated, rec.SupplierValidated, rec.ValidationError)
	if err != nil {
		return fmt.Errorf("update validation of product %d: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", rec.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) ResetValidation(ctx context.Context, batchID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET validation_status = $2, code_validated = false, supplier_validated = false, validation_error = ''
		WHERE batch_id = $1`, batchID, string(core.ValidationPending))
	if err != nil {
		return 0, fmt.Errorf("reset validation of batch %d: %w", batchID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListPendingSync(ctx context.Context, batchID int64) ([]core.ProductRecord, error) {
	recs, err := s.queryProducts(ctx, selectProductSQL+`
		WHERE validation_status = $1 AND NOT synced_to_protheus AND ($2::bigint = 0 OR batch_id = $2::bigint)
		ORDER BY id`, string(core.ValidationValid), batchID)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	return recs, nil
}

func (s *Store) MarkRecordsSynced(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE products SET synced_to_protheus = true, protheus_sync_date = $2, protheus_error = ''
		WHERE id = ANY($1)`, ids, at)
	if err != nil {
		return 0, fmt.Errorf("mark products synced: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) SetSyncError(ctx context.Context, id int64, message string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE products SET protheus_error = $2 WHERE id = $1`, id, message)
	if err != nil {
		return fmt.Errorf("set sync error of product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, core.ErrNotFound)
	}
	return nil
}

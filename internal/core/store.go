package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Store when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBatchExists is returned by CreateBatch when the upload already owns a batch.
	ErrBatchExists = errors.New("upload already has a batch")
)

// Store persists uploads, batches and product records.
// Implementations live under internal/store.
type Store interface {
	CreateUpload(ctx context.Context, u *Upload) error
	// UpdateUpload writes status, counts and error message.
	UpdateUpload(ctx context.Context, u *Upload) error
	GetUpload(ctx context.Context, id string) (*Upload, error)
	// FailStaleUploads marks uploads PROCESSING since before cutoff as FAILED.
	FailStaleUploads(ctx context.Context, cutoff time.Time, message string) (int64, error)

	// CreateBatch inserts b and sets its ID and CreatedAt. Returns ErrBatchExists
	// if b.UploadID already owns a batch.
	CreateBatch(ctx context.Context, b *Batch) error
	BatchForUpload(ctx context.Context, uploadID string) (*Batch, error)
	GetBatch(ctx context.Context, code string) (*Batch, error)
	SetBatchContext(ctx context.Context, batchID int64, supplierCode, productGroup string) error
	// MarkBatchSynced flags the batch and, if withRecords, every record in it.
	MarkBatchSynced(ctx context.Context, batchID int64, at time.Time, withRecords bool) (int64, error)

	// WithRecordTx runs fn inside one transaction and commits when fn returns nil.
	WithRecordTx(ctx context.Context, fn func(w RecordWriter) error) error
	CountRecords(ctx context.Context, batchID int64) (int, error)
	GetRecord(ctx context.Context, id int64) (*ProductRecord, error)
	// ListRecords returns the batch's records ordered by id; ids narrows the set when non-empty.
	ListRecords(ctx context.Context, batchID int64, ids []int64) ([]ProductRecord, error)
	UpdateValidation(ctx context.Context, rec *ProductRecord) error
	// ResetValidation returns every record of the batch to PENDING with cleared flags and error.
	ResetValidation(ctx context.Context, batchID int64) (int64, error)

	// ListPendingSync returns VALID records not yet synced; batchID 0 means all batches.
	ListPendingSync(ctx context.Context, batchID int64) ([]ProductRecord, error)
	MarkRecordsSynced(ctx context.Context, ids []int64, at time.Time) (int64, error)
	SetSyncError(ctx context.Context, id int64, message string) error
}

// RecordWriter inserts records inside a transaction. A failed Insert must
// leave earlier inserts intact and the transaction usable.
type RecordWriter interface {
	Insert(ctx context.Context, rec *ProductRecord) error
}

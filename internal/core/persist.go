package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/JonMunkholm/prodcheck/internal/logging"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordError describes one record that could not be saved.
type RecordError struct {
	Index int // 1-based position in the extracted sequence
	Code  string
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (code %q): %v", e.Index, e.Code, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Persister creates the batch for an upload and saves its records, tolerating
// failure of individual records.
type Persister struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

// NewPersister returns a Persister writing to store.
func NewPersister(store Store) *Persister {
	return &Persister{
		store:    store,
		validate: newRecordValidator(),
		now:      time.Now,
	}
}

// newRecordValidator builds the validator for ProductRecord field limits.
// NullDecimal values are checked only for presence, so "required" rejects an
// unparsable decimal without rendering the number.
func newRecordValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.NullDecimal); ok && d.Valid {
			return true
		}
		return nil
	}, decimal.NullDecimal{})
	return v
}

// NewBatchCode returns a code of the form BATCH-<YYYYmmddHHMMSS>-<8 hex>.
func NewBatchCode(now time.Time) string {
	return fmt.Sprintf("BATCH-%s-%s", now.Format("20060102150405"), uuid.NewString()[:8])
}

// Persist saves records under a new batch for upload.
//
// If the upload already owns a batch nothing is written and the existing code
// is returned. The batch row is committed before any record is attempted, so
// it survives record failures. Records are inserted in one transaction; a
// failing record is reported in Errors and does not affect the others.
func (p *Persister) Persist(ctx context.Context, upload *Upload, records []ProductRecord) (*PersistResult, error) {
	log := logging.WithFields(ctx, "upload_id", upload.ID)

	if existing, err := p.store.BatchForUpload(ctx, upload.ID); err == nil {
		return p.existingResult(ctx, existing, len(records))
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing batch: %w", err)
	}

	batch := &Batch{
		Code:     NewBatchCode(p.now()),
		UploadID: upload.ID,
		FileType: upload.FileType,
	}
	if err := p.store.CreateBatch(ctx, batch); err != nil {
		if errors.Is(err, ErrBatchExists) {
			// a concurrent retry won the race
			existing, getErr := p.store.BatchForUpload(ctx, upload.ID)
			if getErr != nil {
				return nil, fmt.Errorf("load concurrent batch: %w", getErr)
			}
			return p.existingResult(ctx, existing, len(records))
		}
		return nil, fmt.Errorf("create batch: %w", err)
	}

	log = log.With("batch_code", batch.Code)
	result := &PersistResult{
		Total:     len(records),
		Errors:    []string{},
		BatchCode: batch.Code,
		Batch:     batch,
	}

	err := p.store.WithRecordTx(ctx, func(w RecordWriter) error {
		for i := range records {
			rec := records[i]
			rec.BatchID = batch.ID
			rec.ValidationStatus = ValidationPending

			if err := p.saveRecord(ctx, w, &rec); err != nil {
				recErr := &RecordError{Index: i + 1, Code: rec.ProductCode, Err: err}
				log.Warn("record not saved", "record", i+1, "code", rec.ProductCode, "error", err)
				result.Errors = append(result.Errors, recErr.Error())
				continue
			}
			records[i].ID = rec.ID
			records[i].BatchID = batch.ID
			result.Saved++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save records for batch %s: %w", batch.Code, err)
	}

	log.Info("batch persisted", "total", result.Total, "saved", result.Saved, "failed", len(result.Errors))
	return result, nil
}

func (p *Persister) saveRecord(ctx context.Context, w RecordWriter, rec *ProductRecord) error {
	if err := p.validate.Struct(rec); err != nil {
		return describeValidation(err)
	}
	return w.Insert(ctx, rec)
}

func (p *Persister) existingResult(ctx context.Context, batch *Batch, total int) (*PersistResult, error) {
	saved, err := p.store.CountRecords(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("count records of batch %s: %w", batch.Code, err)
	}
	logging.WithFields(ctx, "upload_id", batch.UploadID, "batch_code", batch.Code).
		Info("upload already persisted, reusing batch")
	return &PersistResult{
		Total:     total,
		Saved:     saved,
		Errors:    []string{},
		BatchCode: batch.Code,
		Batch:     batch,
		Existing:  true,
	}, nil
}

// describeValidation flattens validator errors into "field: rule" phrases.
func describeValidation(err error) error {
	desc, ok := describeFields(err)
	if !ok {
		return err
	}
	return fmt.Errorf("invalid record: %s", desc)
}

func describeFields(err error) (string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "", false
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s exceeds %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, ", "), true
}

// ErrInvalidRequest is returned when a request body breaks its validate tags.
var ErrInvalidRequest = errors.New("invalid request")

var requestValidator = newRecordValidator()

// ValidateRequest checks v against its validate tags.
func ValidateRequest(v any) error {
	err := requestValidator.Struct(v)
	if err == nil {
		return nil
	}
	if desc, ok := describeFields(err); ok {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, desc)
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

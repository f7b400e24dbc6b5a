package core

// intake.go drives an Upload through PENDING -> PROCESSING -> COMPLETED|FAILED.
// Structural failures (unreadable file, unknown type, no products) end in
// FAILED with the error text on the upload; they are returned as a result,
// never as a panic or error to the caller.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/logging"
	"github.com/google/uuid"
)

var (
	// ErrNoRecords means the extractor found no usable product in the file.
	ErrNoRecords = errors.New("no products found in file")

	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when an intake request carries no file.
	ErrNoFile = errors.New("no file provided")
)

// IntakeRequest is one file handed to the pipeline.
type IntakeRequest struct {
	FileName string
	// FileType is the declared type; empty means infer from the extension.
	FileType   FileType
	UploadedBy string
	Content    io.Reader
}

// Intake stores the file, records a PENDING upload and processes it.
// The returned error covers only failures before the upload exists;
// afterwards the outcome is in the IntakeResult.
func (s *Service) Intake(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	name := filepath.Base(strings.TrimSpace(req.FileName))
	if req.Content == nil || name == "" || name == "." {
		return nil, ErrNoFile
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	id := uuid.NewString()
	path, err := s.saveFile(id, name, req.Content)
	if err != nil {
		return nil, err
	}

	ft := ParseFileType(string(req.FileType))
	if ft == "" {
		ft = inferFileType(name)
	}

	uploadedBy := req.UploadedBy
	if uploadedBy == "" {
		uploadedBy = OperatorFromContext(ctx)
	}

	now := s.now()
	upload := &Upload{
		ID:         id,
		FileName:   name,
		FilePath:   path,
		FileType:   ft,
		UploadedBy: uploadedBy,
		UploadedAt: now,
		UpdatedAt:  now,
		Status:     UploadPending,
	}
	if err := s.store.CreateUpload(ctx, upload); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("create upload: %w", err)
	}

	logging.WithFields(ctx, "upload_id", id).Info("upload received",
		"file", name, "file_type", ft, "uploaded_by", uploadedBy)
	return s.ProcessUpload(ctx, id), nil
}

// RetryUpload processes an existing upload again. The persister's
// idempotency guard keeps a retry from creating a second batch.
func (s *Service) RetryUpload(ctx context.Context, id string) (*IntakeResult, error) {
	if _, err := s.store.GetUpload(ctx, id); err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()
	return s.ProcessUpload(ctx, id), nil
}

// ProcessUpload runs the extractor and persister for the upload. A COMPLETED
// upload is reported as is; a PENDING or FAILED one is (re)processed.
func (s *Service) ProcessUpload(ctx context.Context, uploadID string) (result *IntakeResult) {
	log := logging.WithFields(ctx, "upload_id", uploadID)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, "upload:"+uploadID)
	if err != nil {
		log.Warn("upload is being processed elsewhere", "error", err)
		return &IntakeResult{UploadID: uploadID, Message: err.Error()}
	}
	defer unlock()

	upload, err := s.store.GetUpload(ctx, uploadID)
	if err != nil {
		log.Error("load upload failed", "error", err)
		return &IntakeResult{UploadID: uploadID, Message: err.Error()}
	}
	if upload.Status == UploadCompleted {
		return s.completedResult(ctx, upload)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in intake", "panic", r, "stack", string(debug.Stack()))
			result = s.failUpload(ctx, upload, fmt.Errorf("internal error: %v", r))
		}
	}()

	upload.Status = UploadProcessing
	upload.ErrorMessage = ""
	upload.UpdatedAt = s.now()
	if err := s.store.UpdateUpload(ctx, upload); err != nil {
		return s.failUpload(ctx, upload, fmt.Errorf("mark processing: %w", err))
	}
	log.Info("upload processing", "file_type", upload.FileType)

	persisted, err := s.runIntake(ctx, upload)
	if err != nil {
		return s.failUpload(ctx, upload, err)
	}

	upload.Status = UploadCompleted
	upload.TotalRecords = persisted.Total
	upload.ProcessedRecords = persisted.Saved
	upload.UpdatedAt = s.now()
	if err := s.store.UpdateUpload(context.WithoutCancel(ctx), upload); err != nil {
		return s.failUpload(ctx, upload, fmt.Errorf("mark completed: %w", err))
	}

	log.Info("upload completed", "batch_code", persisted.BatchCode,
		"total", persisted.Total, "saved", persisted.Saved, "failed", len(persisted.Errors))
	return &IntakeResult{
		Success:   true,
		UploadID:  upload.ID,
		Status:    string(UploadCompleted),
		Message:   fmt.Sprintf("%d of %d products saved", persisted.Saved, persisted.Total),
		Total:     persisted.Total,
		Saved:     persisted.Saved,
		Errors:    persisted.Errors,
		BatchCode: persisted.BatchCode,
	}
}

func (s *Service) runIntake(ctx context.Context, upload *Upload) (*PersistResult, error) {
	extractor, err := ExtractorFor(upload.FileType)
	if err != nil {
		return nil, err
	}

	records, err := extractor.Extract(ctx, upload.FilePath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", upload.FileName, err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	return s.persister.Persist(ctx, upload, records)
}

// failUpload records err on the upload. The write ignores cancellation so a
// timed out intake still ends in FAILED.
func (s *Service) failUpload(ctx context.Context, upload *Upload, err error) *IntakeResult {
	log := logging.WithFields(ctx, "upload_id", upload.ID)

	upload.Status = UploadFailed
	upload.ErrorMessage = err.Error()
	upload.UpdatedAt = s.now()
	if uerr := s.store.UpdateUpload(context.WithoutCancel(ctx), upload); uerr != nil {
		log.Error("mark upload failed", "error", uerr, "cause", err)
	}
	log.Error("upload failed", "error", err)

	return &IntakeResult{
		UploadID: upload.ID,
		Status:   string(UploadFailed),
		Message:  err.Error(),
		Total:    upload.TotalRecords,
		Saved:    upload.ProcessedRecords,
	}
}

func (s *Service) completedResult(ctx context.Context, upload *Upload) *IntakeResult {
	res := &IntakeResult{
		Success:  true,
		UploadID: upload.ID,
		Status:   string(upload.Status),
		Message:  "upload already processed",
		Total:    upload.TotalRecords,
		Saved:    upload.ProcessedRecords,
	}
	if batch, err := s.store.BatchForUpload(ctx, upload.ID); err == nil {
		res.BatchCode = batch.Code
	}
	return res
}

// saveFile writes content under uploadDir/YYYY/MM/DD/<id>-<name>, enforcing the size limit.
func (s *Service) saveFile(id, name string, content io.Reader) (string, error) {
	dir := filepath.Join(s.uploadDir, s.now().Format("2006/01/02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, id+"-"+name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(content, s.maxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	case n > s.maxFileSize:
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxFileSize)
	case n == 0:
		_ = os.Remove(path)
		return "", ErrNoFile
	}
	return path, nil
}

// ParseFileType maps a declared type onto a FileType. Unknown values are
// kept upper-cased so the orchestrator can reject them.
func ParseFileType(s string) FileType {
	switch v := strings.ToUpper(strings.TrimSpace(s)); v {
	case "EXCEL", "SPREADSHEET", "XLSX", "XLS":
		return FileTypeSpreadsheet
	default:
		return FileType(v)
	}
}

func inferFileType(name string) FileType {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm", ".xls":
		return FileTypeSpreadsheet
	case ".xml":
		return FileTypeXML
	default:
		return FileType(strings.ToUpper(strings.TrimPrefix(ext, ".")))
	}
}

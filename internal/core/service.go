package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/JonMunkholm/prodcheck/internal/erp"
)

// OrderClient submits purchase orders to the ERP. *erp.Client implements it.
type OrderClient interface {
	CreatePurchaseOrder(ctx context.Context, tenant string, order erp.PurchaseOrder) (*erp.OrderResponse, error)
}

// ServiceConfig configures a Service. Zero values fall back to defaults.
type ServiceConfig struct {
	UploadDir     string
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration

	// Registry answers existence checks. Nil disables validation.
	Registry Registry
	// Orders submits purchase orders. Nil disables submission.
	Orders OrderClient
	// Tenant is the default ERP branch for submitted orders.
	Tenant string
	// Locker serializes intake per upload. Nil means an in-process locker.
	Locker Locker
}

// Service is the entry point for catalog intake, validation and ERP sync.
type Service struct {
	store     Store
	persister *Persister
	validator *Validator
	orders    OrderClient
	limiter   *IntakeLimiter
	locker    Locker

	uploadDir   string
	maxFileSize int64
	timeout     time.Duration
	tenant      string
	now         func() time.Time
}

// NewService creates a Service and makes sure the upload directory exists.
func NewService(store Store, cfg ServiceConfig) (*Service, error) {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Locker == nil {
		cfg.Locker = NewLocalLocker()
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &Service{
		store:       store,
		persister:   NewPersister(store),
		validator:   NewValidator(store, cfg.Registry),
		orders:      cfg.Orders,
		limiter:     NewIntakeLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		locker:      cfg.Locker,
		uploadDir:   cfg.UploadDir,
		maxFileSize: cfg.MaxFileSize,
		timeout:     cfg.Timeout,
		tenant:      cfg.Tenant,
		now:         time.Now,
	}, nil
}

// BatchDetail is a batch with its records.
type BatchDetail struct {
	Batch   *Batch          `json:"batch"`
	Records []ProductRecord `json:"records"`
}

// GetUpload returns the upload with its status and counts.
func (s *Service) GetUpload(ctx context.Context, id string) (*Upload, error) {
	return s.store.GetUpload(ctx, id)
}

// GetBatch returns the batch identified by code.
func (s *Service) GetBatch(ctx context.Context, code string) (*Batch, error) {
	return s.store.GetBatch(ctx, code)
}

// BatchForUpload returns the batch created from the upload.
func (s *Service) BatchForUpload(ctx context.Context, uploadID string) (*Batch, error) {
	return s.store.BatchForUpload(ctx, uploadID)
}

// GetBatchDetail returns the batch and all its records ordered by id.
func (s *Service) GetBatchDetail(ctx context.Context, code string) (*BatchDetail, error) {
	batch, err := s.store.GetBatch(ctx, code)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, batch.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("list records of batch %s: %w", code, err)
	}
	return &BatchDetail{Batch: batch, Records: records}, nil
}

// GetProduct returns one product record.
func (s *Service) GetProduct(ctx context.Context, id int64) (*ProductRecord, error) {
	return s.store.GetRecord(ctx, id)
}

// SetBatchContext stores the normalization context chosen by a reviewer.
func (s *Service) SetBatchContext(ctx context.Context, code, supplierCode, productGroup string) (*Batch, error) {
	batch, err := s.store.GetBatch(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetBatchContext(ctx, batch.ID, supplierCode, productGroup); err != nil {
		return nil, fmt.Errorf("set context of batch %s: %w", code, err)
	}
	batch.SupplierCode = supplierCode
	batch.ProductGroup = productGroup
	return batch, nil
}

// ValidateBatch runs the validation engine over the batch, or over the given
// products of it when productIDs is non-empty.
func (s *Service) ValidateBatch(ctx context.Context, code string, productIDs []int64) (*ValidationSummary, error) {
	return s.validator.Validate(ctx, code, productIDs)
}

// ReprocessBatch resets every record of the batch to PENDING.
func (s *Service) ReprocessBatch(ctx context.Context, code string) (int64, error) {
	return s.validator.Reprocess(ctx, code)
}

// LimiterStatus reports intake slot occupancy.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until running intakes finish or ctx ends.
// Used during graceful shutdown.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// FileType is the declared format of an uploaded catalog.
type FileType string

const (
	FileTypeSpreadsheet FileType = "EXCEL"
	FileTypeXML         FileType = "XML"
)

// UploadStatus is the lifecycle state of an Upload.
type UploadStatus string

const (
	UploadPending    UploadStatus = "PENDING"
	UploadProcessing UploadStatus = "PROCESSING"
	UploadCompleted  UploadStatus = "COMPLETED"
	UploadFailed     UploadStatus = "FAILED"
)

// Terminal reports whether no further orchestrator transitions apply.
func (s UploadStatus) Terminal() bool {
	return s == UploadCompleted || s == UploadFailed
}

// ValidationStatus is the review state of a ProductRecord.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "PENDING"
	ValidationValid   ValidationStatus = "VALID"
	ValidationInvalid ValidationStatus = "INVALID"
)

// Upload is one ingested file.
type Upload struct {
	ID               string       `json:"id"`
	FileName         string       `json:"file_name"`
	FilePath         string       `json:"-"`
	FileType         FileType     `json:"file_type"`
	UploadedBy       string       `json:"uploaded_by,omitempty"`
	UploadedAt       time.Time    `json:"uploaded_at"`
	Status           UploadStatus `json:"status"`
	TotalRecords     int          `json:"total_records"`
	ProcessedRecords int          `json:"processed_records"`
	ErrorMessage     string       `json:"error_message,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Batch groups the records produced from exactly one Upload.
type Batch struct {
	ID           int64      `json:"id"`
	Code         string     `json:"batch_code"`
	UploadID     string     `json:"upload_id"`
	FileType     FileType   `json:"file_type"`
	SupplierCode string     `json:"fornecedor_code,omitempty"`
	ProductGroup string     `json:"product_group,omitempty"`
	SyncedToERP  bool       `json:"synced_to_protheus"`
	SyncedAt     *time.Time `json:"synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ProductRecord is one catalog line. Extractors fill the business fields and
// Raw; the persister assigns ID and BatchID; the validator owns the
// validation fields; only confirmed ERP acceptance sets the sync fields.
type ProductRecord struct {
	ID      int64 `json:"id"`
	BatchID int64 `json:"batch_id"`

	ProductCode      string              `json:"product_code" validate:"required,max=50"`
	Description      string              `json:"description" validate:"required,max=255"`
	ShortDescription string              `json:"short_description,omitempty" validate:"max=100"`
	ProductType      string              `json:"product_type,omitempty" validate:"max=50"`
	ProductGroup     string              `json:"product_group,omitempty" validate:"max=50"`
	ProductCategory  string              `json:"product_category,omitempty" validate:"max=50"`
	UnitOfMeasure    string              `json:"unit_of_measure,omitempty" validate:"max=10"`
	SecondUnit       string              `json:"second_unit,omitempty" validate:"max=10"`
	ConversionFactor decimal.NullDecimal `json:"conversion_factor"`
	SalePrice        decimal.NullDecimal `json:"sale_price"`
	CostPrice        decimal.NullDecimal `json:"cost_price"`
	Currency         string              `json:"currency" validate:"max=3"`
	CurrentStock     decimal.NullDecimal `json:"current_stock" validate:"required"`
	MinimumStock     decimal.NullDecimal `json:"minimum_stock"`
	WarehouseCode    string              `json:"warehouse_code,omitempty" validate:"max=20"`
	NCMCode          string              `json:"ncm_code,omitempty" validate:"max=20"`
	IPIPercentage    decimal.NullDecimal `json:"ipi_percentage"`
	ICMSPercentage   decimal.NullDecimal `json:"icms_percentage"`
	ICMSBase         decimal.NullDecimal `json:"icms_base"`
	Origin           string              `json:"origin,omitempty" validate:"max=1"`
	Quantity         decimal.NullDecimal `json:"quantity"`
	UnitValue        decimal.NullDecimal `json:"unit_value"`
	Discount         decimal.NullDecimal `json:"discount"`
	SupplierCode     string              `json:"supplier_code,omitempty" validate:"max=50"`
	SupplierName     string              `json:"supplier_name,omitempty" validate:"max=255"`
	Barcode          string              `json:"barcode,omitempty" validate:"max=50"`
	Weight           decimal.NullDecimal `json:"weight"`
	WeightUnit       string              `json:"weight_unit" validate:"max=5"`
	Active           bool                `json:"active"`
	Observations     string              `json:"observations,omitempty"`

	// Raw is the source row or element as read, keyed by original header or tag.
	Raw map[string]any `json:"raw_data,omitempty"`

	ValidationStatus  ValidationStatus `json:"validation_status"`
	CodeValidated     bool             `json:"code_validated"`
	SupplierValidated bool             `json:"supplier_validated"`
	ValidationError   string           `json:"validation_error,omitempty"`

	SyncedToERP bool       `json:"synced_to_protheus"`
	SyncedAt    *time.Time `json:"protheus_sync_date,omitempty"`
	SyncError   string     `json:"protheus_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PersistResult reports one Persister run.
type PersistResult struct {
	Total     int      `json:"total"`
	Saved     int      `json:"saved"`
	Errors    []string `json:"errors"`
	BatchCode string   `json:"batch_code"`
	Batch     *Batch   `json:"-"`
	// Existing is true when the upload already had a batch and nothing was written.
	Existing bool `json:"existing"`
}

// IntakeResult is the structured outcome of processing one Upload.
type IntakeResult struct {
	Success   bool     `json:"success"`
	UploadID  string   `json:"upload_id"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Total     int      `json:"total"`
	Saved     int      `json:"saved"`
	Errors    []string `json:"errors,omitempty"`
	BatchCode string   `json:"batch_code,omitempty"`
}

// ValidationSummary reports one validation run over a batch.
type ValidationSummary struct {
	BatchCode string `json:"batch_code"`
	Checked   int    `json:"checked"`
	Valid     int    `json:"valid"`
	Invalid   int    `json:"invalid"`
	Pending   int    `json:"pending"`
	// Failures lists records left unchanged because a registry lookup failed.
	Failures []string `json:"failures,omitempty"`
}

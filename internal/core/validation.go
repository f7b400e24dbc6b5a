package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/logging"
	"github.com/shopspring/decimal"
)

// ErrRegistryUnavailable is returned when validation runs without a registry.
var ErrRegistryUnavailable = errors.New("product registry is not configured")

// Registry answers existence questions against the ERP. A lookup that could
// not be answered returns an error; "not registered" is (false, nil).
type Registry interface {
	ProductExists(ctx context.Context, code, group string) (bool, error)
	SupplierExists(ctx context.Context, code string) (bool, error)
}

// recordRule returns a violation message, or "" when the record passes.
type recordRule func(rec *ProductRecord) string

var icmsInterstateRate = decimal.NewFromInt(4)

// icmsOriginRule: the 4% interstate ICMS rate applies only to imported goods (origin 2).
func icmsOriginRule(rec *ProductRecord) string {
	if rec.ICMSPercentage.Valid && rec.ICMSPercentage.Decimal.Equal(icmsInterstateRate) && rec.Origin != "2" {
		return "ICMS 4% requer Origem = 2"
	}
	return ""
}

// ipiRule is the placeholder for the IPI rate cross-check. It accepts every record.
func ipiRule(*ProductRecord) string {
	return ""
}

// xmlRules apply only to records from XML uploads.
var xmlRules = []recordRule{icmsOriginRule, ipiRule}

// Validator classifies the records of a batch as VALID, INVALID or PENDING.
type Validator struct {
	store    Store
	registry Registry
}

// NewValidator returns a Validator. registry may be nil, in which case
// Validate fails with ErrRegistryUnavailable.
func NewValidator(store Store, registry Registry) *Validator {
	return &Validator{store: store, registry: registry}
}

// Validate checks the selected records of the batch (all when productIDs is
// empty). A record whose registry lookup fails is left unchanged and listed in
// the summary's Failures.
func (v *Validator) Validate(ctx context.Context, batchCode string, productIDs []int64) (*ValidationSummary, error) {
	if v.registry == nil {
		return nil, ErrRegistryUnavailable
	}

	batch, err := v.store.GetBatch(ctx, batchCode)
	if err != nil {
		return nil, fmt.Errorf("load batch %s: %w", batchCode, err)
	}
	records, err := v.store.ListRecords(ctx, batch.ID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load records of batch %s: %w", batchCode, err)
	}

	log := logging.WithFields(ctx, "batch_code", batch.Code,
		"product_group", batch.ProductGroup, "supplier", batch.SupplierCode)

	summary := &ValidationSummary{BatchCode: batch.Code}
	for i := range records {
		rec := &records[i]
		if err := v.validateRecord(ctx, batch, rec); err != nil {
			log.Warn("registry lookup failed, record unchanged", "product_id", rec.ID, "code", rec.ProductCode, "error", err)
			summary.Failures = append(summary.Failures, fmt.Sprintf("product %d (%s): %v", rec.ID, rec.ProductCode, err))
			continue
		}
		if err := v.store.UpdateValidation(ctx, rec); err != nil {
			return summary, fmt.Errorf("save validation of product %d: %w", rec.ID, err)
		}

		summary.Checked++
		switch rec.ValidationStatus {
		case ValidationValid:
			summary.Valid++
		case ValidationInvalid:
			summary.Invalid++
		default:
			summary.Pending++
		}
	}

	log.Info("batch validated", "checked", summary.Checked, "valid", summary.Valid,
		"invalid", summary.Invalid, "pending", summary.Pending, "failures", len(summary.Failures))
	return summary, nil
}

// validateRecord resolves rec's validation fields in place.
func (v *Validator) validateRecord(ctx context.Context, batch *Batch, rec *ProductRecord) error {
	codeOK, err := v.checkProduct(ctx, batch, rec.ProductCode)
	if err != nil {
		return err
	}

	supplierOK := false
	supplier := strings.TrimSpace(rec.SupplierCode)
	if supplier == "" {
		supplier = strings.TrimSpace(batch.SupplierCode)
	}
	if supplier != "" {
		supplierOK, err = v.registry.SupplierExists(ctx, supplier)
		if err != nil {
			return err
		}
	}

	var violations []string
	if !codeOK {
		// name the code as the supplier's file spells it
		violations = append(violations, fmt.Sprintf("Produto %s não encontrado no cadastro", rec.ProductCode))
	}
	if batch.FileType == FileTypeXML {
		for _, rule := range xmlRules {
			if msg := rule(rec); msg != "" {
				violations = append(violations, msg)
			}
		}
	}

	rec.CodeValidated = codeOK
	rec.SupplierValidated = supplierOK
	switch {
	case len(violations) > 0:
		rec.ValidationStatus = ValidationInvalid
		rec.ValidationError = strings.Join(violations, "; ")
	case codeOK && supplierOK:
		rec.ValidationStatus = ValidationValid
		rec.ValidationError = ""
	default:
		rec.ValidationStatus = ValidationPending
		rec.ValidationError = ""
	}
	return nil
}

// checkProduct looks up the normalized code, then the pair's alternate
// spelling if the first lookup cleanly reported "not found".
func (v *Validator) checkProduct(ctx context.Context, batch *Batch, raw string) (bool, error) {
	code := NormalizeCode(raw, batch.ProductGroup, batch.SupplierCode)
	ok, err := v.registry.ProductExists(ctx, code, batch.ProductGroup)
	if err != nil || ok {
		return ok, err
	}

	alt, has := AlternateCode(raw, batch.ProductGroup, batch.SupplierCode)
	if !has || alt == code {
		return false, nil
	}
	return v.registry.ProductExists(ctx, alt, batch.ProductGroup)
}

// Reprocess returns every record of the batch to PENDING with both flags and
// the error cleared. It is allowed from any state.
func (v *Validator) Reprocess(ctx context.Context, batchCode string) (int64, error) {
	batch, err := v.store.GetBatch(ctx, batchCode)
	if err != nil {
		return 0, fmt.Errorf("load batch %s: %w", batchCode, err)
	}
	n, err := v.store.ResetValidation(ctx, batch.ID)
	if err != nil {
		return 0, fmt.Errorf("reset batch %s: %w", batchCode, err)
	}
	logging.WithFields(ctx, "batch_code", batch.Code).Info("batch reset for revalidation", "records", n)
	return n, nil
}

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/prodcheck/internal/logging"
)

// SyncStatusUpdate reports the ERP outcome for one product, as sent by an
// external integration.
type SyncStatusUpdate struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// SyncStatusResult summarizes a bulk sync-status update.
type SyncStatusResult struct {
	Synced int      `json:"synced"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// PendingSync lists VALID records not yet synced, for one batch or, with an
// empty code, for every batch.
func (s *Service) PendingSync(ctx context.Context, batchCode string) ([]ProductRecord, error) {
	var batchID int64
	if batchCode != "" {
		batch, err := s.store.GetBatch(ctx, batchCode)
		if err != nil {
			return nil, err
		}
		batchID = batch.ID
	}
	records, err := s.store.ListPendingSync(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	return records, nil
}

// UpdateSyncStatus applies a list of ERP outcomes. Successful products are
// marked synced; failed ones keep their state and store the ERP error.
// Unknown product ids are reported in Errors.
func (s *Service) UpdateSyncStatus(ctx context.Context, updates []SyncStatusUpdate) (*SyncStatusResult, error) {
	result := &SyncStatusResult{}
	var synced []int64

	for _, u := range updates {
		if err := ValidateRequest(u); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("product %d: %v", u.ProductID, err))
			continue
		}
		if u.Success {
			synced = append(synced, u.ProductID)
			continue
		}

		msg := u.Error
		if msg == "" {
			msg = "erp rejected the product"
		}
		if err := s.store.SetSyncError(ctx, u.ProductID, msg); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("store sync error for product %d: %w", u.ProductID, err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("product %d: not found", u.ProductID))
			continue
		}
		result.Failed++
	}

	if len(synced) > 0 {
		n, err := s.store.MarkRecordsSynced(ctx, synced, s.now())
		if err != nil {
			return nil, fmt.Errorf("mark products synced: %w", err)
		}
		result.Synced = int(n)
		if missing := len(synced) - int(n); missing > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("%d product ids not found", missing))
		}
	}

	logging.FromContext(ctx).Info("sync status updated",
		"synced", result.Synced, "failed", result.Failed, "rejected", len(result.Errors))
	return result, nil
}

// MarkProductSynced flags one product as accepted by the ERP.
func (s *Service) MarkProductSynced(ctx context.Context, id int64) (*ProductRecord, error) {
	if _, err := s.store.GetRecord(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.store.MarkRecordsSynced(ctx, []int64{id}, s.now()); err != nil {
		return nil, fmt.Errorf("mark product %d synced: %w", id, err)
	}
	return s.store.GetRecord(ctx, id)
}

// MarkBatchSynced flags the batch and every record in it as synced.
func (s *Service) MarkBatchSynced(ctx context.Context, code string) (int64, error) {
	batch, err := s.store.GetBatch(ctx, code)
	if err != nil {
		return 0, err
	}
	n, err := s.store.MarkBatchSynced(ctx, batch.ID, s.now(), true)
	if err != nil {
		return 0, fmt.Errorf("mark batch %s synced: %w", code, err)
	}
	logging.WithFields(ctx, "batch_code", batch.Code).Info("batch marked synced", "records", n)
	return n, nil
}

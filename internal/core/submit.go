package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/prodcheck/internal/erp"
	"github.com/JonMunkholm/prodcheck/internal/logging"
	"github.com/shopspring/decimal"
)

var (
	// ErrNothingToSubmit means the batch has no VALID record waiting for sync.
	ErrNothingToSubmit = errors.New("batch has no valid products pending sync")

	// ErrERPDisabled is returned when no ERP endpoint is configured.
	ErrERPDisabled = errors.New("erp integration is not configured")
)

// OrderRequest carries the purchase order header chosen by the operator.
type OrderRequest struct {
	Supplier     string `json:"fornecedor" validate:"required,max=50"`
	Store        string `json:"loja" validate:"required,max=10"`
	PaymentTerms string `json:"condicao_pagamento" validate:"required,max=10"`
	// Tenant overrides the configured ERP branch.
	Tenant string `json:"tenant,omitempty" validate:"max=10"`
	// IssueDate defaults to today.
	IssueDate time.Time `json:"data_emissao"`
}

// SubmitResult reports an order accepted by the ERP.
type SubmitResult struct {
	BatchCode   string `json:"batch_code"`
	OrderNumber string `json:"numero_pedido"`
	Items       int    `json:"items"`
	BatchSynced bool   `json:"batch_synced"`
}

var one = decimal.NewFromInt(1)

// SubmitBatch sends every VALID, unsynced record of the batch to the ERP as
// one purchase order. Records are marked synced only after the ERP confirms
// the order; on any failure nothing changes and the error is returned as
// erp.ErrTimeout, erp.ErrConnection or *erp.APIError.
func (s *Service) SubmitBatch(ctx context.Context, code string, req OrderRequest) (*SubmitResult, error) {
	if s.orders == nil {
		return nil, ErrERPDisabled
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	batch, err := s.store.GetBatch(ctx, code)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListPendingSync(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("list pending products of batch %s: %w", code, err)
	}
	if len(records) == 0 {
		return nil, ErrNothingToSubmit
	}

	issued := req.IssueDate
	if issued.IsZero() {
		issued = s.now()
	}
	tenant := req.Tenant
	if tenant == "" {
		tenant = s.tenant
	}

	order := erp.PurchaseOrder{
		Supplier:     req.Supplier,
		Store:        req.Store,
		PaymentTerms: req.PaymentTerms,
		IssueDate:    erp.FormatIssueDate(issued),
		Items:        make([]erp.OrderItem, 0, len(records)),
	}
	ids := make([]int64, 0, len(records))
	for i := range records {
		order.Items = append(order.Items, orderItem(batch, &records[i]))
		ids = append(ids, records[i].ID)
	}

	log := logging.WithFields(ctx, "batch_code", batch.Code, "tenant", tenant, "items", len(ids))
	start := time.Now()
	resp, err := s.orders.CreatePurchaseOrder(ctx, tenant, order)
	if err != nil {
		log.Error("erp order rejected", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("submit batch %s: %w", batch.Code, err)
	}
	log.Info("erp order created", "numero_pedido", resp.Number, "duration_ms", time.Since(start).Milliseconds())

	// the ERP has accepted the order, so bookkeeping must not be cut short
	ctx = context.WithoutCancel(ctx)
	at := s.now()
	if _, err := s.store.MarkRecordsSynced(ctx, ids, at); err != nil {
		return nil, fmt.Errorf("order %s created but marking products synced failed: %w", resp.Number, err)
	}

	result := &SubmitResult{BatchCode: batch.Code, OrderNumber: resp.Number, Items: len(ids)}
	remaining, err := s.store.ListPendingSync(ctx, batch.ID)
	if err != nil {
		log.Warn("could not check remaining products", "error", err)
		return result, nil
	}
	if len(remaining) == 0 {
		if _, err := s.store.MarkBatchSynced(ctx, batch.ID, at, false); err != nil {
			log.Warn("mark batch synced failed", "error", err)
			return result, nil
		}
		result.BatchSynced = true
	}
	return result, nil
}

// orderItem builds one order line: quantity defaults to 1 and price falls
// back from unit value to cost price to zero.
func orderItem(batch *Batch, rec *ProductRecord) erp.OrderItem {
	qty := one
	if rec.Quantity.Valid {
		qty = rec.Quantity.Decimal
	}
	price := decimal.Zero
	switch {
	case rec.UnitValue.Valid:
		price = rec.UnitValue.Decimal
	case rec.CostPrice.Valid:
		price = rec.CostPrice.Decimal
	}
	return erp.OrderItem{
		Product:  NormalizeCode(rec.ProductCode, batch.ProductGroup, batch.SupplierCode),
		Quantity: qty.InexactFloat64(),
		Price:    price.InexactFloat64(),
		Total:    qty.Mul(price).Round(2).InexactFloat64(),
	}
}

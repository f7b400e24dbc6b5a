package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/core"
	"github.com/go-chi/chi/v5"
)

// BatchProductsResponse lists a batch's records.
type BatchProductsResponse struct {
	BatchCode     string               `json:"batch_code"`
	TotalProducts int                  `json:"total_products"`
	Products      []core.ProductRecord `json:"products"`
}

// BatchContextRequest sets the normalization context of a batch.
type BatchContextRequest struct {
	SupplierCode string `json:"fornecedor_code" validate:"max=50"`
	ProductGroup string `json:"product_group" validate:"max=50"`
}

// ValidateBatchRequest narrows a validation run to some products of the batch.
type ValidateBatchRequest struct {
	ProductIDs []int64 `json:"product_ids" validate:"omitempty,dive,gt=0"`
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.service.GetBatch(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, batch)
}

// handleBatchProducts lists the batch's records, optionally filtered by
// ?status=PENDING|VALID|INVALID.
func (s *Server) handleBatchProducts(w http.ResponseWriter, r *http.Request) {
	var status core.ValidationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = core.ValidationStatus(strings.ToUpper(strings.TrimSpace(raw)))
		switch status {
		case core.ValidationPending, core.ValidationValid, core.ValidationInvalid:
		default:
			s.respondError(w, r, fmt.Errorf("%w: unknown status %q", core.ErrInvalidRequest, raw))
			return
		}
	}

	detail, err := s.service.GetBatchDetail(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	products := detail.Records
	if status != "" {
		products = make([]core.ProductRecord, 0, len(detail.Records))
		for _, rec := range detail.Records {
			if rec.ValidationStatus == status {
				products = append(products, rec)
			}
		}
	}
	writeJSON(w, r, http.StatusOK, BatchProductsResponse{
		BatchCode:     detail.Batch.Code,
		TotalProducts: len(products),
		Products:      products,
	})
}

func (s *Server) handleSetBatchContext(w http.ResponseWriter, r *http.Request) {
	var req BatchContextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	batch, err := s.service.SetBatchContext(r.Context(), chi.URLParam(r, "code"),
		strings.TrimSpace(req.SupplierCode), strings.TrimSpace(req.ProductGroup))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, batch)
}

// handleValidateBatch runs existence checks over the batch. An empty body
// validates every record.
func (s *Server) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req ValidateBatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	summary, err := s.service.ValidateBatch(r.Context(), chi.URLParam(r, "code"), req.ProductIDs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleReprocessBatch(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	n, err := s.service.ReprocessBatch(r.Context(), code)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"batch_code": code,
		"reset":      n,
	})
}

func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req core.OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.service.SubmitBatch(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleMarkBatchSynced(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	n, err := s.service.MarkBatchSynced(r.Context(), code)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("Lote %s marcado como sincronizado", code),
		"batch_code": code,
		"products":   n,
	})
}

// handleExportBatch streams the batch as an .xlsx attachment. The workbook is
// built in memory first so a failure still gets a JSON error.
func (s *Server) handleExportBatch(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var buf bytes.Buffer
	if err := s.service.ExportBatch(r.Context(), code, &buf); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", code+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

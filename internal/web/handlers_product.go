package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/prodcheck/internal/core"
	"github.com/go-chi/chi/v5"
)

// PendingSyncResponse lists VALID records not yet accepted by the ERP.
type PendingSyncResponse struct {
	Count   int                  `json:"count"`
	Results []core.ProductRecord `json:"results"`
}

// SyncStatusRequest carries outcomes reported by an external integration.
// Each update is validated on its own so one bad entry does not reject the rest.
type SyncStatusRequest struct {
	Updates []core.SyncStatusUpdate `json:"updates" validate:"required,min=1"`
}

// HealthResponse reports intake capacity and supported formats.
type HealthResponse struct {
	Status    string             `json:"status"`
	Uploads   core.LimiterStatus `json:"uploads"`
	FileTypes []core.FileType    `json:"file_types"`
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rec, err := s.service.GetProduct(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// handlePendingSync lists records awaiting ERP sync, optionally for one
// ?batch_code.
func (s *Server) handlePendingSync(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.PendingSync(r.Context(), r.URL.Query().Get("batch_code"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if records == nil {
		records = []core.ProductRecord{}
	}
	writeJSON(w, r, http.StatusOK, PendingSyncResponse{Count: len(records), Results: records})
}

func (s *Server) handleUpdateSyncStatus(w http.ResponseWriter, r *http.Request) {
	var req SyncStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.service.UpdateSyncStatus(r.Context(), req.Updates)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleMarkProductSynced(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rec, err := s.service.MarkProductSynced(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Produto %s marcado como sincronizado", rec.ProductCode),
		"product": rec,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Uploads:   s.service.LimiterStatus(),
		FileTypes: core.FileTypes(),
	})
}

func productID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id %q", core.ErrInvalidRequest, raw)
	}
	return id, nil
}

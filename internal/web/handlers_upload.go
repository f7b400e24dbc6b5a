package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/core"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is the slack allowed above the file limit for form fields
// and part headers.
const multipartOverhead = 1 << 20

// handleUpload accepts a multipart "file" with optional "file_type" and
// "uploaded_by" fields and runs the intake synchronously.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrFileTooLarge)
			return
		}
		s.respondError(w, r, core.ErrNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		s.respondError(w, r, core.ErrFileTooLarge)
		return
	}

	// An unknown declared type is recorded on the upload as FAILED.
	fileType := core.ParseFileType(r.FormValue("file_type"))

	result, err := s.service.Intake(r.Context(), core.IntakeRequest{
		FileName:   header.Filename,
		FileType:   fileType,
		UploadedBy: strings.TrimSpace(r.FormValue("uploaded_by")),
		Content:    file,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, r, intakeStatus(result, http.StatusCreated), result)
}

// handleRetryUpload reprocesses a PENDING or FAILED upload.
func (s *Server) handleRetryUpload(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.RetryUpload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, intakeStatus(result, http.StatusOK), result)
}

// handleGetUpload returns the upload and, once it exists, its batch code.
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	upload, err := s.service.GetUpload(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := struct {
		*core.Upload
		BatchCode string `json:"batch_code,omitempty"`
	}{Upload: upload}
	if batch, err := s.service.BatchForUpload(r.Context(), id); err == nil {
		resp.BatchCode = batch.Code
	} else if !errors.Is(err, core.ErrNotFound) {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// intakeStatus answers ok for a successful intake and 422 when the upload
// ended FAILED or could not be processed.
func intakeStatus(result *core.IntakeResult, ok int) int {
	if result.Success {
		return ok
	}
	return http.StatusUnprocessableEntity
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/extract"
	"github.com/civicdesk/civicdesk/internal/log"
	"github.com/civicdesk/civicdesk/internal/pipeline"
)

// maxUploadBytes caps complaint document uploads.
const maxUploadBytes = 32 << 20 // 32 MiB

// ComplaintHandler handles complaint intake endpoints.
type ComplaintHandler struct {
	pipeline  *pipeline.Pipeline
	uploadDir string
	logger    log.Logger
}

// NewComplaintHandler creates a new intake handler. Uploaded files are kept
// under uploadDir after processing so the original evidence survives.
func NewComplaintHandler(p *pipeline.Pipeline, uploadDir string, logger log.Logger) *ComplaintHandler {
	return &ComplaintHandler{pipeline: p, uploadDir: uploadDir, logger: logger}
}

// RegisterRoutes registers intake routes on the given mux.
func (h *ComplaintHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/complaints/upload", h.upload)
	mux.HandleFunc("POST /api/complaints/text", h.text)
	mux.HandleFunc("POST /api/complaints/backfill", h.backfill)
}

// upload accepts a multipart form with a "file" part and runs it through the
// intake pipeline.
func (h *ComplaintHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "multipart form must include a \"file\" part")
		return
	}
	defer func() { _ = file.Close() }()

	path, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.logger.Error("failed to save upload", "filename", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failed", "could not save the uploaded file")
		return
	}

	result, err := h.pipeline.ProcessUpload(r.Context(), path, header.Filename)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// saveUpload writes the uploaded file under uploadDir with a unique prefix so
// repeated filenames never collide.
func (h *ComplaintHandler) saveUpload(file io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		return "", err
	}
	// Base strips any path components a hostile client smuggles in.
	name := uuid.NewString() + "_" + filepath.Base(filename)
	path := filepath.Join(h.uploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// textRequest is the body of POST /api/complaints/text.
type textRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// text accepts a typed-in complaint.
func (h *ComplaintHandler) text(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "empty_complaint", "title or description is required")
		return
	}

	result, err := h.pipeline.ProcessText(r.Context(), req.Title, req.Description, req.Metadata)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// backfillRequest is the body of POST /api/complaints/backfill.
type backfillRequest struct {
	ComplaintID string            `json:"complaint_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Location    string            `json:"location"`
	Status      string            `json:"status,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// backfillResponse is the body of a successful backfill.
type backfillResponse struct {
	Success bool `json:"success"`
}

// backfill indexes a complaint already accepted by the system of record.
func (h *ComplaintHandler) backfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.ComplaintID == "" {
		writeError(w, http.StatusBadRequest, "missing_complaint_id", "complaint_id is required")
		return
	}

	ok, err := h.pipeline.Backfill(r.Context(), pipeline.BackfillComplaint{
		ComplaintID: req.ComplaintID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Status:      req.Status,
		Extras:      req.Metadata,
	})
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backfillResponse{Success: ok})
}

// writePipelineError maps pipeline failures to HTTP statuses: bad input is
// the client's fault, everything else is ours.
func (h *ComplaintHandler) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "empty_content", err.Error())
	case errors.Is(err, extract.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "unsupported_format", err.Error())
	default:
		h.logger.Error("complaint processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "processing_failed", "could not process the complaint")
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olamide-hq/ragline/internal/config"
	db "github.com/olamide-hq/ragline/internal/core/database"
	"github.com/olamide-hq/ragline/internal/core/hashing"
	"github.com/olamide-hq/ragline/internal/core/pipeline"
	"github.com/olamide-hq/ragline/internal/models"
	"github.com/olamide-hq/ragline/internal/services"
)

type DocumentHandler struct {
	documents *services.DocumentService
	cfg       *config.Config
}

func NewDocumentHandler(documents *services.DocumentService, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{documents: documents, cfg: cfg}
}

// UploadDocument receives a multipart upload, validates it, hashes the
// content and runs it through the ingestion service.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		http.Error(w, "file too large or malformed form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Sanitize filename to prevent path traversal or invalid characters
	cleanFilename := filepath.Base(header.Filename)
	if err := h.validateUpload(cleanFilename, header.Size); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	localPath, contentHash, err := h.saveUpload(file, cleanFilename)
	if err != nil {
		log.Printf("ERROR: saving upload %s: %v", cleanFilename, err)
		http.Error(w, "could not store uploaded file", http.StatusInternalServerError)
		return
	}

	forced := r.URL.Query().Get("forced_reprocess") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	res, err := h.documents.Upload(ctx, localPath, contentHash, cleanFilename, forced)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.DocumentResponse{
		Status:   "success",
		FileName: cleanFilename,
		Message:  responseMessage(res.State, len(res.Chunks)),
	})
}

// DeleteAllDocuments wipes the vector store.
func (h *DocumentHandler) DeleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	n, err := h.documents.DeleteAll(r.Context())
	if err != nil {
		log.Printf("ERROR: delete all documents: %v", err)
		http.Error(w, "failed to delete documents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "success",
		"deleted": n,
	})
}

// ClearDocumentState drops the cached processing state for one content
// hash so its next upload reprocesses from scratch.
func (h *DocumentHandler) ClearDocumentState(w http.ResponseWriter, r *http.Request) {
	contentHash := chi.URLParam(r, "hash")
	if contentHash == "" {
		http.Error(w, "missing content hash", http.StatusBadRequest)
		return
	}

	cleared := h.documents.ClearState(r.Context(), contentHash)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "success",
		"cleared": cleared,
	})
}

func (h *DocumentHandler) validateUpload(filename string, size int64) error {
	if filename == "" || filename == "." {
		return errors.New("no filename provided")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, a := range h.cfg.AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("file extension %s not allowed. Allowed: %s",
			ext, strings.Join(h.cfg.AllowedExtensions, ", "))
	}

	if size > h.cfg.MaxUploadSize {
		return fmt.Errorf("file size %d exceeds maximum %d bytes", size, h.cfg.MaxUploadSize)
	}
	return nil
}

// saveUpload writes the upload into the scratch dir while hashing it, so
// content is read exactly once.
func (h *DocumentHandler) saveUpload(file io.Reader, filename string) (string, string, error) {
	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create upload dir: %w", err)
	}

	dst, err := os.CreateTemp(h.cfg.UploadDir, "upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	contentHash, err := hashing.HashReader(io.TeeReader(file, dst))
	if err != nil {
		os.Remove(dst.Name())
		return "", "", fmt.Errorf("write upload file: %w", err)
	}
	return dst.Name(), contentHash, nil
}

func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrProcessing):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, db.ErrDatabase):
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		log.Printf("ERROR: unexpected error in UploadDocument: %v", err)
		http.Error(w, "an unexpected error occurred", http.StatusInternalServerError)
	}
}

// responseMessage summarizes the upload outcome for the client.
func responseMessage(st *models.ProcessingState, numChunks int) string {
	hashShort := st.FileHash
	if len(hashShort) > 16 {
		hashShort = hashShort[:16]
	}

	switch st.Stage {
	case models.StageStored:
		return fmt.Sprintf("Document processed and stored successfully. Created %d chunks. (Hash: %s...)", numChunks, hashShort)
	case models.StageChunked:
		return fmt.Sprintf("Document extracted and chunked successfully. Created %d chunks. (Hash: %s...)", numChunks, hashShort)
	case models.StageFailed:
		errMsg := st.ErrorMessage
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		if len(errMsg) > 100 {
			errMsg = errMsg[:100]
		}
		return fmt.Sprintf("Document processing failed. Error: %s. (Hash: %s...)", errMsg, hashShort)
	default:
		return fmt.Sprintf("Document uploaded successfully. Current stage: %s. (Hash: %s...)", st.Stage, hashShort)
	}
}

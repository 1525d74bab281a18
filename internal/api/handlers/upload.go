package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/document"
	"github.com/nikhilbhutani/docsearch/internal/models"
)

// multipartOverhead leaves room for form fields and boundaries on top of
// the file size limit.
const multipartOverhead = 1 << 20

type Uploader interface {
	Upload(ctx context.Context, req document.UploadRequest) (*document.UploadResult, error)
}

type UploadHandler struct {
	svc      Uploader
	maxBytes int64
	log      *slog.Logger
}

func NewUploadHandler(svc Uploader, maxBytes int64, log *slog.Logger) *UploadHandler {
	if log == nil {
		log = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = document.DefaultMaxBytes
	}
	return &UploadHandler{svc: svc, maxBytes: maxBytes, log: log.With("component", "upload_handler")}
}

// Upload keeps the flat {error} body for its failures.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("File size exceeds %dMB limit", h.maxBytes>>20)})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Could not read file"})
		return
	}

	res, err := h.svc.Upload(r.Context(), document.UploadRequest{
		File: models.UploadedFile{
			Data:     data,
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Size:     header.Size,
		},
		ProgressID:    r.FormValue("progressId"),
		Prompt:        r.FormValue("prompt"),
		VectorStoreID: r.FormValue("vectorStoreId"),
	})
	if err != nil {
		if apperr.Is(err, apperr.CodeValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": document.ErrorMessage(err)})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": document.ErrorMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

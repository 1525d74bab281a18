package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/vectorstore"
)

type VectorStoreHandler struct {
	store vectorstore.ArtifactStore
}

func NewVectorStoreHandler(store vectorstore.ArtifactStore) *VectorStoreHandler {
	return &VectorStoreHandler{store: store}
}

type createStoreRequest struct {
	Name             *string                       `json:"name"`
	ExpiresDays      *int                          `json:"expires_days"`
	Metadata         map[string]any                `json:"metadata"`
	ChunkingStrategy *vectorstore.ChunkingStrategy `json:"chunking_strategy"`
}

// toCreate converts a body that already passed createStoreBody.
func (req createStoreRequest) toCreate() vectorstore.CreateStoreRequest {
	out := vectorstore.CreateStoreRequest{Metadata: req.Metadata, Chunking: req.ChunkingStrategy}
	if req.Name != nil {
		out.Name = *req.Name
	}
	if req.ExpiresDays != nil {
		out.ExpiresAfterDays = *req.ExpiresDays
	}
	return out
}

func (h *VectorStoreHandler) List(w http.ResponseWriter, r *http.Request) {
	stores, err := h.store.ListStores(r.Context())
	if err != nil {
		writeError(w, apperr.ExternalService("OpenAI", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "vectorStores": stores, "count": len(stores)})
}

func (h *VectorStoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := createStoreBody.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	vs, err := h.store.CreateStore(r.Context(), req.toCreate())
	if err != nil {
		writeError(w, apperr.ExternalService("OpenAI", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "vectorStore": vs})
}

func (h *VectorStoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := storeID(w, r)
	if !ok {
		return
	}
	vs, err := h.store.RetrieveStore(r.Context(), id)
	if err != nil {
		writeError(w, providerError("Vector store", id, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "vectorStore": vs})
}

func (h *VectorStoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := storeID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteStore(r.Context(), id); err != nil {
		writeError(w, providerError("Vector store", id, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Vector store deleted successfully"})
}

func (h *VectorStoreHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := storeID(w, r)
	if !ok {
		return
	}
	files, err := h.store.ListFiles(r.Context(), id)
	if err != nil {
		writeError(w, providerError("Vector store", id, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files": files, "count": len(files)})
}

func (h *VectorStoreHandler) AddFile(w http.ResponseWriter, r *http.Request) {
	id, ok := storeID(w, r)
	if !ok {
		return
	}
	var req struct {
		FileID string `json:"file_id"`
	}
	if err := addFileBody.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	f, err := h.store.AttachFile(r.Context(), id, req.FileID)
	if err != nil {
		writeError(w, providerError("File", req.FileID, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "File added to vector store successfully", "result": f})
}

func (h *VectorStoreHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	id, ok := storeID(w, r)
	if !ok {
		return
	}
	fileID := chi.URLParam(r, "fileId")
	if !validID(fileID) {
		writeError(w, apperr.Validation("Invalid vector store ID or file ID", nil))
		return
	}
	if err := h.store.DetachFile(r.Context(), id, fileID); err != nil {
		writeError(w, providerError("File", fileID, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "File removed from vector store successfully"})
}

func storeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		writeError(w, apperr.Validation("Invalid vector store ID", map[string]string{"id": id}))
		return "", false
	}
	return id, true
}

func providerError(resource, id string, err error) error {
	if errors.Is(err, vectorstore.ErrNotFound) {
		return apperr.NotFound(resource, id)
	}
	return apperr.ExternalService("OpenAI", err)
}

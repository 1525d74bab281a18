package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilbhutani/docsearch/internal/models"
	"github.com/nikhilbhutani/docsearch/internal/rag"
)

const maxQueryLen = 1000

type Searcher interface {
	Search(ctx context.Context, query, storeID string) (*models.SearchResult, error)
}

type SearchHandler struct {
	searcher Searcher
	now      func() time.Time
}

func NewSearchHandler(s Searcher) *SearchHandler {
	return &SearchHandler{searcher: s, now: time.Now}
}

type searchRequest struct {
	Query         string `json:"query"`
	VectorStoreID string `json:"vectorStoreId"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := searchBody.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	query := strings.TrimSpace(req.Query)

	res, err := h.searcher.Search(r.Context(), query, req.VectorStoreID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"query":    query,
		"response": rag.StripCitations(res.Response),
		"metadata": map[string]any{
			"runId":      res.RunID,
			"threadId":   res.ThreadID,
			"searchedAt": h.now().UTC(),
		},
	})
}

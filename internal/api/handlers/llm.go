package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/docsearch/internal/llm"
)

type ModelsHandler struct {
	gateway  llm.Gateway
	provider string
	model    string
}

func NewModelsHandler(gw llm.Gateway, visionProvider, visionModel string) *ModelsHandler {
	return &ModelsHandler{gateway: gw, provider: visionProvider, model: visionModel}
}

// Models lists the models of every configured provider and names the one
// used for extraction.
func (h *ModelsHandler) Models(w http.ResponseWriter, r *http.Request) {
	models := h.gateway.ListModels()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"models":  models,
		"count":   len(models),
		"vision": map[string]string{
			"provider": h.provider,
			"model":    h.model,
		},
	})
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/docsearch/internal/api/handlers"
	"github.com/nikhilbhutani/docsearch/internal/api/middleware"
	"github.com/nikhilbhutani/docsearch/internal/auth"
	"github.com/nikhilbhutani/docsearch/internal/config"
	"github.com/nikhilbhutani/docsearch/internal/document"
	"github.com/nikhilbhutani/docsearch/internal/llm"
	"github.com/nikhilbhutani/docsearch/internal/vectorstore"
)

// Deps are the services the HTTP surface is built from.
type Deps struct {
	Documents *document.Service
	Searcher  handlers.Searcher
	Stores    vectorstore.ArtifactStore
	Gateway   llm.Gateway
	Health    map[string]handlers.Pinger
	Log       *slog.Logger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
	rl   *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
		rl:   middleware.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst),
	}
}

// Close releases background resources held by the middleware.
func (rt *Router) Close() {
	rt.rl.Close()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORS.AllowedOrigins))
	r.Use(rt.rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.Health)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Group(rt.routes)
	r.Route("/api", rt.routes)

	return r
}

func (rt *Router) routes(r chi.Router) {
	d := rt.deps

	// EventSource cannot send headers, so progress stays outside auth.
	progressH := handlers.NewProgressHandler(d.Documents.Tracker())
	r.Get("/progress/{id}", progressH.Stream)

	r.Group(func(r chi.Router) {
		if rt.cfg.Auth.JWTSecret != "" {
			r.Use(auth.NewJWTMiddleware(rt.cfg.Auth.JWTSecret).Authenticate)
		}

		uploadH := handlers.NewUploadHandler(d.Documents, rt.cfg.Upload.MaxBytes, d.Log)
		r.Post("/upload", uploadH.Upload)

		searchH := handlers.NewSearchHandler(d.Searcher)
		r.Post("/search", searchH.Search)

		docH := handlers.NewDocumentHandler(d.Documents)
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
		})

		vsH := handlers.NewVectorStoreHandler(d.Stores)
		r.Route("/vector-stores", func(r chi.Router) {
			r.Get("/", vsH.List)
			r.Post("/", vsH.Create)
			r.Get("/{id}", vsH.Get)
			r.Delete("/{id}", vsH.Delete)
			r.Get("/{id}/files", vsH.ListFiles)
			r.Post("/{id}/files", vsH.AddFile)
			r.Delete("/{id}/files/{fileId}", vsH.RemoveFile)
		})

		if d.Gateway != nil {
			modelsH := handlers.NewModelsHandler(d.Gateway, rt.cfg.LLM.VisionProvider, rt.cfg.LLM.VisionModel)
			r.Get("/models", modelsH.Models)
		}
	})
}

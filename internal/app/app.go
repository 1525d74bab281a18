// Package app assembles the service graph shared by the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/docsearch/internal/api"
	"github.com/nikhilbhutani/docsearch/internal/api/handlers"
	"github.com/nikhilbhutani/docsearch/internal/cache"
	"github.com/nikhilbhutani/docsearch/internal/cleanup"
	"github.com/nikhilbhutani/docsearch/internal/config"
	"github.com/nikhilbhutani/docsearch/internal/database"
	"github.com/nikhilbhutani/docsearch/internal/document"
	"github.com/nikhilbhutani/docsearch/internal/llm"
	"github.com/nikhilbhutani/docsearch/internal/multimodal"
	"github.com/nikhilbhutani/docsearch/internal/queue"
	"github.com/nikhilbhutani/docsearch/internal/rag"
	"github.com/nikhilbhutani/docsearch/internal/vectorstore"
)

const cacheKeyPrefix = "docsearch:search:"

type App struct {
	Config    *config.Config
	Log       *slog.Logger
	Redis     *redis.Client
	Queue     *queue.Client
	OpenAI    *openai.Client
	Gateway   llm.Gateway
	Stores    *vectorstore.OpenAIStore
	Releaser  *cleanup.Releaser
	Indexer   *vectorstore.Indexer
	Searcher  *rag.Searcher
	Documents *document.Service

	health  map[string]handlers.Pinger
	closers []func()
}

// New connects to storage and builds every component. Redis failures are
// tolerated: the search cache degrades to misses and release retries are
// only logged.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Log: log, health: map[string]handlers.Pinger{}}

	repo, err := a.openRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, func() { a.Redis.Close() })
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		log.Warn("redis.unavailable", "error", err)
	}
	searchCache := cache.NewCache(a.Redis, cacheKeyPrefix)
	a.health["redis"] = searchCache

	a.Queue = queue.NewClient(cfg.Redis)
	a.closers = append(a.closers, func() { a.Queue.Close() })

	a.OpenAI = llm.NewOpenAIClient(cfg.LLM)
	if a.OpenAI == nil {
		a.Close()
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	a.Gateway = llm.NewGateway(llm.GatewayConfig{
		DefaultProvider:  cfg.LLM.VisionProvider,
		FallbackProvider: cfg.LLM.FallbackProvider,
		FallbackModel:    cfg.LLM.FallbackModel,
		MaxRetries:       cfg.LLM.MaxRetries,
	}, log, llm.NewProviders(cfg.LLM, a.OpenAI)...)

	vision, err := multimodal.NewVisionService(a.Gateway, multimodal.VisionConfig{
		Provider:  cfg.LLM.VisionProvider,
		Model:     cfg.LLM.VisionModel,
		MaxTokens: cfg.LLM.MaxTokens,
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build vision service: %w", err)
	}

	raster := document.NewPDFRasterizer(document.RasterizerConfig{
		Binary:   cfg.PDF.Renderer,
		ScaleTo:  cfg.PDF.ScaleTo,
		MaxPages: cfg.PDF.MaxPages,
	}, document.NewExecRunner(log), document.PDFInspector{}, log)
	if !document.Available(cfg.PDF.Renderer) {
		log.Warn("pdf.renderer.missing", "binary", cfg.PDF.Renderer)
	}
	extractor := document.NewExtractor(nil, raster, vision, cfg.Upload.PageConcurrency, log)

	a.Stores = vectorstore.NewOpenAIStore(a.OpenAI, cfg.LLM.OpenAIKey, cfg.LLM.OpenAIBaseURL, log)
	a.Releaser = cleanup.NewReleaser(a.Stores, a.Queue, log)
	a.Indexer = vectorstore.NewIndexer(a.Stores, a.Releaser, vectorstore.IndexerConfig{
		DefaultStoreID: cfg.VectorStore.DefaultID,
		StoreName:      cfg.VectorStore.StoreName,
		ExpiresDays:    cfg.VectorStore.ExpiresDays,
	}, log)

	answerer := rag.NewAssistantAnswerer(a.OpenAI, cfg.Search.Model, cfg.Search.PollInterval, log)
	a.Searcher = rag.NewSearcher(answerer, searchCache, rag.SearcherConfig{
		DefaultStoreID: cfg.VectorStore.DefaultID,
		CacheTTL:       cfg.Search.CacheTTL,
		LiveTimeout:    cfg.Search.LiveTimeout,
	}, log)

	a.Documents = document.NewService(repo, extractor, a.Indexer, a.Releaser,
		document.NewTracker(30*time.Second, log),
		document.ServiceConfig{
			MaxBytes:       cfg.Upload.MaxBytes,
			ProcessTimeout: cfg.Upload.ProcessTimeout,
		}, log)

	return a, nil
}

// openRepository uses Postgres when DATABASE_URL is set, SQLite otherwise.
func (a *App) openRepository(ctx context.Context) (document.Repository, error) {
	cfg := a.Config.Database
	if cfg.URL != "" {
		pool, err := database.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := database.RunMigrations(ctx, pool, cfg.MigrationsPath, a.Log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.health["database"] = pool
		return document.NewPostgresRepository(pool), nil
	}

	db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { db.Close() })
	a.health["database"] = sqlPinger{db}
	a.Log.Info("database.sqlite", "path", cfg.SQLitePath)
	return document.NewSQLiteRepository(db), nil
}

type sqlPinger struct{ db *sql.DB }

func (p sqlPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

var _ handlers.Pinger = (*pgxpool.Pool)(nil)

// Router builds the HTTP router over the app's services.
func (a *App) Router() *api.Router {
	rt := api.NewRouter(a.Config, api.Deps{
		Documents: a.Documents,
		Searcher:  a.Searcher,
		Stores:    a.Stores,
		Gateway:   a.Gateway,
		Health:    a.health,
		Log:       a.Log,
	})
	a.closers = append(a.closers, rt.Close)
	return rt
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

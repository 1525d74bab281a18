package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/docsearch/internal/cleanup"
	"github.com/nikhilbhutani/docsearch/internal/config"
	"github.com/nikhilbhutani/docsearch/internal/llm"
	"github.com/nikhilbhutani/docsearch/internal/queue"
	"github.com/nikhilbhutani/docsearch/internal/queue/workers"
	"github.com/nikhilbhutani/docsearch/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	var client *openai.Client
	if client = llm.NewOpenAIClient(cfg.LLM); client == nil {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	// Retries are not re-enqueued inline; asynq owns the backoff.
	stores := vectorstore.NewOpenAIStore(client, cfg.LLM.OpenAIKey, cfg.LLM.OpenAIBaseURL, logger)
	releaser := cleanup.NewReleaser(stores, nil, logger)

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"default": 3,
				"low":     1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	registry := queue.NewRegistry(logger)
	releaseWorker := workers.NewReleaseWorker(releaser, logger)
	registry.Register(queue.TypeArtifactRelease, releaseWorker.ProcessTask)

	slog.Info("starting worker", "concurrency", 4)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

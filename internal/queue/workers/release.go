package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docsearch/internal/queue"
)

type Retrier interface {
	Retry(ctx context.Context, p queue.ArtifactReleasePayload) error
}

// ReleaseWorker retries artifact releases that failed inline.
type ReleaseWorker struct {
	releaser Retrier
	log      *slog.Logger
}

func NewReleaseWorker(releaser Retrier, log *slog.Logger) *ReleaseWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ReleaseWorker{releaser: releaser, log: log.With("component", "release_worker")}
}

func (w *ReleaseWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ArtifactReleasePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.FileID == "" {
		return fmt.Errorf("release task without file id: %w", asynq.SkipRetry)
	}

	w.log.Info("release.retry.start", "kind", payload.Kind, "file_id", payload.FileID)
	if err := w.releaser.Retry(ctx, payload); err != nil {
		return fmt.Errorf("release %s %s: %w", payload.Kind, payload.FileID, err)
	}
	return nil
}

package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Registry maps task types to handlers and logs each task run.
type Registry struct {
	mux *asynq.ServeMux
	log *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{mux: asynq.NewServeMux(), log: log.With("component", "queue")}
	r.mux.Use(r.logTask)
	return r
}

func (r *Registry) Register(taskType string, fn func(context.Context, *asynq.Task) error) {
	r.mux.HandleFunc(taskType, fn)
}

func (r *Registry) Mux() *asynq.ServeMux {
	return r.mux
}

func (r *Registry) logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		attrs := []any{"type", t.Type(), "duration_ms", time.Since(start).Milliseconds()}
		if id, ok := asynq.GetTaskID(ctx); ok {
			attrs = append(attrs, "task_id", id)
		}
		if err != nil {
			r.log.Warn("task.failed", append(attrs, "error", err)...)
			return err
		}
		r.log.Info("task.done", attrs...)
		return nil
	})
}

// Package cleanup releases provider resources on a best-effort basis.
// Failures are logged and handed to the retry queue, never returned to
// the caller's main path.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/docsearch/internal/models"
	"github.com/nikhilbhutani/docsearch/internal/queue"
	"github.com/nikhilbhutani/docsearch/internal/vectorstore"
)

// Store is the part of vectorstore.ArtifactStore needed for release.
type Store interface {
	DeleteArtifact(ctx context.Context, fileID string) error
	DetachFile(ctx context.Context, storeID, fileID string) error
}

type RetryEnqueuer interface {
	EnqueueArtifactRelease(ctx context.Context, payload queue.ArtifactReleasePayload) error
}

type Releaser struct {
	store Store
	retry RetryEnqueuer
	log   *slog.Logger
}

// NewReleaser builds a Releaser. retry may be nil, in which case failed
// releases are only logged.
func NewReleaser(store Store, retry RetryEnqueuer, log *slog.Logger) *Releaser {
	if log == nil {
		log = slog.Default()
	}
	return &Releaser{store: store, retry: retry, log: log.With("component", "releaser")}
}

// ReleaseArtifact deletes an uploaded file. Reports whether it is gone.
func (r *Releaser) ReleaseArtifact(ctx context.Context, fileID string) bool {
	return r.release(ctx, queue.ArtifactReleasePayload{Kind: queue.ReleaseKindArtifact, FileID: fileID})
}

// ReleaseStoreFile detaches a file from a vector store.
func (r *Releaser) ReleaseStoreFile(ctx context.Context, storeID, fileID string) bool {
	return r.release(ctx, queue.ArtifactReleasePayload{
		Kind:          queue.ReleaseKindStoreFile,
		FileID:        fileID,
		VectorStoreID: storeID,
	})
}

// ReleaseDocument detaches the document's vector store file and deletes
// its extracted artifact. Missing ids are skipped.
func (r *Releaser) ReleaseDocument(ctx context.Context, doc *models.Document) bool {
	ok := true
	if doc.VectorStoreID != nil && doc.VectorStoreFileID != nil {
		ok = r.ReleaseStoreFile(ctx, *doc.VectorStoreID, *doc.VectorStoreFileID) && ok
	}
	if doc.ExtractedFileID != nil {
		ok = r.ReleaseArtifact(ctx, *doc.ExtractedFileID) && ok
	}
	return ok
}

// Retry performs one queued release. Unlike the best-effort methods it
// returns the error so the queue can schedule another attempt.
func (r *Releaser) Retry(ctx context.Context, p queue.ArtifactReleasePayload) error {
	err := r.do(ctx, p)
	if err == nil || errors.Is(err, vectorstore.ErrNotFound) {
		r.log.Info("release.retry.ok", "kind", p.Kind, "file_id", p.FileID, "vector_store_id", p.VectorStoreID)
		return nil
	}
	return err
}

func (r *Releaser) release(ctx context.Context, p queue.ArtifactReleasePayload) bool {
	ctx = context.WithoutCancel(ctx)
	err := r.do(ctx, p)
	switch {
	case err == nil:
		r.log.Info("release.ok", "kind", p.Kind, "file_id", p.FileID, "vector_store_id", p.VectorStoreID)
		return true
	case errors.Is(err, vectorstore.ErrNotFound):
		r.log.Info("release.already_gone", "kind", p.Kind, "file_id", p.FileID, "vector_store_id", p.VectorStoreID)
		return true
	}

	r.log.Warn("release.failed", "kind", p.Kind, "file_id", p.FileID, "vector_store_id", p.VectorStoreID, "error", err)
	if r.retry != nil {
		if qerr := r.retry.EnqueueArtifactRelease(ctx, p); qerr != nil {
			r.log.Error("release.enqueue_failed", "kind", p.Kind, "file_id", p.FileID, "error", qerr)
		}
	}
	return false
}

func (r *Releaser) do(ctx context.Context, p queue.ArtifactReleasePayload) error {
	switch p.Kind {
	case queue.ReleaseKindArtifact:
		return r.store.DeleteArtifact(ctx, p.FileID)
	case queue.ReleaseKindStoreFile:
		return r.store.DetachFile(ctx, p.VectorStoreID, p.FileID)
	default:
		return fmt.Errorf("unknown release kind %q", p.Kind)
	}
}

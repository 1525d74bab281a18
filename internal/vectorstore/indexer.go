package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/models"
)

// ArtifactReleaser deletes an uploaded artifact and reports whether it is
// gone. Failures are handled by the releaser itself.
type ArtifactReleaser interface {
	ReleaseArtifact(ctx context.Context, fileID string) bool
}

type IndexerConfig struct {
	DefaultStoreID string
	StoreName      string
	ExpiresDays    int
}

// Indexer renders an extraction to plain text, uploads it and attaches it
// to the target vector store.
type Indexer struct {
	store    ArtifactStore
	releaser ArtifactReleaser
	cfg      IndexerConfig
	log      *slog.Logger

	mu        sync.Mutex
	createdID string
}

func NewIndexer(store ArtifactStore, releaser ArtifactReleaser, cfg IndexerConfig, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.StoreName == "" {
		cfg.StoreName = "document-store"
	}
	if cfg.ExpiresDays <= 0 {
		cfg.ExpiresDays = 30
	}
	return &Indexer{
		store:    store,
		releaser: releaser,
		cfg:      cfg,
		log:      log.With("component", "indexer"),
	}
}

// ResolveStore returns the store to index into: the explicit id if it
// exists, the configured default if it still exists, otherwise a store
// created once per process.
func (ix *Indexer) ResolveStore(ctx context.Context, storeID string) (string, error) {
	if storeID != "" {
		vs, err := ix.store.RetrieveStore(ctx, storeID)
		if err != nil {
			return "", err
		}
		return vs.ID, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.createdID != "" {
		return ix.createdID, nil
	}

	if ix.cfg.DefaultStoreID != "" {
		vs, err := ix.store.RetrieveStore(ctx, ix.cfg.DefaultStoreID)
		if err == nil {
			return vs.ID, nil
		}
		ix.log.Warn("vectorstore.default.unavailable",
			"vector_store_id", ix.cfg.DefaultStoreID,
			"not_found", errors.Is(err, ErrNotFound),
			"error", err,
		)
	}

	vs, err := ix.store.CreateStore(ctx, CreateStoreRequest{
		Name:             ix.cfg.StoreName,
		ExpiresAfterDays: ix.cfg.ExpiresDays,
	})
	if err != nil {
		return "", err
	}
	ix.createdID = vs.ID
	ix.log.Info("vectorstore.created",
		"vector_store_id", vs.ID,
		"hint", "set DEFAULT_VECTOR_STORE_ID="+vs.ID+" to reuse this store",
	)
	return vs.ID, nil
}

// Index stores one extraction. On attach failure the uploaded artifact is
// released so nothing is left orphaned.
func (ix *Indexer) Index(ctx context.Context, extraction *models.ExtractionResult, originalName, storeID string) (*models.IndexEntry, error) {
	if extraction == nil {
		return nil, apperr.Validation("extraction result is required", nil)
	}

	targetID, err := ix.ResolveStore(ctx, storeID)
	if err != nil {
		return nil, apperr.ExternalService("OpenAI", err)
	}

	text := RenderExtraction(originalName, extraction)
	fileID, err := ix.store.UploadArtifact(ctx, "extracted_"+originalName+".txt", []byte(text))
	if err != nil {
		return nil, apperr.ExternalService("OpenAI", err)
	}

	sf, err := ix.store.AttachFile(ctx, targetID, fileID)
	if err != nil {
		if ix.releaser != nil {
			ix.releaser.ReleaseArtifact(context.WithoutCancel(ctx), fileID)
		}
		return nil, apperr.ExternalService("OpenAI", err)
	}

	ix.log.Info("index.ok",
		"vector_store_id", targetID,
		"vector_store_file_id", sf.ID,
		"file_id", fileID,
		"bytes", len(text),
	)
	return &models.IndexEntry{
		VectorStoreID:     targetID,
		VectorStoreFileID: sf.ID,
		ExtractedFileID:   fileID,
		Status:            sf.Status,
	}, nil
}

// RenderExtraction is the plain-text form that gets indexed.
func RenderExtraction(name string, e *models.ExtractionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n\n", name)
	if e.RawText != "" {
		fmt.Fprintf(&b, "TEXT CONTENT:\n%s\n\n", e.RawText)
	}
	if len(e.Tables) > 0 {
		b.WriteString("TABLE DATA:\n")
		for _, c := range e.Tables {
			fmt.Fprintf(&b, "Row: %s, Column: %s, Value: %s\n", c.Row, c.Column, c.Value)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Package vectorstore manages the external vector store that holds each
// document's extracted text, and the indexing step that feeds it.
package vectorstore

import (
	"context"
	"errors"
)

// ErrNotFound marks a store, file or artifact the provider does not know.
var ErrNotFound = errors.New("vector store resource not found")

type Store struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	FileCount int            `json:"fileCount"`
	CreatedAt int64          `json:"createdAt"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type StoreFile struct {
	ID            string `json:"id"`
	VectorStoreID string `json:"vectorStoreId"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
}

type StaticChunking struct {
	MaxChunkSizeTokens int `json:"max_chunk_size_tokens"`
	ChunkOverlapTokens int `json:"chunk_overlap_tokens"`
}

type ChunkingStrategy struct {
	Type   string          `json:"type"`
	Static *StaticChunking `json:"static,omitempty"`
}

type CreateStoreRequest struct {
	Name             string
	ExpiresAfterDays int
	Metadata         map[string]any
	Chunking         *ChunkingStrategy
}

// ArtifactStore is the provider boundary: stores, uploaded artifacts and
// the links between them.
type ArtifactStore interface {
	RetrieveStore(ctx context.Context, id string) (*Store, error)
	CreateStore(ctx context.Context, req CreateStoreRequest) (*Store, error)
	ListStores(ctx context.Context) ([]Store, error)
	DeleteStore(ctx context.Context, id string) error

	UploadArtifact(ctx context.Context, name string, data []byte) (string, error)
	DeleteArtifact(ctx context.Context, fileID string) error

	AttachFile(ctx context.Context, storeID, fileID string) (*StoreFile, error)
	DetachFile(ctx context.Context, storeID, fileID string) error
	ListFiles(ctx context.Context, storeID string) ([]StoreFile, error)
}

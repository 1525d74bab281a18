package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIStore implements ArtifactStore on the OpenAI files and vector
// store APIs.
type OpenAIStore struct {
	client     *openai.Client
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewOpenAIStore(client *openai.Client, apiKey, baseURL string, log *slog.Logger) *OpenAIStore {
	if log == nil {
		log = slog.Default()
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIStore{
		client:     client,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.With("component", "openai_vector_store"),
	}
}

func (s *OpenAIStore) RetrieveStore(ctx context.Context, id string) (*Store, error) {
	vs, err := s.client.RetrieveVectorStore(ctx, id)
	if err != nil {
		return nil, wrapErr("retrieve vector store", err)
	}
	return fromOpenAIStore(vs), nil
}

// CreateStore uses the SDK for plain stores. The SDK request type has no
// chunking strategy, so stores with one are created over HTTP directly.
func (s *OpenAIStore) CreateStore(ctx context.Context, req CreateStoreRequest) (*Store, error) {
	if req.Chunking != nil {
		return s.createWithChunking(ctx, req)
	}

	oReq := openai.VectorStoreRequest{
		Name:     req.Name,
		Metadata: req.Metadata,
	}
	if req.ExpiresAfterDays > 0 {
		oReq.ExpiresAfter = &openai.VectorStoreExpires{
			Anchor: "last_active_at",
			Days:   req.ExpiresAfterDays,
		}
	}
	vs, err := s.client.CreateVectorStore(ctx, oReq)
	if err != nil {
		return nil, wrapErr("create vector store", err)
	}
	return fromOpenAIStore(vs), nil
}

type expiresAfter struct {
	Anchor string `json:"anchor"`
	Days   int    `json:"days"`
}

type createStoreBody struct {
	Name             string            `json:"name,omitempty"`
	ExpiresAfter     *expiresAfter     `json:"expires_after,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
	ChunkingStrategy *ChunkingStrategy `json:"chunking_strategy,omitempty"`
}

type storeBody struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
	FileCounts struct {
		Total int `json:"total"`
	} `json:"file_counts"`
	Metadata map[string]any `json:"metadata"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *OpenAIStore) createWithChunking(ctx context.Context, req CreateStoreRequest) (*Store, error) {
	body := createStoreBody{
		Name:             req.Name,
		Metadata:         req.Metadata,
		ChunkingStrategy: req.Chunking,
	}
	if req.ExpiresAfterDays > 0 {
		body.ExpiresAfter = &expiresAfter{Anchor: "last_active_at", Days: req.ExpiresAfterDays}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode vector store request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/vector_stores", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create vector store request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		var apiErr apiErrorBody
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, fmt.Errorf("create vector store: status %d: %s", resp.StatusCode, msg)
	}

	var out storeBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode vector store: %w", err)
	}
	return &Store{
		ID:        out.ID,
		Name:      out.Name,
		Status:    out.Status,
		FileCount: out.FileCounts.Total,
		CreatedAt: out.CreatedAt,
		Metadata:  out.Metadata,
	}, nil
}

func (s *OpenAIStore) ListStores(ctx context.Context) ([]Store, error) {
	limit := 100
	list, err := s.client.ListVectorStores(ctx, openai.Pagination{Limit: &limit})
	if err != nil {
		return nil, wrapErr("list vector stores", err)
	}
	out := make([]Store, 0, len(list.VectorStores))
	for _, vs := range list.VectorStores {
		out = append(out, *fromOpenAIStore(vs))
	}
	return out, nil
}

func (s *OpenAIStore) DeleteStore(ctx context.Context, id string) error {
	if _, err := s.client.DeleteVectorStore(ctx, id); err != nil {
		return wrapErr("delete vector store", err)
	}
	return nil
}

func (s *OpenAIStore) UploadArtifact(ctx context.Context, name string, data []byte) (string, error) {
	file, err := s.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", wrapErr("upload file", err)
	}
	return file.ID, nil
}

func (s *OpenAIStore) DeleteArtifact(ctx context.Context, fileID string) error {
	if err := s.client.DeleteFile(ctx, fileID); err != nil {
		return wrapErr("delete file", err)
	}
	return nil
}

func (s *OpenAIStore) AttachFile(ctx context.Context, storeID, fileID string) (*StoreFile, error) {
	f, err := s.client.CreateVectorStoreFile(ctx, storeID, openai.VectorStoreFileRequest{FileID: fileID})
	if err != nil {
		return nil, wrapErr("attach file", err)
	}
	return fromOpenAIFile(f), nil
}

func (s *OpenAIStore) DetachFile(ctx context.Context, storeID, fileID string) error {
	if err := s.client.DeleteVectorStoreFile(ctx, storeID, fileID); err != nil {
		return wrapErr("detach file", err)
	}
	return nil
}

func (s *OpenAIStore) ListFiles(ctx context.Context, storeID string) ([]StoreFile, error) {
	limit := 100
	list, err := s.client.ListVectorStoreFiles(ctx, storeID, openai.Pagination{Limit: &limit})
	if err != nil {
		return nil, wrapErr("list vector store files", err)
	}
	out := make([]StoreFile, 0, len(list.VectorStoreFiles))
	for _, f := range list.VectorStoreFiles {
		out = append(out, *fromOpenAIFile(f))
	}
	return out, nil
}

func fromOpenAIStore(vs openai.VectorStore) *Store {
	return &Store{
		ID:        vs.ID,
		Name:      vs.Name,
		Status:    vs.Status,
		FileCount: int(vs.FileCounts.Total),
		CreatedAt: int64(vs.CreatedAt),
	}
}

func fromOpenAIFile(f openai.VectorStoreFile) *StoreFile {
	return &StoreFile{
		ID:            f.ID,
		VectorStoreID: f.VectorStoreID,
		Status:        f.Status,
		CreatedAt:     int64(f.CreatedAt),
	}
}

// wrapErr tags 404 responses with ErrNotFound so release paths can treat
// an already-deleted resource as released.
func wrapErr(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Package document turns uploaded files into indexed, persisted document
// records and manages those records afterwards.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/models"
)

const DefaultMaxBytes = 10 << 20

// AllowedTypes are the MIME types accepted for upload.
var AllowedTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/csv",
	"text/markdown",
	"text/html",
	"image/png",
	"image/jpeg",
	"image/jpg",
	"image/gif",
	"image/webp",
}

type ContentExtractor interface {
	Extract(ctx context.Context, file models.UploadedFile, prompt string, progress PageProgress) (*models.ExtractionResult, error)
}

type Indexer interface {
	Index(ctx context.Context, extraction *models.ExtractionResult, originalName, storeID string) (*models.IndexEntry, error)
}

type Releaser interface {
	ReleaseDocument(ctx context.Context, doc *models.Document) bool
}

type ServiceConfig struct {
	MaxBytes       int64
	ProcessTimeout time.Duration
}

type Service struct {
	repo      Repository
	extractor ContentExtractor
	indexer   Indexer
	releaser  Releaser
	tracker   *Tracker
	cfg       ServiceConfig
	log       *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, extractor ContentExtractor, indexer Indexer, releaser Releaser, tracker *Tracker, cfg ServiceConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if tracker == nil {
		tracker = NewTracker(0, log)
	}
	return &Service{
		repo:      repo,
		extractor: extractor,
		indexer:   indexer,
		releaser:  releaser,
		tracker:   tracker,
		cfg:       cfg,
		log:       log.With("component", "document_service"),
		now:       time.Now,
	}
}

func (s *Service) Tracker() *Tracker {
	return s.tracker
}

type UploadRequest struct {
	File          models.UploadedFile
	ProgressID    string
	Prompt        string
	VectorStoreID string
}

type ExistingDocument struct {
	ID               string    `json:"id"`
	UploadedAt       time.Time `json:"uploadedAt"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
}

type Processing struct {
	Method       string `json:"method"`
	OriginalType string `json:"originalType"`
}

type UploadResult struct {
	Message          string                   `json:"message"`
	OriginalName     string                   `json:"originalName"`
	Size             int64                    `json:"size"`
	Type             string                   `json:"type"`
	UploadedAt       time.Time                `json:"uploadedAt"`
	Duplicate        bool                     `json:"duplicate,omitempty"`
	ExistingDocument *ExistingDocument        `json:"existingDocument,omitempty"`
	Processing       *Processing              `json:"processing,omitempty"`
	Extraction       *models.ExtractionResult `json:"extraction,omitempty"`
	DocumentID       string                   `json:"documentId,omitempty"`
	VectorStore      *models.IndexEntry       `json:"vectorStore,omitempty"`
}

// Validate checks size and type before anything external is touched.
func (s *Service) Validate(f models.UploadedFile) error {
	if f.Size > s.cfg.MaxBytes {
		return apperr.Validation(fmt.Sprintf("File size exceeds %dMB limit", s.cfg.MaxBytes>>20), nil)
	}
	if !slices.Contains(AllowedTypes, f.MimeType) {
		return apperr.Validation("File type not allowed", map[string]string{"type": f.MimeType})
	}
	return nil
}

// Upload runs validate, duplicate check, extract, index and persist in
// order. Any failure after validation aborts the run and nothing is saved.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	f := req.File
	if f.Size == 0 {
		f.Size = int64(len(f.Data))
	}
	session := s.tracker.Start(req.ProgressID)
	log := s.log.With("filename", f.Name, "progress_id", req.ProgressID)
	log.Info("upload.start", "size", f.Size, "type", f.MimeType)

	session.Update(StepStarting, "Upload received", 0, nil)
	session.Update(StepValidating, "Validating file", 10, nil)
	if err := s.Validate(f); err != nil {
		log.Warn("upload.rejected", "error", err)
		session.Fail(ErrorMessage(err))
		return nil, err
	}

	existing, err := s.repo.FindByOriginalName(ctx, f.Name)
	if err != nil {
		session.Fail("Duplicate check failed")
		return nil, err
	}
	if existing != nil {
		log.Warn("upload.duplicate", "document_id", existing.ID)
		return s.duplicateResult(f, existing, session), nil
	}

	if s.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ProcessTimeout)
		defer cancel()
	}

	start := s.now()
	doc, result, err := s.process(ctx, req, f, session)
	if errors.Is(err, ErrDuplicateName) {
		// a concurrent upload of the same name committed first
		existing, findErr := s.repo.FindByOriginalName(context.WithoutCancel(ctx), f.Name)
		if findErr == nil && existing != nil {
			log.Warn("upload.duplicate.race", "document_id", existing.ID)
			return s.duplicateResult(f, existing, session), nil
		}
		err = apperr.Database("insert document", err)
	}
	if err != nil {
		log.Error("upload.failed", "error", err, "duration_ms", s.now().Sub(start).Milliseconds())
		session.Fail(ErrorMessage(err))
		return nil, err
	}

	log.Info("upload.ok",
		"document_id", doc.ID,
		"vector_store_id", result.VectorStore.VectorStoreID,
		"cells", len(result.Extraction.Tables),
		"text_length", len(result.Extraction.RawText),
		"duration_ms", doc.ProcessingTimeMs,
	)
	session.Complete("Processing complete", map[string]any{"documentId": doc.ID})
	return result, nil
}

func (s *Service) duplicateResult(f models.UploadedFile, existing *models.Document, session *Session) *UploadResult {
	session.Complete("File already exists", map[string]any{"duplicate": true, "documentId": existing.ID})
	return &UploadResult{
		Message:      "File already exists",
		OriginalName: f.Name,
		Size:         f.Size,
		Type:         f.MimeType,
		UploadedAt:   s.now().UTC(),
		Duplicate:    true,
		ExistingDocument: &ExistingDocument{
			ID:               existing.ID,
			UploadedAt:       existing.UploadedAt,
			ProcessingTimeMs: existing.ProcessingTimeMs,
		},
	}
}

func (s *Service) process(ctx context.Context, req UploadRequest, f models.UploadedFile, session *Session) (*models.Document, *UploadResult, error) {
	start := s.now()
	lane := Classify(f.Name, f.MimeType)

	session.Update(StepProcessing, "Processing "+string(lane)+" file", 20, nil)
	session.Update(StepExtracting, "Extracting content", 30, nil)
	extraction, err := s.extractor.Extract(ctx, f, req.Prompt, func(done, total int) {
		session.Update(StepExtracting, fmt.Sprintf("Extracted page %d of %d", done, total), 30+40*done/total, nil)
	})
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	session.Update(StepIndexing, "Adding content to vector store", 80, nil)
	entry, err := s.indexer.Index(ctx, extraction, f.Name, req.VectorStoreID)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	session.Update(StepSaving, "Saving document", 90, nil)
	id := uuid.NewString()
	doc := &models.Document{
		ID:                id,
		FileID:            "direct-processing-" + uuid.NewString(),
		Filename:          f.Name,
		OriginalName:      f.Name,
		FileSize:          f.Size,
		FileType:          f.MimeType,
		UploadedAt:        s.now().UTC(),
		ProcessingTimeMs:  s.now().Sub(start).Milliseconds(),
		Status:            models.DocStatusSuccess,
		ExtractedContent:  extraction,
		VectorStoreID:     &entry.VectorStoreID,
		VectorStoreFileID: &entry.VectorStoreFileID,
		ExtractedFileID:   &entry.ExtractedFileID,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if errors.Is(err, ErrDuplicateName) && s.releaser != nil {
			s.releaser.ReleaseDocument(context.WithoutCancel(ctx), doc)
		}
		return nil, nil, err
	}

	return doc, &UploadResult{
		Message:      "File uploaded successfully",
		OriginalName: f.Name,
		Size:         f.Size,
		Type:         f.MimeType,
		UploadedAt:   doc.UploadedAt,
		Processing: &Processing{
			Method:       processingMethod(lane),
			OriginalType: f.MimeType,
		},
		Extraction:  extraction,
		DocumentID:  doc.ID,
		VectorStore: entry,
	}, nil
}

func processingMethod(lane models.Lane) string {
	if lane == models.LaneText {
		return "direct-text"
	}
	return "direct-vision-api"
}

// ErrorMessage is the client-facing text for an upload failure.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "Upload cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Processing timed out"
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "Failed to upload file"
}

func (s *Service) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.Document, error) {
	return s.repo.List(ctx)
}

// Delete releases the document's vector store artifacts best-effort, then
// removes the record.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.releaser != nil {
		s.releaser.ReleaseDocument(ctx, doc)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("document.deleted", "document_id", id, "original_name", doc.OriginalName)
	return nil
}

// DeleteAll removes every record and its artifacts. It returns the number
// of records deleted.
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if s.releaser != nil {
			s.releaser.ReleaseDocument(ctx, &docs[i])
		}
		if err := s.repo.Delete(ctx, docs[i].ID); err != nil {
			return n, err
		}
		n++
	}
	s.log.Info("document.deleted_all", "count", n)
	return n, nil
}

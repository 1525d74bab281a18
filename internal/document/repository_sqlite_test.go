package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/database"
	"github.com/nikhilbhutani/docsearch/internal/models"
)

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteRepository(db)
}

func strPtr(s string) *string { return &s }

func sampleDoc(id, name string, at time.Time) *models.Document {
	return &models.Document{
		ID:               id,
		FileID:           "direct-processing-" + id,
		Filename:         name,
		OriginalName:     name,
		FileSize:         42,
		FileType:         "text/csv",
		UploadedAt:       at,
		ProcessingTimeMs: 12,
		Status:           models.DocStatusSuccess,
		ExtractedContent: &models.ExtractionResult{
			DocumentType:    "other",
			ExtractedFields: map[string]any{"total": "9"},
			Confidence:      0.5,
			Tables:          []models.TableCell{{Row: "Row 1", Column: "a", Value: "1"}},
			RawText:         "a\n1",
			PageCount:       1,
		},
		VectorStoreID:     strPtr("vs_1"),
		VectorStoreFileID: strPtr("file_" + id),
		ExtractedFileID:   strPtr("file_" + id),
	}
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := repo.Create(ctx, sampleDoc("d1", "a.csv", at)); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.UploadedAt.Equal(at) || got.OriginalName != "a.csv" || *got.VectorStoreID != "vs_1" {
		t.Errorf("got = %+v", got)
	}
	if got.ExtractedContent == nil || got.ExtractedContent.Tables[0].Value != "1" || got.ExtractedContent.ExtractedFields["total"] != "9" {
		t.Errorf("content = %+v", got.ExtractedContent)
	}
}

func TestSQLiteRepositoryNullables(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	doc := sampleDoc("d1", "a.csv", time.Now())
	doc.ExtractedContent = nil
	doc.VectorStoreID, doc.VectorStoreFileID, doc.ExtractedFileID = nil, nil, nil

	if err := repo.Create(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ExtractedContent != nil || got.VectorStoreID != nil || got.ExtractedFileID != nil {
		t.Errorf("got = %+v", got)
	}
}

func TestSQLiteRepositoryListNewestFirst(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, name := range []string{"old.csv", "mid.csv", "new.csv"} {
		doc := sampleDoc(name, name, base.Add(time.Duration(i)*time.Second+time.Duration(i)*time.Millisecond))
		if err := repo.Create(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 || docs[0].ID != "new.csv" || docs[2].ID != "old.csv" {
		t.Errorf("order = %v, %v, %v", docs[0].ID, docs[1].ID, docs[2].ID)
	}
}

func TestSQLiteRepositoryFindByOriginalName(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	got, err := repo.FindByOriginalName(ctx, "missing.pdf")
	if err != nil || got != nil {
		t.Fatalf("got = %v, err = %v", got, err)
	}

	if err := repo.Create(ctx, sampleDoc("d1", "inv.pdf", time.Now())); err != nil {
		t.Fatal(err)
	}
	got, err = repo.FindByOriginalName(ctx, "inv.pdf")
	if err != nil || got == nil || got.ID != "d1" {
		t.Fatalf("got = %v, err = %v", got, err)
	}
}

func TestSQLiteRepositoryRejectsDuplicateName(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, sampleDoc("d1", "inv.pdf", time.Now())); err != nil {
		t.Fatal(err)
	}
	err := repo.Create(ctx, sampleDoc("d2", "inv.pdf", time.Now()))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v", err)
	}
	if _, err := repo.Get(ctx, "d2"); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("second record should not exist, err = %v", err)
	}
}

func TestSQLiteRepositoryNotFound(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "nope"); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("get err = %v", err)
	}
	if err := repo.Delete(ctx, "nope"); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("delete err = %v", err)
	}
}

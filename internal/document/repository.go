package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/models"
)

// ErrDuplicateName is returned by Create when a record with the same
// original name already exists.
var ErrDuplicateName = errors.New("document name already exists")

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Repository persists document records.
type Repository interface {
	// Create fails with ErrDuplicateName when the original name is taken.
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	// FindByOriginalName returns nil, nil when no record has that name.
	FindByOriginalName(ctx context.Context, name string) (*models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
	Delete(ctx context.Context, id string) error
}

const documentColumns = `id, file_id, filename, original_name, file_size, file_type, uploaded_at,
	processing_time_ms, status, extracted_content, vector_store_id, vector_store_file_id, extracted_file_id`

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) error {
	content, err := encodeContent(doc.ExtractedContent)
	if err != nil {
		return apperr.Database("encode extracted content", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		doc.ID, doc.FileID, doc.Filename, doc.OriginalName, doc.FileSize, doc.FileType, doc.UploadedAt,
		doc.ProcessingTimeMs, doc.Status, content, doc.VectorStoreID, doc.VectorStoreFileID, doc.ExtractedFileID,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("insert %q: %w", doc.OriginalName, ErrDuplicateName)
	}
	if err != nil {
		return apperr.Database("insert document", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Document", id)
	}
	if err != nil {
		return nil, apperr.Database("get document", err)
	}
	return doc, nil
}

func (r *PostgresRepository) FindByOriginalName(ctx context.Context, name string) (*models.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE original_name = $1 ORDER BY uploaded_at DESC LIMIT 1`, name)
	doc, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database("find document by name", err)
	}
	return doc, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, apperr.Database("list documents", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d, err := scanPostgres(rows)
		if err != nil {
			return nil, apperr.Database("scan document", err)
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database("list documents", err)
	}
	return docs, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return apperr.Database("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Document", id)
	}
	return nil
}

func scanPostgres(row pgx.Row) (*models.Document, error) {
	var d models.Document
	var content []byte
	err := row.Scan(&d.ID, &d.FileID, &d.Filename, &d.OriginalName, &d.FileSize, &d.FileType, &d.UploadedAt,
		&d.ProcessingTimeMs, &d.Status, &content, &d.VectorStoreID, &d.VectorStoreFileID, &d.ExtractedFileID)
	if err != nil {
		return nil, err
	}
	if d.ExtractedContent, err = decodeContent(content); err != nil {
		return nil, err
	}
	return &d, nil
}

func encodeContent(e *models.ExtractionResult) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

func decodeContent(raw []byte) (*models.ExtractionResult, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var e models.ExtractionResult
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode extracted content: %w", err)
	}
	return &e, nil
}

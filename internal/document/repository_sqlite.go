package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/models"
)

// sqliteTime is fixed width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository stores documents in a local SQLite file. Used when no
// DATABASE_URL is configured.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, doc *models.Document) error {
	content, err := encodeContent(doc.ExtractedContent)
	if err != nil {
		return apperr.Database("encode extracted content", err)
	}
	var contentArg any
	if content != nil {
		contentArg = string(content)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.FileID, doc.Filename, doc.OriginalName, doc.FileSize, doc.FileType,
		doc.UploadedAt.UTC().Format(sqliteTime),
		doc.ProcessingTimeMs, doc.Status, contentArg, doc.VectorStoreID, doc.VectorStoreFileID, doc.ExtractedFileID,
	)
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("insert %q: %w", doc.OriginalName, ErrDuplicateName)
	}
	if err != nil {
		return apperr.Database("insert document", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Document", id)
	}
	if err != nil {
		return nil, apperr.Database("get document", err)
	}
	return doc, nil
}

func (r *SQLiteRepository) FindByOriginalName(ctx context.Context, name string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE original_name = ? ORDER BY uploaded_at DESC LIMIT 1`, name)
	doc, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database("find document by name", err)
	}
	return doc, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, apperr.Database("list documents", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d, err := scanSQLite(rows)
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

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return apperr.Database("delete document", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("Document", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (*models.Document, error) {
	var d models.Document
	var uploadedAt string
	var content sql.NullString
	var vsID, vsFileID, extractedID sql.NullString
	err := row.Scan(&d.ID, &d.FileID, &d.Filename, &d.OriginalName, &d.FileSize, &d.FileType, &uploadedAt,
		&d.ProcessingTimeMs, &d.Status, &content, &vsID, &vsFileID, &extractedID)
	if err != nil {
		return nil, err
	}
	if d.UploadedAt, err = time.Parse(sqliteTime, uploadedAt); err != nil {
		return nil, err
	}
	if content.Valid {
		if d.ExtractedContent, err = decodeContent([]byte(content.String)); err != nil {
			return nil, err
		}
	}
	d.VectorStoreID = nullable(vsID)
	d.VectorStoreFileID = nullable(vsFileID)
	d.ExtractedFileID = nullable(extractedID)
	return &d, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

package models

import "time"

type Document struct {
	ID                string            `json:"id" db:"id"`
	FileID            string            `json:"fileId" db:"file_id"`
	Filename          string            `json:"filename" db:"filename"`
	OriginalName      string            `json:"originalName" db:"original_name"`
	FileSize          int64             `json:"fileSize" db:"file_size"`
	FileType          string            `json:"fileType" db:"file_type"`
	UploadedAt        time.Time         `json:"uploadedAt" db:"uploaded_at"`
	ProcessingTimeMs  int64             `json:"processingTimeMs" db:"processing_time_ms"`
	Status            string            `json:"status" db:"status"`
	ExtractedContent  *ExtractionResult `json:"extractedContent" db:"extracted_content"`
	VectorStoreID     *string           `json:"vectorStoreId,omitempty" db:"vector_store_id"`
	VectorStoreFileID *string           `json:"vectorStoreFileId,omitempty" db:"vector_store_file_id"`
	ExtractedFileID   *string           `json:"extractedFileId,omitempty" db:"extracted_file_id"`
}

// UploadedFile is the request-scoped form of an upload. It is never persisted.
type UploadedFile struct {
	Data     []byte
	Name     string
	MimeType string
	Size     int64
}

// IndexEntry links a document's extracted content to the external vector store.
type IndexEntry struct {
	VectorStoreID     string `json:"vectorStoreId"`
	VectorStoreFileID string `json:"vectorStoreFileId"`
	ExtractedFileID   string `json:"extractedFileId"`
	Status            string `json:"status"`
}

const (
	DocStatusSuccess = "success"
	DocStatusPending = "pending"
)

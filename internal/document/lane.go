package document

import (
	"path/filepath"
	"strings"

	"github.com/nikhilbhutani/docsearch/internal/models"
)

var imageExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

// Classify picks the processing lane for an upload. An image extension wins
// over any declared MIME type.
func Classify(filename, mimeType string) models.Lane {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	mimeType = strings.ToLower(mimeType)

	if strings.HasPrefix(mimeType, "image/") || imageExtensions[ext] {
		return models.LaneImage
	}
	if mimeType == "application/pdf" || ext == "pdf" {
		return models.LanePDF
	}
	return models.LaneText
}

// imageMimeType returns the MIME type to send alongside an image upload.
func imageMimeType(filename, declared string) string {
	if strings.HasPrefix(strings.ToLower(declared), "image/") {
		if declared == "image/jpg" {
			return "image/jpeg"
		}
		return declared
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

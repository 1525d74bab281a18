package document

import (
	"fmt"
	"strings"

	"github.com/nikhilbhutani/docsearch/internal/models"
)

// Merge folds per-page results into one document result, in page order.
// Scalar fields take the last value a page actually supplied; a reported
// confidence of 0 counts as supplied. With more
// than one page, row labels and text blocks are tagged with their page.
func Merge(pages []models.PageExtraction) models.ExtractionResult {
	n := len(pages)
	out := models.ExtractionResult{
		DocumentType:    models.DocumentTypeOther,
		ExtractedFields: map[string]any{},
		Tables:          []models.TableCell{},
		PageCount:       n,
	}

	var blocks []string
	for i, p := range pages {
		k := i + 1

		if p.DocumentType != "" {
			out.DocumentType = p.DocumentType
		}
		if len(p.ExtractedFields) > 0 {
			out.ExtractedFields = p.ExtractedFields
		}
		if p.Confidence != nil {
			out.Confidence = *p.Confidence
		}

		for _, cell := range p.Tables {
			if n > 1 {
				cell.Row = fmt.Sprintf("%s (Page %d/%d)", cell.Row, k, n)
			}
			out.Tables = append(out.Tables, cell)
		}

		if p.RawText == "" {
			continue
		}
		if n > 1 {
			blocks = append(blocks, fmt.Sprintf("=== Page %d ===\n%s", k, p.RawText))
		} else {
			blocks = append(blocks, p.RawText)
		}
	}
	out.RawText = strings.Join(blocks, "\n\n")

	return out
}

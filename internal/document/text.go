package document

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/models"
	"github.com/nikhilbhutani/docsearch/pkg/textextract"
)

const textLaneConfidence = 0.5

type TextExtractor struct {
	ex  *textextract.Extractor
	log *slog.Logger
}

func NewTextExtractor(log *slog.Logger) *TextExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &TextExtractor{ex: textextract.New(), log: log.With("component", "text_extractor")}
}

// Extract handles the text lane without any model call. Tabular formats
// get one cell per (row, header) pair, labelled "Row {n}".
func (t *TextExtractor) Extract(data []byte, filename string) (*models.ExtractionResult, error) {
	text, err := t.ex.Extract(data, filename)
	if err != nil {
		if errors.Is(err, textextract.ErrInvalidEncoding) {
			return nil, apperr.FileProcessing("file content is not valid UTF-8 text", err)
		}
		return nil, apperr.FileProcessing("failed to extract text", err)
	}

	cells := tableCells(text.Headers, text.Rows)
	attrs := []any{"filename", filename, "format", text.Format, "cells", len(cells), "text_length", len(text.Content)}
	if text.Sheets > 0 {
		attrs = append(attrs, "sheets", text.Sheets)
	}
	t.log.Debug("text.extract.ok", attrs...)

	return &models.ExtractionResult{
		DocumentType:    models.DocumentTypeOther,
		ExtractedFields: map[string]any{},
		Confidence:      textLaneConfidence,
		Tables:          cells,
		RawText:         text.Content,
		PageCount:       1,
	}, nil
}

func tableCells(headers []string, rows [][]string) []models.TableCell {
	cells := []models.TableCell{}
	for i, row := range rows {
		label := fmt.Sprintf("Row %d", i+1)
		for j := 0; j < min(len(headers), len(row)); j++ {
			cells = append(cells, models.TableCell{
				Row:    label,
				Column: headers[j],
				Value:  row[j],
			})
		}
	}
	return cells
}

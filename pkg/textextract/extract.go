// Package textextract turns text-like uploads into plain text and, where the
// format is tabular, a header row plus data rows.
package textextract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/xuri/excelize/v2"
)

// ErrInvalidEncoding is returned when text content is not valid UTF-8.
var ErrInvalidEncoding = errors.New("content is not valid UTF-8")

type ExtractedText struct {
	Content string
	// Headers and Rows are set for tabular formats. Rows are data rows only.
	Headers []string
	Rows    [][]string
	// Format names the parser used: csv, docx, xlsx, html or txt.
	Format string
	// Sheets is the workbook sheet count for xlsx.
	Sheets int
}

type Extractor struct {
	md *converter.Converter
}

func New() *Extractor {
	return &Extractor{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Extract dispatches on the file extension. Anything unrecognised is read
// as plain UTF-8 text.
func (e *Extractor) Extract(data []byte, filename string) (*ExtractedText, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return extractCSV(data)
	case ".docx":
		return extractDOCX(data)
	case ".xlsx":
		return extractXLSX(data)
	case ".html", ".htm":
		return e.extractHTML(data)
	default:
		return extractTXT(data)
	}
}

// extractCSV splits on newlines and commas without quoting rules. Blank
// lines are dropped, the first remaining line is the header and ragged rows
// are kept as-is for the caller to truncate.
func extractCSV(data []byte) (*ExtractedText, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}
	content := string(data)

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	out := &ExtractedText{
		Content: content,
		Format:  "csv",
	}
	if len(lines) < 2 {
		return out, nil
	}

	out.Headers = splitTrim(lines[0])
	for _, line := range lines[1:] {
		out.Rows = append(out.Rows, splitTrim(line))
	}
	return out, nil
}

func splitTrim(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func extractDOCX(data []byte) (*ExtractedText, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	var buf strings.Builder
	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		buf.WriteString(stripXMLTags(string(content)))
		break
	}

	return &ExtractedText{
		Content: buf.String(),
		Format:  "docx",
	}, nil
}

// extractXLSX reads every sheet. The first row of each sheet is its header;
// data rows from all sheets are appended in sheet order.
func extractXLSX(data []byte) (*ExtractedText, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open XLSX: %w", err)
	}
	defer f.Close()

	out := &ExtractedText{Format: "xlsx"}

	var buf strings.Builder
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		if len(sheets) > 1 {
			fmt.Fprintf(&buf, "# %s\n", sheet)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteString("\n")
		}
		if out.Headers == nil {
			out.Headers = trimAll(rows[0])
		}
		for _, row := range rows[1:] {
			out.Rows = append(out.Rows, trimAll(row))
		}
	}
	out.Content = buf.String()
	out.Sheets = len(sheets)
	return out, nil
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func (e *Extractor) extractHTML(data []byte) (*ExtractedText, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}
	md, err := e.md.ConvertString(string(data))
	if err != nil {
		return nil, fmt.Errorf("convert HTML: %w", err)
	}
	return &ExtractedText{
		Content: md,
		Format:  "html",
	}, nil
}

func extractTXT(data []byte) (*ExtractedText, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}
	return &ExtractedText{
		Content: string(data),
		Format:  "txt",
	}, nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}

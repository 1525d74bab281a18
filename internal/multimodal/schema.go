package multimodal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nikhilbhutani/docsearch/internal/models"
)

// pageSchemaMap is the only shape accepted from the model. Every key is
// optional and may be null; cells may carry numbers, which are rendered
// back to text.
func pageSchemaMap() map[string]any {
	scalar := map[string]any{"type": []any{"string", "number", "boolean", "null"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"documentType":    map[string]any{"type": []any{"string", "null"}},
			"extractedFields": map[string]any{"type": []any{"object", "null"}},
			"confidence": map[string]any{
				"type":    []any{"number", "null"},
				"minimum": 0,
				"maximum": 1,
			},
			"tables": map[string]any{
				"type": []any{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"row":    scalar,
						"column": scalar,
						"value":  scalar,
					},
				},
			},
			"rawText": map[string]any{"type": []any{"string", "null"}},
		},
	}
}

func compilePageSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(pageSchemaMap())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("page.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("page.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

type rawCell struct {
	Row    any `json:"row"`
	Column any `json:"column"`
	Value  any `json:"value"`
}

type rawPage struct {
	DocumentType    *string        `json:"documentType"`
	ExtractedFields map[string]any `json:"extractedFields"`
	Confidence      *float64       `json:"confidence"`
	Tables          []rawCell      `json:"tables"`
	RawText         *string        `json:"rawText"`
}

// parsePage strips an optional code fence, checks the payload against the
// schema and converts it to a PageExtraction.
func parsePage(schema *jsonschema.Schema, content string) (*models.PageExtraction, error) {
	data := []byte(stripCodeFence(content))

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("model output does not match schema: %w", err)
	}

	var raw rawPage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	page := &models.PageExtraction{
		ExtractedFields: raw.ExtractedFields,
		Tables:          make([]models.TableCell, 0, len(raw.Tables)),
	}
	if raw.DocumentType != nil {
		page.DocumentType = strings.TrimSpace(*raw.DocumentType)
	}
	page.Confidence = raw.Confidence
	if raw.RawText != nil {
		page.RawText = *raw.RawText
	}
	for _, c := range raw.Tables {
		page.Tables = append(page.Tables, models.TableCell{
			Row:    cellText(c.Row),
			Column: cellText(c.Column),
			Value:  cellText(c.Value),
		})
	}
	return page, nil
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

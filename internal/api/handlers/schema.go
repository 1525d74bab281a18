package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
)

// fieldRule turns a schema failure at an instance location into a client
// message. keyword "" matches any keyword at that location.
type fieldRule struct {
	location string
	keyword  string
	message  string
	details  any
}

// bodySchema is a compiled request body schema plus the messages reported
// for its failures. Rules are checked in order.
type bodySchema struct {
	schema *jsonschema.Schema
	rules  []fieldRule
}

func mustBodySchema(name string, schema map[string]any, rules ...fieldRule) *bodySchema {
	b, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("marshal %s schema: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add %s schema: %v", name, err))
	}
	return &bodySchema{schema: compiler.MustCompile(name), rules: rules}
}

// decode reads the request body, validates it and unmarshals it into dst.
// An empty body is validated as {}.
func (s *bodySchema) decode(r *http.Request, dst any) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return apperr.Validation("Invalid JSON in request body", nil)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return apperr.Validation("Invalid JSON in request body", nil)
	}
	if err := s.schema.Validate(v); err != nil {
		return s.explain(err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Validation("Invalid JSON in request body", nil)
	}
	return nil
}

func (s *bodySchema) explain(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return apperr.Validation("Invalid request body", nil)
	}
	leaves := leafErrors(ve, nil)
	for _, rule := range s.rules {
		for _, l := range leaves {
			if l.InstanceLocation == rule.location && (rule.keyword == "" || lastSegment(l.KeywordLocation) == rule.keyword) {
				return apperr.Validation(rule.message, rule.details)
			}
		}
	}
	first := leaves[0]
	return apperr.Validation("Invalid request body", map[string]string{
		"field": strings.TrimPrefix(first.InstanceLocation, "/"),
		"error": first.Message,
	})
}

func leafErrors(ve *jsonschema.ValidationError, out []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return append(out, ve)
	}
	for _, c := range ve.Causes {
		out = leafErrors(c, out)
	}
	return out
}

func lastSegment(pointer string) string {
	return pointer[strings.LastIndexByte(pointer, '/')+1:]
}

var searchBody = mustBodySchema("search.json", map[string]any{
	"type":     "object",
	"required": []any{"query"},
	"properties": map[string]any{
		"query": map[string]any{
			"type":      "string",
			"minLength": 1,
			"maxLength": maxQueryLen,
			"pattern":   `\S`,
		},
		"vectorStoreId": map[string]any{
			"type":    []any{"string", "null"},
			"pattern": `^[a-zA-Z0-9_-]*$`,
		},
	},
},
	fieldRule{"", "required", "Search query is required", map[string]string{"field": "query"}},
	fieldRule{"/query", "type", "Search query is required", map[string]string{"field": "query"}},
	fieldRule{"/query", "minLength", "Search query is required", map[string]string{"field": "query"}},
	fieldRule{"/query", "maxLength", "Search query is too long", map[string]any{"field": "query", "max": maxQueryLen}},
	fieldRule{"/query", "pattern", "Search query cannot be empty or only whitespace", map[string]string{"field": "query"}},
	fieldRule{"/vectorStoreId", "", "Invalid vector store ID", nil},
)

var createStoreBody = mustBodySchema("create_vector_store.json", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name": map[string]any{
			"type":      []any{"string", "null"},
			"minLength": 1,
			"maxLength": 100,
		},
		"expires_days": map[string]any{
			"type":    []any{"integer", "null"},
			"minimum": 1,
			"maximum": 365,
		},
		"metadata": map[string]any{"type": []any{"object", "null"}},
		"chunking_strategy": map[string]any{
			"type":     []any{"object", "null"},
			"required": []any{"type", "static"},
			"properties": map[string]any{
				"type": map[string]any{"const": "static"},
				"static": map[string]any{
					"type":     "object",
					"required": []any{"max_chunk_size_tokens"},
					"properties": map[string]any{
						"max_chunk_size_tokens": map[string]any{"type": "integer", "minimum": 1, "maximum": 2000},
						"chunk_overlap_tokens":  map[string]any{"type": "integer", "minimum": 0, "maximum": 1000},
					},
				},
			},
		},
	},
},
	fieldRule{"/name", "maxLength", "Name too long", map[string]string{"field": "name"}},
	fieldRule{"/name", "", "Name cannot be empty", map[string]string{"field": "name"}},
	fieldRule{"/expires_days", "", "Expiration must be between 1 and 365 days", map[string]string{"field": "expires_days"}},
	fieldRule{"/chunking_strategy/static/max_chunk_size_tokens", "", "max_chunk_size_tokens must be between 1 and 2000",
		map[string]string{"field": "chunking_strategy.static.max_chunk_size_tokens"}},
	fieldRule{"/chunking_strategy/static", "required", "max_chunk_size_tokens must be between 1 and 2000",
		map[string]string{"field": "chunking_strategy.static.max_chunk_size_tokens"}},
	fieldRule{"/chunking_strategy/static/chunk_overlap_tokens", "", "chunk_overlap_tokens must be between 0 and 1000",
		map[string]string{"field": "chunking_strategy.static.chunk_overlap_tokens"}},
	fieldRule{"/chunking_strategy/type", "", "Chunking strategy must be static", map[string]string{"field": "chunking_strategy"}},
	fieldRule{"/chunking_strategy/static", "", "Chunking strategy must be static", map[string]string{"field": "chunking_strategy"}},
	fieldRule{"/chunking_strategy", "", "Chunking strategy must be static", map[string]string{"field": "chunking_strategy"}},
)

var addFileBody = mustBodySchema("add_file.json", map[string]any{
	"type":     "object",
	"required": []any{"file_id"},
	"properties": map[string]any{
		"file_id": map[string]any{"type": "string", "minLength": 1},
	},
},
	fieldRule{"", "required", "file_id is required", map[string]string{"field": "file_id"}},
	fieldRule{"/file_id", "", "file_id is required", map[string]string{"field": "file_id"}},
)

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusByCode(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("bad", nil), http.StatusBadRequest},
		{NotFound("Document", "abc"), http.StatusNotFound},
		{ExternalService("OpenAI", errors.New("boom")), http.StatusBadGateway},
		{Database("query failed", nil), http.StatusInternalServerError},
		{FileProcessing("no pages", nil), http.StatusUnprocessableEntity},
		{Internal("oops", nil), http.StatusInternalServerError},
		{Unauthorized("missing token"), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		if got := tt.err.Status(); got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

func TestFromWrapped(t *testing.T) {
	base := FileProcessing("parse model output", errors.New("unexpected EOF"))
	wrapped := fmt.Errorf("extract page 2: %w", base)

	got := From(wrapped)
	if got != base {
		t.Fatalf("From returned %v, want the wrapped *Error", got)
	}
	if !Is(wrapped, CodeFileProcessing) {
		t.Fatal("Is(wrapped, FILE_PROCESSING_ERROR) = false")
	}
}

func TestFromUntyped(t *testing.T) {
	got := From(errors.New("plain"))
	if got.Code != CodeInternal {
		t.Fatalf("code = %s, want %s", got.Code, CodeInternal)
	}
	if From(nil) != nil {
		t.Fatal("From(nil) should be nil")
	}
}

func TestMessages(t *testing.T) {
	if got := NotFound("Document", "abc").Message; got != "Document with identifier 'abc' not found" {
		t.Errorf("not found message = %q", got)
	}
	if got := ExternalService("OpenAI", errors.New("rate limited")).Message; got != "OpenAI error: rate limited" {
		t.Errorf("external message = %q", got)
	}
}

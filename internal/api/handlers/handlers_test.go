package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/document"
	"github.com/nikhilbhutani/docsearch/internal/models"
	"github.com/nikhilbhutani/docsearch/internal/vectorstore"
)

type apiError struct {
	Success bool `json:"success"`
	Error   struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

type fakeSearcher struct {
	query, store string
	res          *models.SearchResult
	err          error
}

func (f *fakeSearcher) Search(_ context.Context, query, storeID string) (*models.SearchResult, error) {
	f.query, f.store = query, storeID
	return f.res, f.err
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestSearchStripsCitationsAndTrims(t *testing.T) {
	s := &fakeSearcher{res: &models.SearchResult{Response: " Total is 42【4:0†source】 [1] ", RunID: "run_1", ThreadID: "th_1"}}
	h := NewSearchHandler(s)

	rec := postJSON(h.Search, `{"query":"  what is the total?  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	body := decode[struct {
		Success  bool   `json:"success"`
		Query    string `json:"query"`
		Response string `json:"response"`
		Metadata struct {
			RunID    string `json:"runId"`
			ThreadID string `json:"threadId"`
		} `json:"metadata"`
	}](t, rec)
	if !body.Success || body.Query != "what is the total?" || body.Response != "Total is 42" {
		t.Errorf("body = %+v", body)
	}
	if body.Metadata.RunID != "run_1" || s.query != "what is the total?" {
		t.Errorf("metadata = %+v, query = %q", body.Metadata, s.query)
	}
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing", `{}`},
		{"blank", `{"query":"   "}`},
		{"too long", fmt.Sprintf(`{"query":%q}`, strings.Repeat("a", 1001))},
		{"bad json", `{"query":`},
		{"bad store id", `{"query":"x","vectorStoreId":"../etc"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearcher{}
			rec := postJSON(NewSearchHandler(s).Search, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			body := decode[apiError](t, rec)
			if body.Success || body.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("body = %+v", body)
			}
			if s.query != "" {
				t.Error("searcher should not be called")
			}
		})
	}
}

func TestSearchValidationMessages(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{}`, "Search query is required"},
		{``, "Search query is required"},
		{`{"query":""}`, "Search query is required"},
		{`{"query":42}`, "Search query is required"},
		{`{"query":" \t "}`, "Search query cannot be empty or only whitespace"},
		{fmt.Sprintf(`{"query":%q}`, strings.Repeat("é", 1001)), "Search query is too long"},
		{`{"query":"x","vectorStoreId":"vs 1"}`, "Invalid vector store ID"},
		{`{"query":`, "Invalid JSON in request body"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			rec := postJSON(NewSearchHandler(&fakeSearcher{}).Search, tt.body)
			if body := decode[apiError](t, rec); body.Error.Message != tt.want {
				t.Errorf("body %s: message = %q, want %q", tt.body, body.Error.Message, tt.want)
			}
		})
	}
}

func TestSearchAcceptsNullStoreID(t *testing.T) {
	s := &fakeSearcher{res: &models.SearchResult{Response: "ok"}}
	rec := postJSON(NewSearchHandler(s).Search, `{"query":"x","vectorStoreId":null}`)
	if rec.Code != http.StatusOK || s.store != "" {
		t.Errorf("status = %d, store = %q", rec.Code, s.store)
	}
}

func TestSearchMaxLengthAccepted(t *testing.T) {
	s := &fakeSearcher{res: &models.SearchResult{Response: "ok"}}
	rec := postJSON(NewSearchHandler(s).Search, fmt.Sprintf(`{"query":%q}`, strings.Repeat("é", 1000)))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSearchExternalFailure(t *testing.T) {
	s := &fakeSearcher{err: apperr.ExternalService("OpenAI", errors.New("run failed"))}
	rec := postJSON(NewSearchHandler(s).Search, `{"query":"x"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode[apiError](t, rec); body.Error.Code != "EXTERNAL_SERVICE_ERROR" {
		t.Errorf("body = %+v", body)
	}
}

type fakeDocs struct {
	docs    map[string]*models.Document
	deleted []string
}

func (f *fakeDocs) Get(_ context.Context, id string) (*models.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, apperr.NotFound("Document", id)
	}
	return d, nil
}

func (f *fakeDocs) List(context.Context) ([]models.Document, error) {
	out := []models.Document{}
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDocs) Delete(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return apperr.NotFound("Document", id)
	}
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func documentRouter(f *fakeDocs) http.Handler {
	h := NewDocumentHandler(f)
	r := chi.NewRouter()
	r.Get("/documents", h.List)
	r.Get("/documents/{id}", h.Get)
	r.Delete("/documents/{id}", h.Delete)
	return r
}

func TestDocumentRoutes(t *testing.T) {
	f := &fakeDocs{docs: map[string]*models.Document{"d1": {ID: "d1", OriginalName: "a.csv"}}}
	r := documentRouter(f)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/documents", http.StatusOK},
		{http.MethodGet, "/documents/d1", http.StatusOK},
		{http.MethodGet, "/documents/missing", http.StatusNotFound},
		{http.MethodGet, "/documents/bad.id", http.StatusBadRequest},
		{http.MethodDelete, "/documents/d1", http.StatusOK},
		{http.MethodDelete, "/documents/d1", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
	if len(f.deleted) != 1 {
		t.Errorf("deleted = %v", f.deleted)
	}
}

type fakeStores struct {
	created  []vectorstore.CreateStoreRequest
	attached []string
	detached []string
	err      error
}

func (f *fakeStores) RetrieveStore(_ context.Context, id string) (*vectorstore.Store, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &vectorstore.Store{ID: id}, nil
}

func (f *fakeStores) CreateStore(_ context.Context, req vectorstore.CreateStoreRequest) (*vectorstore.Store, error) {
	f.created = append(f.created, req)
	return &vectorstore.Store{ID: "vs_new", Name: req.Name}, nil
}

func (f *fakeStores) ListStores(context.Context) ([]vectorstore.Store, error) {
	return []vectorstore.Store{{ID: "vs_1"}}, nil
}

func (f *fakeStores) DeleteStore(context.Context, string) error { return f.err }

func (f *fakeStores) UploadArtifact(context.Context, string, []byte) (string, error) {
	return "file_1", nil
}

func (f *fakeStores) DeleteArtifact(context.Context, string) error { return nil }

func (f *fakeStores) AttachFile(_ context.Context, storeID, fileID string) (*vectorstore.StoreFile, error) {
	f.attached = append(f.attached, storeID+"/"+fileID)
	return &vectorstore.StoreFile{ID: fileID, VectorStoreID: storeID}, nil
}

func (f *fakeStores) DetachFile(_ context.Context, storeID, fileID string) error {
	f.detached = append(f.detached, storeID+"/"+fileID)
	return nil
}

func (f *fakeStores) ListFiles(context.Context, string) ([]vectorstore.StoreFile, error) {
	return nil, nil
}

func storeRouter(f *fakeStores) http.Handler {
	h := NewVectorStoreHandler(f)
	r := chi.NewRouter()
	r.Get("/vector-stores", h.List)
	r.Post("/vector-stores", h.Create)
	r.Get("/vector-stores/{id}", h.Get)
	r.Delete("/vector-stores/{id}", h.Delete)
	r.Get("/vector-stores/{id}/files", h.ListFiles)
	r.Post("/vector-stores/{id}/files", h.AddFile)
	r.Delete("/vector-stores/{id}/files/{fileId}", h.RemoveFile)
	return r
}

func TestCreateVectorStoreValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", ``, http.StatusOK},
		{"full", `{"name":"docs","expires_days":7,"metadata":{"purpose":"x"},"chunking_strategy":{"type":"static","static":{"max_chunk_size_tokens":800,"chunk_overlap_tokens":400}}}`, http.StatusOK},
		{"empty name", `{"name":""}`, http.StatusBadRequest},
		{"long name", fmt.Sprintf(`{"name":%q}`, strings.Repeat("n", 101)), http.StatusBadRequest},
		{"expires zero", `{"expires_days":0}`, http.StatusBadRequest},
		{"expires too long", `{"expires_days":366}`, http.StatusBadRequest},
		{"auto chunking", `{"chunking_strategy":{"type":"auto"}}`, http.StatusBadRequest},
		{"chunk too big", `{"chunking_strategy":{"type":"static","static":{"max_chunk_size_tokens":2001,"chunk_overlap_tokens":0}}}`, http.StatusBadRequest},
		{"overlap too big", `{"chunking_strategy":{"type":"static","static":{"max_chunk_size_tokens":800,"chunk_overlap_tokens":1001}}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeStores{}
			rec := httptest.NewRecorder()
			storeRouter(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vector-stores", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			if tt.want == http.StatusOK && len(f.created) != 1 {
				t.Error("store not created")
			}
		})
	}
}

func TestCreateVectorStoreMessages(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"name":""}`, "Name cannot be empty"},
		{fmt.Sprintf(`{"name":%q}`, strings.Repeat("n", 101)), "Name too long"},
		{`{"expires_days":400}`, "Expiration must be between 1 and 365 days"},
		{`{"expires_days":1.5}`, "Expiration must be between 1 and 365 days"},
		{`{"chunking_strategy":{"type":"auto"}}`, "Chunking strategy must be static"},
		{`{"chunking_strategy":{"type":"static","static":{}}}`, "max_chunk_size_tokens must be between 1 and 2000"},
		{`{"chunking_strategy":{"type":"static","static":{"max_chunk_size_tokens":0}}}`, "max_chunk_size_tokens must be between 1 and 2000"},
		{`{"chunking_strategy":{"type":"static","static":{"max_chunk_size_tokens":800,"chunk_overlap_tokens":-1}}}`, "chunk_overlap_tokens must be between 0 and 1000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			f := &fakeStores{}
			rec := httptest.NewRecorder()
			storeRouter(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vector-stores", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if body := decode[apiError](t, rec); body.Error.Message != tt.want {
				t.Errorf("body %s: message = %q, want %q", tt.body, body.Error.Message, tt.want)
			}
			if len(f.created) != 0 {
				t.Error("store should not be created")
			}
		})
	}
}

func TestCreateVectorStorePassesFields(t *testing.T) {
	f := &fakeStores{}
	rec := httptest.NewRecorder()
	body := `{"name":"docs","expires_days":7,"chunking_strategy":{"type":"static","static":{"max_chunk_size_tokens":800,"chunk_overlap_tokens":400}}}`
	storeRouter(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vector-stores", strings.NewReader(body)))
	if rec.Code != http.StatusOK || len(f.created) != 1 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := f.created[0]
	if got.Name != "docs" || got.ExpiresAfterDays != 7 || got.Chunking.Static.ChunkOverlapTokens != 400 {
		t.Errorf("created = %+v", got)
	}
}

func TestVectorStoreFileRoutes(t *testing.T) {
	f := &fakeStores{}
	r := storeRouter(f)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vector-stores/vs_1/files", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file_id = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vector-stores/vs_1/files", strings.NewReader(`{"file_id":"file_9"}`)))
	if rec.Code != http.StatusOK || len(f.attached) != 1 || f.attached[0] != "vs_1/file_9" {
		t.Errorf("attach = %d %v", rec.Code, f.attached)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/vector-stores/vs_1/files/file_9", nil))
	if rec.Code != http.StatusOK || len(f.detached) != 1 {
		t.Errorf("detach = %d %v", rec.Code, f.detached)
	}
}

func TestVectorStoreNotFound(t *testing.T) {
	f := &fakeStores{err: fmt.Errorf("retrieve: %w", vectorstore.ErrNotFound)}
	rec := httptest.NewRecorder()
	storeRouter(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vector-stores/vs_gone", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

type fakeUploader struct {
	got document.UploadRequest
	res *document.UploadResult
	err error
}

func (f *fakeUploader) Upload(_ context.Context, req document.UploadRequest) (*document.UploadResult, error) {
	f.got = req
	return f.res, f.err
}

func multipartRequest(t *testing.T, fields map[string]string, filename, mimeType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if filename != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		hdr.Set("Content-Type", mimeType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadPassesFileThrough(t *testing.T) {
	u := &fakeUploader{res: &document.UploadResult{Message: "File uploaded successfully", DocumentID: "d1"}}
	h := NewUploadHandler(u, 0, nil)

	req := multipartRequest(t, map[string]string{"progressId": "p1", "prompt": "tables only"}, "a.csv", "text/csv", []byte("a\n1\n"))
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	f := u.got.File
	if f.Name != "a.csv" || f.MimeType != "text/csv" || string(f.Data) != "a\n1\n" || f.Size != 4 {
		t.Errorf("file = %+v", f)
	}
	if u.got.ProgressID != "p1" || u.got.Prompt != "tables only" {
		t.Errorf("request = %+v", u.got)
	}
}

func TestUploadErrorShapes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		noFile  bool
		want    int
		wantMsg string
	}{
		{"no file", nil, true, http.StatusBadRequest, "No file provided"},
		{"validation", apperr.Validation("File type not allowed", nil), false, http.StatusBadRequest, "File type not allowed"},
		{"pipeline", apperr.ExternalService("OpenAI", errors.New("503")), false, http.StatusInternalServerError, "OpenAI error: 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &fakeUploader{err: tt.err}
			filename := "a.csv"
			if tt.noFile {
				filename = ""
			}
			rec := httptest.NewRecorder()
			NewUploadHandler(u, 0, nil).Upload(rec, multipartRequest(t, nil, filename, "text/csv", []byte("x")))
			if rec.Code != tt.want {
				t.Fatalf("status = %d", rec.Code)
			}
			body := decode[map[string]string](t, rec)
			if body["error"] != tt.wantMsg {
				t.Errorf("error = %q, want %q", body["error"], tt.wantMsg)
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	u := &fakeUploader{}
	h := NewUploadHandler(u, 1024, nil)
	req := multipartRequest(t, nil, "big.txt", "text/plain", bytes.Repeat([]byte("x"), 1024+multipartOverhead+1))
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestProgressStream(t *testing.T) {
	tracker := document.NewTracker(0, nil)
	h := NewProgressHandler(tracker)
	r := chi.NewRouter()
	r.Get("/progress/{id}", h.Stream)

	s := tracker.Start("p1")
	s.Update(document.StepExtracting, "extracting", 30, nil)
	s.Complete("done", nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/p1", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"type":"connected"`) || !strings.Contains(body, `"step":"completed"`) {
		t.Errorf("body = %s", body)
	}
	if strings.Count(body, "data: ") != 2 {
		t.Errorf("expected connected + last event, got %s", body)
	}
}

func TestReadyz(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("down") }),
	})
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

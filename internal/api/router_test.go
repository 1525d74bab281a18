package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nikhilbhutani/docsearch/internal/auth"
	"github.com/nikhilbhutani/docsearch/internal/config"
	"github.com/nikhilbhutani/docsearch/internal/database"
	"github.com/nikhilbhutani/docsearch/internal/document"
)

func newTestRouter(t *testing.T, secret string) http.Handler {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Auth:      config.AuthConfig{JWTSecret: secret},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{Rate: 1000, Burst: 1000},
		Upload:    config.UploadConfig{MaxBytes: 1 << 20},
	}
	svc := document.NewService(document.NewSQLiteRepository(db), nil, nil, nil, nil, document.ServiceConfig{}, nil)
	rt := NewRouter(cfg, Deps{Documents: svc})
	t.Cleanup(rt.Close)
	return rt.Setup()
}

func get(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutesMountedAtRootAndAPIPrefix(t *testing.T) {
	h := newTestRouter(t, "")

	for _, path := range []string{"/documents", "/api/documents", "/healthz"} {
		if rec := get(h, path, ""); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d: %s", path, rec.Code, rec.Body)
		}
	}
	if rec := get(h, "/api/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /api/nope = %d", rec.Code)
	}
}

func TestAuthGuardsDocumentRoutes(t *testing.T) {
	const secret = "test-secret"
	h := newTestRouter(t, secret)

	if rec := get(h, "/api/documents", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token = %d", rec.Code)
	}

	token, err := auth.NewJWTMiddleware(secret).Sign(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "tester",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec := get(h, "/api/documents", token); rec.Code != http.StatusOK {
		t.Errorf("with token = %d: %s", rec.Code, rec.Body)
	}
	if rec := get(h, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz should stay public, got %d", rec.Code)
	}
}

// Command docctl runs maintenance tasks against the document store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/docsearch/internal/app"
	"github.com/nikhilbhutani/docsearch/internal/auth"
	"github.com/nikhilbhutani/docsearch/internal/config"
	"github.com/nikhilbhutani/docsearch/internal/vectorstore"
)

const usage = `usage: docctl <command> [flags]

commands:
  setup-vector-store   create a vector store and print its id
  cleanup              delete every document record and its artifacts
  token                issue an API bearer token
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "setup-vector-store":
		err = setupVectorStore(ctx, cfg, logger, args)
	case "cleanup":
		err = cleanupDocuments(ctx, cfg, logger, args)
	case "token":
		err = issueToken(cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func setupVectorStore(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("setup-vector-store", flag.ExitOnError)
	name := fs.String("name", "default-document-store", "vector store name")
	maxChunk := fs.Int("max-chunk", 800, "max chunk size in tokens")
	overlap := fs.Int("overlap", 400, "chunk overlap in tokens")
	expires := fs.Int("expires-days", cfg.VectorStore.ExpiresDays, "days of inactivity before the store expires")
	fs.Parse(args)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	chunking := &vectorstore.ChunkingStrategy{
		Type:   "static",
		Static: &vectorstore.StaticChunking{MaxChunkSizeTokens: *maxChunk, ChunkOverlapTokens: *overlap},
	}
	vs, err := a.Stores.CreateStore(ctx, vectorstore.CreateStoreRequest{
		Name:             *name,
		ExpiresAfterDays: *expires,
		Metadata:         map[string]any{"purpose": "default-document-storage"},
		Chunking:         chunking,
	})
	if err != nil {
		return err
	}

	fmt.Printf("created vector store %s (%s)\n", vs.ID, vs.Name)
	fmt.Printf("add to your environment:\nDEFAULT_VECTOR_STORE_ID=%s\n", vs.ID)
	return nil
}

func cleanupDocuments(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	yes := fs.Bool("yes", false, "confirm deletion of all documents")
	fs.Parse(args)

	if !*yes {
		return fmt.Errorf("refusing to delete all documents without -yes")
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Documents.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("deleted %d documents before failing: %w", n, err)
	}
	fmt.Printf("deleted %d documents\n", n)
	return nil
}

func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sub := fs.String("sub", "docctl", "token subject")
	role := fs.String("role", "", "role claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	fs.Parse(args)

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is not set")
	}

	now := time.Now()
	token, err := auth.NewJWTMiddleware(cfg.Auth.JWTSecret).Sign(auth.Claims{
		Role: *role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

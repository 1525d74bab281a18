package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	LLM         LLMConfig
	VectorStore VectorStoreConfig
	Search      SearchConfig
	Upload      UploadConfig
	PDF         PDFConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
	SQLitePath     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	OllamaURL        string
	VisionProvider   string
	VisionModel      string
	FallbackProvider string
	FallbackModel    string
	MaxRetries       int
	MaxTokens        int
}

type VectorStoreConfig struct {
	DefaultID   string
	StoreName   string
	ExpiresDays int
}

type SearchConfig struct {
	Model        string
	PollInterval time.Duration
	CacheTTL     time.Duration
	LiveTimeout  time.Duration
}

type UploadConfig struct {
	MaxBytes        int64
	PageConcurrency int
	ProcessTimeout  time.Duration
}

type PDFConfig struct {
	Renderer string
	ScaleTo  int
	MaxPages int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Rate  float64
	Burst int
}

// Load reads configuration from the environment. When CONFIG_FILE names a
// YAML file of KEY: value pairs, those values are used for any key the
// environment leaves unset.
func Load() (*Config, error) {
	file, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	l := loader{file: file}

	port, err := l.getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := l.getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := l.getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := l.getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := l.getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	maxTokens, err := l.getEnvInt("VISION_MAX_TOKENS", 4000)
	if err != nil {
		return nil, fmt.Errorf("invalid VISION_MAX_TOKENS: %w", err)
	}

	expiresDays, err := l.getEnvInt("VECTOR_STORE_EXPIRES_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid VECTOR_STORE_EXPIRES_DAYS: %w", err)
	}

	pollInterval, err := l.getEnvDuration("SEARCH_POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_POLL_INTERVAL: %w", err)
	}

	cacheTTL, err := l.getEnvDuration("SEARCH_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_CACHE_TTL: %w", err)
	}

	liveTimeout, err := l.getEnvDuration("SEARCH_LIVE_TIMEOUT", 3*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_LIVE_TIMEOUT: %w", err)
	}

	maxBytes, err := l.getEnvInt("UPLOAD_MAX_BYTES", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES: %w", err)
	}

	pageConcurrency, err := l.getEnvInt("VISION_PAGE_CONCURRENCY", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid VISION_PAGE_CONCURRENCY: %w", err)
	}

	processTimeout, err := l.getEnvDuration("UPLOAD_PROCESS_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_PROCESS_TIMEOUT: %w", err)
	}

	scaleTo, err := l.getEnvInt("PDF_SCALE_TO", 1024)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF_SCALE_TO: %w", err)
	}

	maxPages, err := l.getEnvInt("PDF_MAX_PAGES", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF_MAX_PAGES: %w", err)
	}

	rate, err := l.getEnvFloat("RATE_LIMIT_RPS", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := l.getEnvInt("RATE_LIMIT_BURST", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: l.getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Log: LogConfig{
			Level: l.getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:            l.getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: l.getEnv("MIGRATIONS_PATH", "migrations"),
			SQLitePath:     l.getEnv("SQLITE_PATH", "data/docsearch.db"),
		},
		Redis: RedisConfig{
			Addr:     l.getEnv("REDIS_ADDR", "localhost:6379"),
			Password: l.getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: l.getEnv("AUTH_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        l.getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    l.getEnv("OPENAI_BASE_URL", ""),
			AnthropicKey:     l.getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        l.getEnv("OLLAMA_URL", "http://localhost:11434"),
			VisionProvider:   l.getEnv("VISION_PROVIDER", "openai"),
			VisionModel:      l.getEnv("VISION_MODEL", "gpt-4o"),
			FallbackProvider: l.getEnv("LLM_FALLBACK_PROVIDER", ""),
			FallbackModel:    l.getEnv("LLM_FALLBACK_MODEL", ""),
			MaxRetries:       maxRetries,
			MaxTokens:        maxTokens,
		},
		VectorStore: VectorStoreConfig{
			DefaultID:   l.getEnv("DEFAULT_VECTOR_STORE_ID", ""),
			StoreName:   l.getEnv("VECTOR_STORE_NAME", "document-store"),
			ExpiresDays: expiresDays,
		},
		Search: SearchConfig{
			Model:        l.getEnv("SEARCH_MODEL", "gpt-4o"),
			PollInterval: pollInterval,
			CacheTTL:     cacheTTL,
			LiveTimeout:  liveTimeout,
		},
		Upload: UploadConfig{
			MaxBytes:        int64(maxBytes),
			PageConcurrency: pageConcurrency,
			ProcessTimeout:  processTimeout,
		},
		PDF: PDFConfig{
			Renderer: l.getEnv("PDF_RENDERER", "pdftocairo"),
			ScaleTo:  scaleTo,
			MaxPages: maxPages,
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(l.getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		RateLimit: RateLimitConfig{
			Rate:  rate,
			Burst: burst,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.LLM.OpenAIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.LLM.VisionProvider == "anthropic" && c.LLM.AnthropicKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	switch c.LLM.VisionProvider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unsupported VISION_PROVIDER %q", c.LLM.VisionProvider)
	}
	if c.Upload.PageConcurrency < 1 {
		return fmt.Errorf("VISION_PAGE_CONCURRENCY must be at least 1")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type loader struct {
	file map[string]string
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return values, nil
}

func (l loader) getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := l.file[key]; v != "" {
		return v
	}
	return fallback
}

func (l loader) getEnvInt(key string, fallback int) (int, error) {
	v := l.getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func (l loader) getEnvFloat(key string, fallback float64) (float64, error) {
	v := l.getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func (l loader) getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := l.getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

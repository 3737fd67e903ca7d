package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Embedding strategy and vector backend selectors. Both are resolved once at
// startup; the ingestion and query paths always share the same embedder.
const (
	StrategyOpenAI = "openai"
	StrategyHash   = "hash"

	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	// Chunking
	ChunkMaxTokens     int
	ChunkOverlapTokens int
	ChunkCharSize      int
	ChunkCharOverlap   int

	// Embedding
	EmbeddingStrategy string
	EmbeddingModel    string
	EmbeddingDims     int
	EmbedConcurrency  int
	EmbedMaxRetries   int
	EmbedTimeout      time.Duration
	OpenAIAPIKey      string

	// Vector index
	VectorBackend    string
	QdrantURL        string
	QdrantCollection string

	// Retrieval / answering
	TopK             int
	MaxContextTokens int
	GenerationOn     bool
	GenerationModel  string

	// Ingestion
	IngestParallelism int

	// Storage / server / logging
	DBPath    string
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables, applying defaults and
// validating the relationships the pipeline depends on. A .env file in the
// working directory is loaded first; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		EmbeddingStrategy: getEnv("EMBEDDING_STRATEGY", StrategyOpenAI),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		VectorBackend:     getEnv("VECTOR_BACKEND", BackendSQLite),
		QdrantURL:         getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:  getEnv("QDRANT_COLLECTION", "deckbrain"),
		GenerationModel:   getEnv("GENERATION_MODEL", "gpt-4o-mini"),
		DBPath:            getEnv("DB_PATH", "./data/deckbrain.db"),
		APIPort:           getEnv("API_PORT", "9000"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.ChunkMaxTokens, err = getEnvInt("CHUNK_MAX_TOKENS", 700); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlapTokens, err = getEnvInt("CHUNK_OVERLAP_TOKENS", 100); err != nil {
		return nil, err
	}
	if cfg.ChunkCharSize, err = getEnvInt("CHUNK_CHAR_SIZE", 1200); err != nil {
		return nil, err
	}
	if cfg.ChunkCharOverlap, err = getEnvInt("CHUNK_CHAR_OVERLAP", 150); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDims, err = getEnvInt("EMBEDDING_DIMS", 1536); err != nil {
		return nil, err
	}
	if cfg.EmbedConcurrency, err = getEnvInt("EMBED_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.EmbedMaxRetries, err = getEnvInt("EMBED_MAX_RETRIES", 4); err != nil {
		return nil, err
	}
	if cfg.TopK, err = getEnvInt("RAG_TOP_K", 5); err != nil {
		return nil, err
	}
	if cfg.MaxContextTokens, err = getEnvInt("RAG_MAX_CONTEXT_TOKENS", 1600); err != nil {
		return nil, err
	}
	if cfg.IngestParallelism, err = getEnvInt("INGEST_PARALLELISM", 2); err != nil {
		return nil, err
	}

	embedTimeoutSecs, err := getEnvInt("EMBED_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.EmbedTimeout = time.Duration(embedTimeoutSecs) * time.Second

	cfg.GenerationOn = getEnvBool("GENERATION_ENABLED", true)

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Create the data directory up front so sqlite can open its file.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// validate checks the invariants that must hold before any component is
// constructed. Violations are fatal at startup and never recovered.
func (c *Config) validate() error {
	if c.ChunkMaxTokens <= 0 {
		return fmt.Errorf("CHUNK_MAX_TOKENS must be greater than 0")
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.ChunkMaxTokens {
		return fmt.Errorf("CHUNK_OVERLAP_TOKENS (%d) must be non-negative and smaller than CHUNK_MAX_TOKENS (%d)",
			c.ChunkOverlapTokens, c.ChunkMaxTokens)
	}
	if c.ChunkCharSize <= 0 {
		return fmt.Errorf("CHUNK_CHAR_SIZE must be greater than 0")
	}
	if c.ChunkCharOverlap < 0 || c.ChunkCharOverlap >= c.ChunkCharSize {
		return fmt.Errorf("CHUNK_CHAR_OVERLAP (%d) must be non-negative and smaller than CHUNK_CHAR_SIZE (%d)",
			c.ChunkCharOverlap, c.ChunkCharSize)
	}
	switch c.EmbeddingStrategy {
	case StrategyOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_STRATEGY is %q", StrategyOpenAI)
		}
	case StrategyHash:
	default:
		return fmt.Errorf("EMBEDDING_STRATEGY must be %q or %q, got %q", StrategyOpenAI, StrategyHash, c.EmbeddingStrategy)
	}
	if c.EmbeddingDims <= 0 {
		return fmt.Errorf("EMBEDDING_DIMS must be greater than 0")
	}
	if c.EmbedConcurrency <= 0 {
		return fmt.Errorf("EMBED_CONCURRENCY must be greater than 0")
	}
	if c.EmbedMaxRetries < 0 {
		return fmt.Errorf("EMBED_MAX_RETRIES must not be negative")
	}
	switch c.VectorBackend {
	case BackendSQLite, BackendQdrant:
	default:
		return fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", BackendSQLite, BackendQdrant, c.VectorBackend)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("RAG_TOP_K must be greater than 0")
	}
	if c.MaxContextTokens <= 0 {
		return fmt.Errorf("RAG_MAX_CONTEXT_TOKENS must be greater than 0")
	}
	if c.GenerationOn && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when GENERATION_ENABLED is true")
	}
	if c.IngestParallelism <= 0 {
		return fmt.Errorf("INGEST_PARALLELISM must be greater than 0")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

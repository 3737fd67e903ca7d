package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"deckbrain/internal/chunker"
	"deckbrain/internal/config"
	"deckbrain/internal/embed"
	"deckbrain/internal/httpapi"
	"deckbrain/internal/ingest"
	"deckbrain/internal/llm"
	"deckbrain/internal/rag"
	"deckbrain/internal/storage"
	"deckbrain/internal/vectorindex"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	deckRepo := storage.NewDeckRepo(db)
	sourceRepo := storage.NewSourceRepo(db)

	ctx := context.Background()

	// Existing decks must have been built with the configured embedding
	// strategy; mixing strategies across ingestion and query corrupts
	// retrieval silently, so it is rejected here instead.
	if err := validateDeckStrategies(ctx, deckRepo, cfg.EmbeddingStrategy); err != nil {
		log.Fatalf("Embedding strategy mismatch: %v", err)
	}

	// Initialize the vector index backend
	var index vectorindex.Index
	switch cfg.VectorBackend {
	case config.BackendQdrant:
		qdrantIndex, err := vectorindex.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDims)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		if err := qdrantIndex.EnsureCollection(ctx); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "dims", cfg.EmbeddingDims)
		index = qdrantIndex
	default:
		index = vectorindex.NewSQLiteIndex(db)
		slog.Info("Using sqlite vector index", "path", cfg.DBPath)
	}

	embedder, err := embed.New(embed.Config{
		Strategy:    cfg.EmbeddingStrategy,
		Model:       cfg.EmbeddingModel,
		Dims:        cfg.EmbeddingDims,
		APIKey:      cfg.OpenAIAPIKey,
		MaxRetries:  cfg.EmbedMaxRetries,
		Timeout:     cfg.EmbedTimeout,
		Concurrency: cfg.EmbedConcurrency,
	})
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	slog.Info("Embedder initialized", "strategy", embedder.Strategy(), "dims", embedder.Dims())

	// Token chunking needs the tokenizer; fall back to character windows
	// when the encoding cannot be loaded.
	var tokenizer chunker.Tokenizer
	if tk, err := chunker.NewTiktokenTokenizer(); err != nil {
		slog.Warn("Tokenizer unavailable, falling back to character chunking", "error", err)
	} else {
		tokenizer = tk
	}

	chk, err := chunker.New(chunker.Config{
		MaxTokens:     cfg.ChunkMaxTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
		CharSize:      cfg.ChunkCharSize,
		CharOverlap:   cfg.ChunkCharOverlap,
	}, tokenizer)
	if err != nil {
		log.Fatalf("Failed to create chunker: %v", err)
	}

	pipeline := ingest.NewPipeline(sourceRepo, embedder, index, chk, cfg.IngestParallelism)

	// Generation is optional; without it the engine answers extractively.
	var generator rag.Generator
	if cfg.GenerationOn {
		llmClient, err := llm.NewClient(cfg.OpenAIAPIKey, cfg.GenerationModel)
		if err != nil {
			log.Fatalf("Failed to create generation client: %v", err)
		}
		generator = llmClient
		slog.Info("Generation enabled", "model", cfg.GenerationModel)
	} else {
		slog.Info("Generation disabled, answering extractively")
	}

	retriever := rag.NewRetriever(embedder, index)
	packer := rag.NewPacker(tokenizer, cfg.MaxContextTokens)
	answerer := rag.NewAnswerer(generator)
	ragEngine := rag.NewEngine(retriever, packer, answerer, cfg.TopK)
	slog.Info("RAG engine initialized", "top_k", cfg.TopK, "max_context_tokens", cfg.MaxContextTokens)

	deps := &httpapi.Deps{
		DB:                db,
		Decks:             deckRepo,
		Sources:           sourceRepo,
		Pipeline:          pipeline,
		RAGEngine:         ragEngine,
		Index:             index,
		EmbeddingStrategy: cfg.EmbeddingStrategy,
		VectorBackend:     cfg.VectorBackend,
	}
	router := httpapi.NewRouter(deps)

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}

// validateDeckStrategies fails when any stored deck was built with a
// different embedding strategy than the one configured now.
func validateDeckStrategies(ctx context.Context, decks storage.DeckStore, strategy string) error {
	all, err := decks.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list decks: %w", err)
	}
	for _, deck := range all {
		if deck.EmbeddingStrategy != strategy {
			return fmt.Errorf("deck %s (%s) was built with strategy %q, configured strategy is %q",
				deck.ID, deck.Name, deck.EmbeddingStrategy, strategy)
		}
	}
	return nil
}

package embed

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks deckbrain/internal/embed Embedder

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned when the embedding backend cannot produce a
// vector after exhausting retries. Ingestion skips the affected block and
// continues; the query path degrades to extractive answering.
var ErrUnavailable = errors.New("embedding unavailable")

// Embedder maps text to fixed-length vectors. Implementations are selected
// once at startup; ingestion and query must use the same strategy.
type Embedder interface {
	// Embed returns a vector of exactly Dims() entries.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts in order. The result has one vector per input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dims is the vector dimensionality shared by every record in the index.
	Dims() int
	// Strategy names the implementation ("openai", "hash").
	Strategy() string
}

// Config selects and parameterizes an embedding strategy.
type Config struct {
	Strategy    string
	Model       string
	Dims        int
	APIKey      string
	MaxRetries  int
	Timeout     time.Duration
	Concurrency int
}

// New constructs the configured embedding strategy.
func New(cfg Config) (Embedder, error) {
	switch cfg.Strategy {
	case "openai":
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Dims:        cfg.Dims,
			MaxRetries:  cfg.MaxRetries,
			Timeout:     cfg.Timeout,
			Concurrency: cfg.Concurrency,
		})
	case "hash":
		return NewHashEmbedder(cfg.Dims)
	default:
		return nil, fmt.Errorf("unknown embedding strategy: %s", cfg.Strategy)
	}
}

package embed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"deckbrain/internal/contextutil"
)

// maxBatchSize bounds the number of inputs sent in a single embeddings
// request; larger batches are split.
const maxBatchSize = 128

// OpenAIConfig parameterizes the hosted embedding strategy.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Dims        int
	MaxRetries  int
	Timeout     time.Duration
	Concurrency int
}

// OpenAIEmbedder calls the OpenAI embeddings API. Transient failures
// (rate-limit, timeout, 5xx) are retried with exponential backoff up to
// MaxRetries; after that the call fails with ErrUnavailable. A semaphore
// bounds concurrent in-flight requests across all callers.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dims       int
	maxRetries int
	timeout    time.Duration
	sem        chan struct{}
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: api key is required")
	}
	if cfg.Dims <= 0 {
		return nil, fmt.Errorf("openai embedder: dims must be greater than 0, got %d", cfg.Dims)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	// The SDK's own retry loop is disabled; retry classification and backoff
	// live here so the failure policy is in one place.
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	)
	return &OpenAIEmbedder{
		client:     client,
		model:      cfg.Model,
		dims:       cfg.Dims,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		sem:        make(chan struct{}, cfg.Concurrency),
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }

func (e *OpenAIEmbedder) Strategy() string { return "openai" }

func (e *OpenAIEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "retrying embedding request",
				"attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		vectors, err := e.embedOnce(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (e *OpenAIEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	// Admission control: bound in-flight requests to the remote service.
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Embeddings.New(reqCtx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(e.model),
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions: openai.Int(int64(e.dims)),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		if len(vec) != e.dims {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dims, len(vec))
		}
		vectors[item.Index] = vec
	}
	return vectors, nil
}

// isRetryable reports whether an embedding request error is worth retrying:
// rate limits, request timeouts, server errors, and transport failures.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return true
		case apiErr.StatusCode == 408:
			return true
		case apiErr.StatusCode >= 500:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// Connection-level failures arrive as plain url.Error wraps.
	return errors.Is(err, net.ErrClosed) || isConnError(err)
}

func isConnError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// backoffDelay computes the exponential backoff with jitter for the given
// attempt (1-based), capped at 8 seconds.
func backoffDelay(attempt int) time.Duration {
	base := 500 * time.Millisecond
	// The cap is hit at attempt 5; larger shifts would overflow.
	if attempt > 5 {
		attempt = 5
	}
	delay := base << (attempt - 1)
	if delay > 8*time.Second {
		delay = 8 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 4))
	return delay + jitter
}

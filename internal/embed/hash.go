package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is the local deterministic fallback strategy. It hashes word
// unigrams and bigram shingles into a fixed number of buckets and
// L2-normalizes the result. Identical text always yields bit-identical
// vectors, and texts sharing vocabulary land in overlapping buckets, which
// gives the approximate locality the retriever needs. No network access.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) (*HashEmbedder, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("hash embedder: dims must be greater than 0, got %d", dims)
	}
	return &HashEmbedder{dims: dims}, nil
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dims)
	tokens := strings.Fields(strings.ToLower(text))
	for i, tok := range tokens {
		vec[e.bucket(tok)] += 1.0
		// Bigram shingles carry word order at half weight.
		if i+1 < len(tokens) {
			vec[e.bucket(tok+" "+tokens[i+1])] += 0.5
		}
	}
	normalize(vec)
	return vec, nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *HashEmbedder) Dims() int { return e.dims }

func (e *HashEmbedder) Strategy() string { return "hash" }

func (e *HashEmbedder) bucket(token string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum64() % uint64(e.dims))
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

package vectorindex

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks deckbrain/internal/vectorindex Index

import (
	"context"
	"errors"
	"math"
)

// ErrUnavailable is returned when the backing store cannot serve a request.
// Callers must not swallow it: silent data loss in the index is unacceptable.
var ErrUnavailable = errors.New("vector index unavailable")

// Payload is the metadata stored alongside each vector.
type Payload struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
}

// Record is one embedded content block. Exactly one Record exists per block;
// upserts keyed by ID replace both vector and payload.
type Record struct {
	ID      string    `json:"id"`
	DeckID  string    `json:"deck_id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Scored pairs a record with its similarity to a query vector.
type Scored struct {
	Record Record
	Score  float32
}

// Index persists vectors with metadata and answers nearest-neighbor queries.
type Index interface {
	// Upsert writes records keyed by id (last-writer-wins) and returns the
	// number written.
	Upsert(ctx context.Context, records []Record) (int, error)
	// Search returns up to k records by descending cosine similarity. A
	// non-empty deckID restricts the search to that deck before the top-k
	// cutoff is applied. Ties are broken by insertion order, earlier first.
	Search(ctx context.Context, vector []float32, k int, deckID string) ([]Scored, error)
	// Export scans records in insertion order without loading the whole
	// index. A non-empty deckID restricts the scan.
	Export(ctx context.Context, deckID string) (*Cursor, error)
	// Delete removes records by id. Missing ids are not an error.
	Delete(ctx context.Context, ids []string) error
}

// Cursor yields export batches. Next returns a nil batch once the scan is
// exhausted. Cursors are single-use; call Export again to restart.
type Cursor struct {
	next func(ctx context.Context) ([]Record, error)
}

func (c *Cursor) Next(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.next(ctx)
}

// CosineSimilarity computes the cosine of the angle between two vectors,
// accumulating in float64 for stability. Mismatched lengths score zero.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

package rag

import (
	"context"
	"fmt"

	"deckbrain/internal/contextutil"
	"deckbrain/internal/embed"
	"deckbrain/internal/vectorindex"
)

// Retriever embeds a query and searches the vector index.
type Retriever struct {
	embedder embed.Embedder
	index    vectorindex.Index
}

// NewRetriever creates a new Retriever. The embedder must be the same
// strategy used at ingestion; mixed strategies are rejected at startup.
func NewRetriever(embedder embed.Embedder, index vectorindex.Index) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns up to k chunks for the query, ordered by descending
// score. An empty deck yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, k int, deckID string) ([]RetrievedChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	vector, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.index.Search(ctx, vector, k, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	chunks := make([]RetrievedChunk, 0, len(results))
	for _, result := range results {
		chunks = append(chunks, RetrievedChunk{
			Text:     result.Record.Payload.Text,
			Score:    result.Score,
			SourceID: result.Record.Payload.SourceID,
			Position: result.Record.Payload.Position,
		})
	}

	logger.DebugContext(ctx, "retrieved chunks", "deck_id", deckID, "k", k, "results", len(chunks))
	return chunks, nil
}

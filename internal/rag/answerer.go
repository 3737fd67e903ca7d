package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks deckbrain/internal/rag Generator

import (
	"context"

	"deckbrain/internal/contextutil"
)

// Generator synthesizes an answer from a question and packed context,
// citing chunks by their citation indices.
type Generator interface {
	Generate(ctx context.Context, question string, packed PackedContext) (string, error)
}

// Answerer turns a packed context into an answer. Generation is best-effort:
// any generator failure degrades to the extractive fallback instead of
// surfacing an error.
type Answerer struct {
	generator Generator // nil when generation is disabled
}

// NewAnswerer creates an Answerer. Pass a nil generator to always answer
// extractively.
func NewAnswerer(generator Generator) *Answerer {
	return &Answerer{generator: generator}
}

// Answer produces the response for a packed context. Only a context with no
// chunks at all produces an abstention.
func (a *Answerer) Answer(ctx context.Context, question string, packed PackedContext, sourcesOnly bool) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(packed.Chunks) == 0 {
		return AskResponse{
			Answer:    "No relevant material found in this deck.",
			Sources:   []Source{},
			Abstained: true,
		}, nil
	}

	sources := make([]Source, 0, len(packed.Chunks))
	for _, chunk := range packed.Chunks {
		sources = append(sources, Source{
			CitationIndex: chunk.CitationIndex,
			SourceID:      chunk.SourceID,
			Position:      chunk.Position,
			Score:         chunk.Score,
			Text:          chunk.Text,
		})
	}

	if sourcesOnly {
		return AskResponse{Sources: sources}, nil
	}

	if a.generator != nil {
		answer, err := a.generator.Generate(ctx, question, packed)
		if err == nil {
			return AskResponse{Answer: answer, Sources: sources}, nil
		}
		// Cancellation is the caller's doing, not a generation failure.
		if ctx.Err() != nil {
			return AskResponse{}, ctx.Err()
		}
		logger.WarnContext(ctx, "generation failed, falling back to extractive answer", "error", err)
	}

	// Extractive fallback: the highest-scoring packed chunk verbatim. Its
	// text is already bounded by the packing budget.
	return AskResponse{Answer: packed.Chunks[0].Text, Sources: sources}, nil
}

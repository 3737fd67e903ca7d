package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks deckbrain/internal/rag Engine

import (
	"context"
	"fmt"

	"deckbrain/internal/contextutil"
)

// Engine answers questions against a deck by retrieval-augmented generation.
type Engine interface {
	// Ask retrieves relevant chunks for the question and produces an answer.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	retriever *Retriever
	packer    *Packer
	answerer  *Answerer
	defaultK  int
}

// maxK caps the per-request chunk count override.
const maxK = 20

// NewEngine creates a new RAG engine.
func NewEngine(retriever *Retriever, packer *Packer, answerer *Answerer, defaultK int) Engine {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &ragEngine{
		retriever: retriever,
		packer:    packer,
		answerer:  answerer,
		defaultK:  defaultK,
	}
}

// Ask runs the query path: retrieve, pack, answer.
func (e *ragEngine) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.Question == "" {
		return AskResponse{}, fmt.Errorf("question is required")
	}

	k := req.K
	if k <= 0 {
		k = e.defaultK
	}
	if k > maxK {
		k = maxK
	}

	logger.InfoContext(ctx, "query started", "deck_id", req.DeckID, "k", k, "sources_only", req.SourcesOnly)

	chunks, err := e.retriever.Retrieve(ctx, req.Question, k, req.DeckID)
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed", "error", err)
		return AskResponse{}, err
	}

	packed := e.packer.Pack(chunks)
	logger.DebugContext(ctx, "context packed",
		"retrieved", len(chunks), "packed", len(packed.Chunks),
		"token_count", packed.TokenCount, "truncated", packed.Truncated)

	resp, err := e.answerer.Answer(ctx, req.Question, packed, req.SourcesOnly)
	if err != nil {
		return AskResponse{}, err
	}

	logger.InfoContext(ctx, "query completed",
		"deck_id", req.DeckID, "sources", len(resp.Sources), "abstained", resp.Abstained)
	return resp, nil
}

package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"deckbrain/internal/chunker"
	"deckbrain/internal/contextutil"
	"deckbrain/internal/embed"
	"deckbrain/internal/extract"
	"deckbrain/internal/storage"
	"deckbrain/internal/vectorindex"
)

// Source is one document submitted for ingestion. Text is the raw payload in
// the declared format; Format selects the extractor ("text" when empty).
type Source struct {
	ID     string
	DeckID string
	Title  string
	Format string
	Text   string
}

// Summary reports what one source's ingestion did. Error is set when the
// source failed outright; the rest of the batch still proceeds.
type Summary struct {
	SourceID string `json:"source_id"`
	Blocks   int    `json:"blocks"`
	Embedded int    `json:"embedded"`
	Failed   int    `json:"failed"`
	Skipped  bool   `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

// Pipeline orchestrates extraction, chunking, embedding, and indexing.
type Pipeline struct {
	sources     storage.SourceStore
	embedder    embed.Embedder
	index       vectorindex.Index
	chunker     *chunker.Chunker
	parallelism int
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	sources storage.SourceStore,
	embedder embed.Embedder,
	index vectorindex.Index,
	ch *chunker.Chunker,
	parallelism int,
) *Pipeline {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Pipeline{
		sources:     sources,
		embedder:    embedder,
		index:       index,
		chunker:     ch,
		parallelism: parallelism,
	}
}

// IngestSource ingests a single source document. Re-submitting unchanged
// content is a no-op; changed content replaces every block the source
// produced before, including trailing positions the new text no longer
// reaches. Blocks whose embedding cannot be produced are skipped and
// counted, never indexed; re-submitting the same text then re-embeds the
// whole source rather than skipping it.
func (p *Pipeline) IngestSource(ctx context.Context, src Source) (Summary, error) {
	logger := contextutil.LoggerFromContext(ctx)
	summary := Summary{SourceID: src.ID}

	if src.ID == "" || src.DeckID == "" {
		return summary, fmt.Errorf("source id and deck id are required")
	}

	extractor, err := extract.ForFormat(src.Format)
	if err != nil {
		return summary, err
	}
	text, err := extractor.Extract([]byte(src.Text))
	if err != nil {
		return summary, fmt.Errorf("failed to extract text: %w", err)
	}

	hash := sha256.Sum256([]byte(text))
	hashHex := fmt.Sprintf("%x", hash)

	existing, err := p.sources.GetByDeckAndID(ctx, src.DeckID, src.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return summary, fmt.Errorf("failed to check existing source: %w", err)
	}

	// Skip re-ingestion if hash matches
	if existing != nil && existing.ContentHash == hashHex {
		logger.DebugContext(ctx, "skipping unchanged source", "source_id", src.ID, "hash", hashHex)
		summary.Skipped = true
		summary.Blocks = existing.BlockCount
		return summary, nil
	}

	blocks := p.chunker.Chunk(text, src.ID, src.DeckID)
	summary.Blocks = len(blocks)

	// Block IDs are deterministic, so stale positions beyond the new block
	// count are the only records the upsert below won't overwrite.
	if existing != nil && existing.BlockCount > len(blocks) {
		staleIDs := make([]string, 0, existing.BlockCount-len(blocks))
		for pos := len(blocks); pos < existing.BlockCount; pos++ {
			staleIDs = append(staleIDs, chunker.BlockID(src.DeckID, src.ID, pos))
		}
		if err := p.index.Delete(ctx, staleIDs); err != nil {
			return summary, fmt.Errorf("failed to delete stale blocks: %w", err)
		}
	}

	if len(blocks) > 0 {
		records, embedded, failed, err := p.embedBlocks(ctx, blocks)
		if err != nil {
			return summary, err
		}
		summary.Embedded = embedded
		summary.Failed = failed

		if len(records) > 0 {
			if _, err := p.index.Upsert(ctx, records); err != nil {
				return summary, fmt.Errorf("failed to upsert vectors: %w", err)
			}
		}
	}

	record := &storage.Source{
		ID:          src.ID,
		DeckID:      src.DeckID,
		Title:       src.Title,
		ContentHash: hashHex,
		BlockCount:  len(blocks),
	}
	// A source with unembedded blocks must not match the hash-skip above,
	// or a retry after the embedder recovers would never index them.
	if summary.Failed > 0 {
		record.ContentHash = ""
	}
	if err := p.sources.Upsert(ctx, record); err != nil {
		return summary, fmt.Errorf("failed to upsert source: %w", err)
	}

	logger.InfoContext(ctx, "ingested source",
		"source_id", src.ID, "deck_id", src.DeckID,
		"blocks", summary.Blocks, "embedded", summary.Embedded, "failed", summary.Failed)
	return summary, nil
}

// embedBlocks embeds blocks and builds index records. A batch failure falls
// back to per-block embedding so one poisoned block doesn't sink the source.
func (p *Pipeline) embedBlocks(ctx context.Context, blocks []chunker.ContentBlock) ([]vectorindex.Record, int, int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	texts := make([]string, len(blocks))
	for i, block := range blocks {
		texts[i] = block.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if !errors.Is(err, embed.ErrUnavailable) {
			return nil, 0, 0, fmt.Errorf("failed to embed blocks: %w", err)
		}
		logger.WarnContext(ctx, "batch embedding failed, retrying per block", "error", err)
		vectors = make([][]float32, len(blocks))
		for i, text := range texts {
			vec, err := p.embedder.Embed(ctx, text)
			if err != nil {
				if !errors.Is(err, embed.ErrUnavailable) {
					return nil, 0, 0, fmt.Errorf("failed to embed block %d: %w", i, err)
				}
				logger.WarnContext(ctx, "skipping block, embedding unavailable", "position", blocks[i].Position, "error", err)
				continue
			}
			vectors[i] = vec
		}
	}

	if len(vectors) != len(blocks) {
		return nil, 0, 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(blocks), len(vectors))
	}

	records := make([]vectorindex.Record, 0, len(blocks))
	var embedded, failed int
	for i, block := range blocks {
		if vectors[i] == nil {
			failed++
			continue
		}
		embedded++
		records = append(records, vectorindex.Record{
			ID:     block.ID,
			DeckID: block.DeckID,
			Vector: vectors[i],
			Payload: vectorindex.Payload{
				Text:     block.Text,
				SourceID: block.SourceID,
				Position: block.Position,
			},
		})
	}
	return records, embedded, failed, nil
}

// IngestAll ingests a batch of sources with bounded parallelism. Individual
// source failures are logged and reported in the summaries; the batch keeps
// going unless the context is cancelled.
func (p *Pipeline) IngestAll(ctx context.Context, srcs []Source) ([]Summary, error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "starting ingestion", "total_sources", len(srcs))

	summaries := make([]Summary, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, src := range srcs {
		g.Go(func() error {
			summary, err := p.IngestSource(gctx, src)
			if err != nil {
				summary.Error = err.Error()
				logger.ErrorContext(gctx, "failed to ingest source", "source_id", src.ID, "error", err)
				if gctx.Err() != nil {
					return gctx.Err()
				}
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summaries, err
	}

	var errorCount int
	for _, summary := range summaries {
		if summary.Error != "" {
			errorCount++
		}
	}
	logger.InfoContext(ctx, "ingestion completed", "total_sources", len(srcs), "errors", errorCount)

	if errorCount > 0 {
		return summaries, fmt.Errorf("ingestion completed with %d errors", errorCount)
	}
	return summaries, nil
}

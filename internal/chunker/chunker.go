package chunker

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// blockNamespace is the UUIDv5 namespace for content block ids. Block ids are
// derived from (deck, source, position) so that re-ingesting an unchanged
// source produces the same ids and upserts replace instead of duplicating.
var blockNamespace = uuid.MustParse("e6b1c2a4-3f5d-4b8e-9c7a-2d1f0e9b8a76")

// ContentBlock is a bounded span of source text prepared for embedding.
// Blocks are immutable once created.
type ContentBlock struct {
	ID         string
	SourceID   string
	DeckID     string
	Text       string
	TokenCount int
	Position   int
}

// Config controls window sizes for both chunking strategies. Token windows
// are used when a tokenizer is available, character windows otherwise.
type Config struct {
	MaxTokens     int
	OverlapTokens int
	CharSize      int
	CharOverlap   int
}

// Chunker splits raw text into overlapping windows. It is purely
// deterministic: the same text and config always produce identical block
// boundaries.
type Chunker struct {
	cfg Config
	tok Tokenizer
}

// New validates the window configuration and returns a Chunker. A nil
// tokenizer selects the character-window fallback; that choice is made by
// configuration, not per call.
func New(cfg Config, tok Tokenizer) (*Chunker, error) {
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("chunker: max tokens must be greater than 0")
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.MaxTokens {
		return nil, fmt.Errorf("chunker: overlap tokens (%d) must be smaller than max tokens (%d)", cfg.OverlapTokens, cfg.MaxTokens)
	}
	if cfg.CharSize <= 0 {
		return nil, fmt.Errorf("chunker: char size must be greater than 0")
	}
	if cfg.CharOverlap < 0 || cfg.CharOverlap >= cfg.CharSize {
		return nil, fmt.Errorf("chunker: char overlap (%d) must be smaller than char size (%d)", cfg.CharOverlap, cfg.CharSize)
	}
	return &Chunker{cfg: cfg, tok: tok}, nil
}

// BlockID derives the stable id of the block at the given position.
func BlockID(deckID, sourceID string, position int) string {
	name := deckID + "/" + sourceID + "/" + strconv.Itoa(position)
	return uuid.NewSHA1(blockNamespace, []byte(name)).String()
}

// Chunk splits text into overlapping windows and returns one ContentBlock per
// window, 0-indexed by position. Empty text yields no blocks; text shorter
// than one window yields exactly one.
func (c *Chunker) Chunk(text, sourceID, deckID string) []ContentBlock {
	if text == "" {
		return nil
	}
	if c.tok != nil {
		return c.chunkTokens(text, sourceID, deckID)
	}
	return c.chunkChars(text, sourceID, deckID)
}

func (c *Chunker) chunkTokens(text, sourceID, deckID string) []ContentBlock {
	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}
	step := c.cfg.MaxTokens - c.cfg.OverlapTokens

	var blocks []ContentBlock
	position := 0
	for start := 0; start < len(tokens); start += step {
		end := start + c.cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		blocks = append(blocks, ContentBlock{
			ID:         BlockID(deckID, sourceID, position),
			SourceID:   sourceID,
			DeckID:     deckID,
			Text:       c.tok.Decode(window),
			TokenCount: len(window),
			Position:   position,
		})
		if end == len(tokens) {
			break
		}
		position++
	}
	return blocks
}

func (c *Chunker) chunkChars(text, sourceID, deckID string) []ContentBlock {
	runes := []rune(text)
	step := c.cfg.CharSize - c.cfg.CharOverlap

	var blocks []ContentBlock
	position := 0
	for start := 0; start < len(runes); start += step {
		end := start + c.cfg.CharSize
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])
		blocks = append(blocks, ContentBlock{
			ID:         BlockID(deckID, sourceID, position),
			SourceID:   sourceID,
			DeckID:     deckID,
			Text:       window,
			TokenCount: EstimateTokens(window),
			Position:   position,
		})
		if end == len(runes) {
			break
		}
		position++
	}
	return blocks
}

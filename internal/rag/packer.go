package rag

import (
	"unicode/utf8"

	"deckbrain/internal/chunker"
)

// Packer assembles retrieved chunks into a token-bounded context.
type Packer struct {
	tokenizer        chunker.Tokenizer
	maxContextTokens int
}

// NewPacker creates a Packer. tokenizer may be nil, in which case token
// costs are estimated from character length.
func NewPacker(tokenizer chunker.Tokenizer, maxContextTokens int) *Packer {
	return &Packer{tokenizer: tokenizer, maxContextTokens: maxContextTokens}
}

// Pack greedily accepts chunks in the given (descending-score) order while
// the running token total stays within the budget. Chunks that would
// overflow are skipped, not aborted on, so smaller lower-ranked chunks can
// still fill remaining room. Citation indices are assigned sequentially from
// 1 as chunks are accepted. If nothing fits whole, the first chunk is
// truncated to the budget so the context is never empty when retrieval
// found something.
func (p *Packer) Pack(chunks []RetrievedChunk) PackedContext {
	packed := PackedContext{}
	if len(chunks) == 0 {
		return packed
	}

	total := 0
	for _, chunk := range chunks {
		cost := p.countTokens(chunk.Text)
		if total+cost > p.maxContextTokens {
			continue
		}
		chunk.CitationIndex = len(packed.Chunks) + 1
		packed.Chunks = append(packed.Chunks, chunk)
		total += cost
	}

	if len(packed.Chunks) == 0 {
		chunk := chunks[0]
		chunk.Text = p.truncate(chunk.Text, p.maxContextTokens)
		chunk.CitationIndex = 1
		packed.Chunks = []RetrievedChunk{chunk}
		packed.Truncated = true
		total = p.countTokens(chunk.Text)
	}

	packed.TokenCount = total
	return packed
}

func (p *Packer) countTokens(text string) int {
	if p.tokenizer != nil {
		return p.tokenizer.Count(text)
	}
	return chunker.EstimateTokens(text)
}

// truncate cuts text down to at most budget tokens.
func (p *Packer) truncate(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if p.tokenizer != nil {
		tokens := p.tokenizer.Encode(text)
		if len(tokens) <= budget {
			return text
		}
		return p.tokenizer.Decode(tokens[:budget])
	}
	// Estimation path: the estimate counts bytes, so the cut must too or
	// multibyte text would re-count above the budget. Back up to a rune
	// boundary rather than splitting a character.
	maxBytes := budget * 4
	if len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

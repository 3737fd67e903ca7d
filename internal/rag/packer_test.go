package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"deckbrain/internal/chunker"
)

// fieldTokenizer counts whitespace-separated words as tokens.
type fieldTokenizer struct{}

func (fieldTokenizer) Encode(text string) []int {
	return make([]int, len(strings.Fields(text)))
}

func (fieldTokenizer) Decode(tokens []int) string {
	// Only used via Packer.truncate, which never calls Decode on this fake
	// path in these tests; keep it honest anyway.
	return strings.Repeat("w ", len(tokens))
}

func (fieldTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

// words builds a chunk text of n words.
func words(n int) string {
	fields := make([]string, n)
	for i := range fields {
		fields[i] = "w"
	}
	return strings.Join(fields, " ")
}

func TestPacker_Pack_AllFit(t *testing.T) {
	p := NewPacker(fieldTokenizer{}, 100)

	chunks := []RetrievedChunk{
		{Text: words(10), Score: 0.9, SourceID: "s1", Position: 0},
		{Text: words(10), Score: 0.8, SourceID: "s1", Position: 1},
		{Text: words(10), Score: 0.7, SourceID: "s2", Position: 0},
	}

	packed := p.Pack(chunks)
	if len(packed.Chunks) != 3 {
		t.Fatalf("Pack() accepted %d chunks, want 3", len(packed.Chunks))
	}
	for i, chunk := range packed.Chunks {
		if chunk.CitationIndex != i+1 {
			t.Errorf("chunk %d citation index = %d, want %d", i, chunk.CitationIndex, i+1)
		}
	}
	if packed.TokenCount != 30 {
		t.Errorf("TokenCount = %d, want 30", packed.TokenCount)
	}
	if packed.Truncated {
		t.Error("Truncated set with chunks that fit whole")
	}
}

func TestPacker_Pack_SkipsOverflowingChunks(t *testing.T) {
	p := NewPacker(fieldTokenizer{}, 60)

	chunks := []RetrievedChunk{
		{Text: words(30), Score: 0.9, SourceID: "s1", Position: 0},
		{Text: words(80), Score: 0.8, SourceID: "s1", Position: 1},
		{Text: words(20), Score: 0.7, SourceID: "s2", Position: 0},
	}

	packed := p.Pack(chunks)
	if len(packed.Chunks) != 2 {
		t.Fatalf("Pack() accepted %d chunks, want 2", len(packed.Chunks))
	}
	// The oversized middle chunk is skipped; the smaller lower-ranked one
	// still lands, and citation indices stay sequential.
	if packed.Chunks[0].Position != 0 || packed.Chunks[1].SourceID != "s2" {
		t.Errorf("accepted chunks = %+v, want first and third", packed.Chunks)
	}
	if packed.Chunks[0].CitationIndex != 1 || packed.Chunks[1].CitationIndex != 2 {
		t.Errorf("citation indices = %d, %d, want 1, 2",
			packed.Chunks[0].CitationIndex, packed.Chunks[1].CitationIndex)
	}
	if packed.TokenCount != 50 {
		t.Errorf("TokenCount = %d, want 50", packed.TokenCount)
	}
}

func TestPacker_Pack_TruncatesWhenNothingFits(t *testing.T) {
	p := NewPacker(fieldTokenizer{}, 50)

	chunks := []RetrievedChunk{
		{Text: words(100), Score: 0.9, SourceID: "s1", Position: 0},
		{Text: words(120), Score: 0.8, SourceID: "s1", Position: 1},
	}

	packed := p.Pack(chunks)
	if len(packed.Chunks) != 1 {
		t.Fatalf("Pack() accepted %d chunks, want 1 truncated", len(packed.Chunks))
	}
	if !packed.Truncated {
		t.Error("Truncated not set")
	}
	if packed.Chunks[0].CitationIndex != 1 {
		t.Errorf("citation index = %d, want 1", packed.Chunks[0].CitationIndex)
	}
	if got := (fieldTokenizer{}).Count(packed.Chunks[0].Text); got != 50 {
		t.Errorf("truncated chunk token count = %d, want 50", got)
	}
	if packed.Chunks[0].SourceID != "s1" || packed.Chunks[0].Position != 0 {
		t.Error("truncation did not keep the highest-scoring chunk")
	}
}

func TestPacker_Pack_Empty(t *testing.T) {
	p := NewPacker(fieldTokenizer{}, 100)
	packed := p.Pack(nil)
	if len(packed.Chunks) != 0 || packed.TokenCount != 0 || packed.Truncated {
		t.Errorf("Pack(nil) = %+v, want empty context", packed)
	}
}

func TestPacker_Pack_NilTokenizerEstimates(t *testing.T) {
	// Without a tokenizer, cost is estimated at one token per four
	// characters.
	p := NewPacker(nil, 2)

	chunks := []RetrievedChunk{
		{Text: strings.Repeat("a", 8), Score: 0.9, SourceID: "s1", Position: 0},
		{Text: strings.Repeat("b", 8), Score: 0.8, SourceID: "s1", Position: 1},
	}

	packed := p.Pack(chunks)
	if len(packed.Chunks) != 1 {
		t.Fatalf("Pack() accepted %d chunks, want 1", len(packed.Chunks))
	}
	if packed.TokenCount != 2 {
		t.Errorf("TokenCount = %d, want 2", packed.TokenCount)
	}

	// And the truncation path cuts by the same estimate.
	small := NewPacker(nil, 1)
	packed = small.Pack([]RetrievedChunk{{Text: strings.Repeat("c", 40), Score: 0.9}})
	if !packed.Truncated {
		t.Fatal("Truncated not set on estimation path")
	}
	if len(packed.Chunks[0].Text) != 4 {
		t.Errorf("truncated text length = %d, want 4", len(packed.Chunks[0].Text))
	}
}

func TestPacker_Pack_TruncatesMultibyteWithinBudget(t *testing.T) {
	// The estimate counts bytes, so a truncation keeping budget*4 runes of
	// multibyte text would re-count above the budget.
	p := NewPacker(nil, 2)

	packed := p.Pack([]RetrievedChunk{{Text: strings.Repeat("é", 40), Score: 0.9, SourceID: "s1"}})
	if !packed.Truncated {
		t.Fatal("Truncated not set")
	}
	text := packed.Chunks[0].Text
	if !utf8.ValidString(text) {
		t.Errorf("truncation split a rune: %q", text)
	}
	if got := chunker.EstimateTokens(text); got > 2 {
		t.Errorf("truncated chunk estimates at %d tokens, want at most 2", got)
	}
	if packed.TokenCount > 2 {
		t.Errorf("TokenCount = %d, want at most 2", packed.TokenCount)
	}
}

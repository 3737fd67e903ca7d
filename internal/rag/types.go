package rag

// AskRequest represents a query against the indexed material.
type AskRequest struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// DeckID optionally scopes retrieval to one deck; empty searches all decks.
	DeckID string `json:"deck_id,omitempty"`
	// K optionally overrides the number of chunks to retrieve.
	K int `json:"k,omitempty"`
	// SourcesOnly skips generation and returns only the packed sources.
	SourcesOnly bool `json:"sources_only,omitempty"`
}

// RetrievedChunk is one unit of retrieved content, ordered by descending
// score. CitationIndex is zero until the packer accepts the chunk; it is
// assigned sequentially on acceptance, not by retrieval rank, because
// budget overflow can skip higher-ranked chunks.
type RetrievedChunk struct {
	Text          string  `json:"text"`
	Score         float32 `json:"score"`
	SourceID      string  `json:"source_id"`
	Position      int     `json:"position"`
	CitationIndex int     `json:"citation_index,omitempty"`
}

// PackedContext is the bounded context assembled for answering.
type PackedContext struct {
	// Chunks are the accepted chunks with citation indices assigned.
	Chunks []RetrievedChunk
	// TokenCount is the total token cost of the accepted chunks.
	TokenCount int
	// Truncated is set when no chunk fit the budget whole and the best
	// chunk was cut down to fill it.
	Truncated bool
}

// Source is one citation in an answer.
type Source struct {
	CitationIndex int     `json:"citation_index"`
	SourceID      string  `json:"source_id"`
	Position      int     `json:"position"`
	Score         float32 `json:"score"`
	Text          string  `json:"text"`
}

// AskResponse is the result of a query.
type AskResponse struct {
	// Answer is the synthesized (or extracted) answer text. Empty when
	// SourcesOnly was requested or the engine abstained.
	Answer string `json:"answer"`
	// Sources are the citations backing the answer.
	Sources []Source `json:"sources"`
	// Abstained is set when no relevant material was found.
	Abstained bool `json:"abstained,omitempty"`
}

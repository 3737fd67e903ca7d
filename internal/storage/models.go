package storage

import "time"

// Deck represents a study deck in the database. A deck is the unit of
// scoping: every source, vector record, and query belongs to exactly one.
type Deck struct {
	ID                string // UUID
	Name              string
	EmbeddingStrategy string // "openai" or "hash", fixed at deck creation
	CreatedAt         time.Time
}

// Source represents an ingested document in the database.
type Source struct {
	ID          string // Caller-chosen identifier, unique within a deck
	DeckID      string // Foreign key to decks.id
	Title       string
	ContentHash string // SHA256 hex string of the extracted text
	BlockCount  int    // Number of content blocks produced at last ingest
	UpdatedAt   time.Time
}

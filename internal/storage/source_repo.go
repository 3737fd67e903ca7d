package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// SourceStore defines the interface for source storage operations.
type SourceStore interface {
	// GetByDeckAndID gets a source by deck ID and source ID.
	// Returns nil and ErrNotFound if not found.
	GetByDeckAndID(ctx context.Context, deckID, sourceID string) (*Source, error)
	// Upsert inserts a new source or updates an existing one.
	Upsert(ctx context.Context, source *Source) error
	// ListByDeck returns all sources in a deck ordered by ID.
	ListByDeck(ctx context.Context, deckID string) ([]Source, error)
}

// SourceRepo provides methods for source operations.
// It implements the SourceStore interface.
type SourceRepo struct {
	db *sql.DB
}

// NewSourceRepo creates a new SourceRepo.
func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// GetByDeckAndID gets a source by deck ID and source ID.
// Returns nil and ErrNotFound if not found.
func (r *SourceRepo) GetByDeckAndID(ctx context.Context, deckID, sourceID string) (*Source, error) {
	var source Source
	var updatedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, deck_id, title, content_hash, block_count, updated_at FROM sources WHERE deck_id = ? AND id = ?",
		deckID, sourceID,
	).Scan(&source.ID, &source.DeckID, &source.Title, &source.ContentHash, &source.BlockCount, &updatedAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}

	source.UpdatedAt, err = parseTimestamp(updatedAtStr)
	if err != nil {
		return nil, err
	}

	return &source, nil
}

// Upsert inserts a new source or updates an existing one by (deck_id, id).
func (r *SourceRepo) Upsert(ctx context.Context, source *Source) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, deck_id, title, content_hash, block_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (deck_id, id) DO UPDATE SET
		 title = excluded.title, content_hash = excluded.content_hash,
		 block_count = excluded.block_count, updated_at = CURRENT_TIMESTAMP`,
		source.ID, source.DeckID, source.Title, source.ContentHash, source.BlockCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

// ListByDeck returns all sources in a deck ordered by ID.
func (r *SourceRepo) ListByDeck(ctx context.Context, deckID string) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, deck_id, title, content_hash, block_count, updated_at FROM sources WHERE deck_id = ? ORDER BY id",
		deckID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var source Source
		var updatedAtStr string
		if err := rows.Scan(&source.ID, &source.DeckID, &source.Title, &source.ContentHash, &source.BlockCount, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		source.UpdatedAt, err = parseTimestamp(updatedAtStr)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_stores.go -package=mocks deckbrain/internal/storage DeckStore,SourceStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeckStore defines the interface for deck storage operations.
type DeckStore interface {
	// Create inserts a new deck and returns it with its generated ID.
	Create(ctx context.Context, name, embeddingStrategy string) (Deck, error)
	// GetByID gets a deck by ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (Deck, error)
	// ListAll returns all decks ordered by creation time.
	ListAll(ctx context.Context) ([]Deck, error)
}

// DeckRepo provides methods for deck operations.
// It implements the DeckStore interface.
type DeckRepo struct {
	db *sql.DB
}

// NewDeckRepo creates a new DeckRepo.
func NewDeckRepo(db *sql.DB) *DeckRepo {
	return &DeckRepo{db: db}
}

// Create inserts a new deck with a generated UUID. The embedding strategy is
// recorded so a later restart under a different strategy can be rejected.
func (r *DeckRepo) Create(ctx context.Context, name, embeddingStrategy string) (Deck, error) {
	id := uuid.New().String()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO decks (id, name, embedding_strategy) VALUES (?, ?, ?)",
		id, name, embeddingStrategy,
	)
	if err != nil {
		return Deck{}, fmt.Errorf("failed to insert deck: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID gets a deck by ID. Returns ErrNotFound if not found.
func (r *DeckRepo) GetByID(ctx context.Context, id string) (Deck, error) {
	var deck Deck
	var createdAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, embedding_strategy, created_at FROM decks WHERE id = ?",
		id,
	).Scan(&deck.ID, &deck.Name, &deck.EmbeddingStrategy, &createdAtStr)

	if err == sql.ErrNoRows {
		return Deck{}, ErrNotFound
	}
	if err != nil {
		return Deck{}, fmt.Errorf("failed to query deck: %w", err)
	}

	deck.CreatedAt, err = parseTimestamp(createdAtStr)
	if err != nil {
		return Deck{}, err
	}

	return deck, nil
}

// ListAll returns all decks ordered by creation time.
func (r *DeckRepo) ListAll(ctx context.Context) ([]Deck, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, embedding_strategy, created_at FROM decks ORDER BY created_at, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	var decks []Deck
	for rows.Next() {
		var deck Deck
		var createdAtStr string
		if err := rows.Scan(&deck.ID, &deck.Name, &deck.EmbeddingStrategy, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		deck.CreatedAt, err = parseTimestamp(createdAtStr)
		if err != nil {
			return nil, err
		}
		decks = append(decks, deck)
	}
	return decks, rows.Err()
}

// parseTimestamp parses a SQLite DATETIME column value.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err == nil {
		return t, nil
	}
	// SQLite might use a different format depending on how the value was set
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return t, nil
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DeckRepo {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewDeckRepo(db)
}

func TestDeckRepo_CreateAndGet(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	deck, err := repo.Create(ctx, "Biology 101", "hash")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if deck.ID == "" {
		t.Fatal("Create() returned empty ID")
	}
	if deck.Name != "Biology 101" {
		t.Errorf("Name = %q, want Biology 101", deck.Name)
	}
	if deck.EmbeddingStrategy != "hash" {
		t.Errorf("EmbeddingStrategy = %q, want hash", deck.EmbeddingStrategy)
	}
	if deck.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	got, err := repo.GetByID(ctx, deck.ID)
	if err != nil {
		t.Fatalf("GetByID() unexpected error: %v", err)
	}
	if got.ID != deck.ID || got.Name != deck.Name {
		t.Errorf("GetByID() = %+v, want %+v", got, deck)
	}
}

func TestDeckRepo_GetByID_NotFound(t *testing.T) {
	repo := newTestDB(t)

	_, err := repo.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestDeckRepo_ListAll(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	decks, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() unexpected error: %v", err)
	}
	if len(decks) != 0 {
		t.Fatalf("ListAll() on empty database returned %d decks", len(decks))
	}

	if _, err := repo.Create(ctx, "First", "openai"); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if _, err := repo.Create(ctx, "Second", "openai"); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	decks, err = repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() unexpected error: %v", err)
	}
	if len(decks) != 2 {
		t.Fatalf("ListAll() returned %d decks, want 2", len(decks))
	}
}

package vectorindex

import (
	"context"
	"path/filepath"
	"testing"

	"deckbrain/internal/storage"
)

func newTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewSQLiteIndex(db)
}

func record(id, deckID string, vector []float32) Record {
	return Record{
		ID:     id,
		DeckID: deckID,
		Vector: vector,
		Payload: Payload{
			Text:     "body of " + id,
			SourceID: "src-" + id,
			Position: 0,
		},
	}
}

func TestSQLiteIndex_UpsertAndSearch(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	written, err := index.Upsert(ctx, []Record{
		record("a", "deck1", []float32{1, 0, 0}),
		record("b", "deck1", []float32{0.9, 0.1, 0}),
		record("c", "deck2", []float32{1, 0, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}
	if written != 3 {
		t.Fatalf("Upsert() wrote %d records, want 3", written)
	}

	results, err := index.Search(ctx, []float32{1, 0, 0}, 10, "deck1")
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2 (deck scoped)", len(results))
	}
	if results[0].Record.ID != "a" {
		t.Errorf("top result = %s, want a", results[0].Record.ID)
	}
	if results[1].Record.ID != "b" {
		t.Errorf("second result = %s, want b", results[1].Record.ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not in descending score order")
	}
	if results[0].Record.Payload.Text != "body of a" {
		t.Errorf("payload text = %q, want %q", results[0].Record.Payload.Text, "body of a")
	}
}

func TestSQLiteIndex_Search_TopKCutoff(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	_, err := index.Upsert(ctx, []Record{
		record("a", "deck1", []float32{1, 0}),
		record("b", "deck1", []float32{0, 1}),
		record("c", "deck1", []float32{0.7, 0.7}),
	})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	results, err := index.Search(ctx, []float32{1, 0}, 1, "deck1")
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(results))
	}
	if results[0].Record.ID != "a" {
		t.Errorf("top result = %s, want a", results[0].Record.ID)
	}

	if _, err := index.Search(ctx, []float32{1, 0}, 0, "deck1"); err == nil {
		t.Error("Search() with k=0 expected error, got nil")
	}
}

func TestSQLiteIndex_Search_TieBreakByInsertionOrder(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	// Identical vectors score identically; the earlier insert must win.
	vec := []float32{0.5, 0.5, 0}
	if _, err := index.Upsert(ctx, []Record{record("first", "deck1", vec)}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}
	if _, err := index.Upsert(ctx, []Record{record("second", "deck1", vec)}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	results, err := index.Search(ctx, vec, 2, "deck1")
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].Score != results[1].Score {
		t.Fatalf("scores differ: %v vs %v", results[0].Score, results[1].Score)
	}
	if results[0].Record.ID != "first" || results[1].Record.ID != "second" {
		t.Errorf("tie order = [%s, %s], want [first, second]", results[0].Record.ID, results[1].Record.ID)
	}
}

func TestSQLiteIndex_Upsert_ReplacesByID(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	original := record("a", "deck1", []float32{1, 0})
	if _, err := index.Upsert(ctx, []Record{original}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	replacement := original
	replacement.Vector = []float32{0, 1}
	replacement.Payload.Text = "updated body"
	if _, err := index.Upsert(ctx, []Record{replacement}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	results, err := index.Search(ctx, []float32{0, 1}, 10, "deck1")
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results after replace, want 1", len(results))
	}
	if results[0].Record.Payload.Text != "updated body" {
		t.Errorf("payload text = %q, want %q", results[0].Record.Payload.Text, "updated body")
	}
}

func TestSQLiteIndex_Export(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	records := []Record{
		record("a", "deck1", []float32{1, 0}),
		record("b", "deck1", []float32{0, 1}),
		record("c", "deck2", []float32{1, 1}),
	}
	if _, err := index.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	cursor, err := index.Export(ctx, "")
	if err != nil {
		t.Fatalf("Export() unexpected error: %v", err)
	}

	var exported []Record
	for {
		batch, err := cursor.Next(ctx)
		if err != nil {
			t.Fatalf("Next() unexpected error: %v", err)
		}
		if batch == nil {
			break
		}
		exported = append(exported, batch...)
	}
	if len(exported) != 3 {
		t.Fatalf("exported %d records, want 3", len(exported))
	}
	// Insertion order.
	for i, want := range []string{"a", "b", "c"} {
		if exported[i].ID != want {
			t.Errorf("exported[%d].ID = %s, want %s", i, exported[i].ID, want)
		}
	}
	if len(exported[0].Vector) != 2 {
		t.Errorf("exported vector length = %d, want 2", len(exported[0].Vector))
	}

	// Deck-scoped export.
	cursor, err = index.Export(ctx, "deck2")
	if err != nil {
		t.Fatalf("Export() unexpected error: %v", err)
	}
	batch, err := cursor.Next(ctx)
	if err != nil {
		t.Fatalf("Next() unexpected error: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != "c" {
		t.Errorf("deck2 export = %v, want [c]", batch)
	}
	if batch, _ = cursor.Next(ctx); batch != nil {
		t.Error("cursor not exhausted after final batch")
	}
}

func TestSQLiteIndex_Delete(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	if _, err := index.Upsert(ctx, []Record{
		record("a", "deck1", []float32{1, 0}),
		record("b", "deck1", []float32{0, 1}),
	}); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	if err := index.Delete(ctx, []string{"a", "missing"}); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}

	results, err := index.Search(ctx, []float32{1, 0}, 10, "deck1")
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "b" {
		t.Errorf("after delete, results = %v, want only b", results)
	}

	// Deleting nothing is a no-op.
	if err := index.Delete(ctx, nil); err != nil {
		t.Errorf("Delete(nil) unexpected error: %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

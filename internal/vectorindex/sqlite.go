package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"deckbrain/internal/contextutil"
)

// exportBatchSize is how many records an export cursor fetches per round trip.
const exportBatchSize = 256

// SQLiteIndex is the embedded vector index. Vectors are stored as JSON blobs
// next to their payload; search is a brute-force cosine scan that keeps only
// the current top-k in memory. The table's rowid is stable across
// upsert-replaces, which gives the deterministic earliest-inserted tie-break.
type SQLiteIndex struct {
	db *sql.DB
}

func NewSQLiteIndex(db *sql.DB) *SQLiteIndex {
	return &SQLiteIndex{db: db}
}

func (s *SQLiteIndex) Upsert(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin upsert: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const stmt = `
		INSERT INTO vector_records (id, deck_id, source_id, position, body, vector)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			deck_id = excluded.deck_id,
			source_id = excluded.source_id,
			position = excluded.position,
			body = excluded.body,
			vector = excluded.vector
	`
	written := 0
	for _, rec := range records {
		blob, err := json.Marshal(rec.Vector)
		if err != nil {
			return written, fmt.Errorf("failed to encode vector for %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			rec.ID, rec.DeckID, rec.Payload.SourceID, rec.Payload.Position, rec.Payload.Text, blob,
		); err != nil {
			return written, fmt.Errorf("%w: upsert %s: %v", ErrUnavailable, rec.ID, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit upsert: %v", ErrUnavailable, err)
	}
	return written, nil
}

func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, k int, deckID string) ([]Scored, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	logger := contextutil.LoggerFromContext(ctx)

	query := "SELECT rowid, id, deck_id, source_id, position, body, vector FROM vector_records"
	var args []any
	if deckID != "" {
		query += " WHERE deck_id = ?"
		args = append(args, deckID)
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search query: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	type candidate struct {
		scored Scored
		seq    int64
	}
	var top []candidate
	scanned := 0
	for rows.Next() {
		var (
			seq  int64
			rec  Record
			blob []byte
		)
		if err := rows.Scan(&seq, &rec.ID, &rec.DeckID, &rec.Payload.SourceID, &rec.Payload.Position, &rec.Payload.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", ErrUnavailable, err)
		}
		if err := json.Unmarshal(blob, &rec.Vector); err != nil {
			logger.WarnContext(ctx, "skipping record with corrupt vector", "id", rec.ID, "error", err)
			continue
		}
		scanned++
		score := CosineSimilarity(vector, rec.Vector)
		c := candidate{scored: Scored{Record: rec, Score: score}, seq: seq}

		// Insert into the sorted top-k slice: descending score, then
		// ascending insertion order.
		pos := len(top)
		for i, existing := range top {
			if c.scored.Score > existing.scored.Score {
				pos = i
				break
			}
		}
		if pos >= k {
			continue
		}
		top = append(top, candidate{})
		copy(top[pos+1:], top[pos:])
		top[pos] = c
		if len(top) > k {
			top = top[:k]
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", ErrUnavailable, err)
	}

	results := make([]Scored, len(top))
	for i, c := range top {
		results[i] = c.scored
	}
	logger.DebugContext(ctx, "vector search completed", "scanned", scanned, "results", len(results), "deck_id", deckID)
	return results, nil
}

func (s *SQLiteIndex) Export(ctx context.Context, deckID string) (*Cursor, error) {
	lastRowID := int64(0)
	done := false
	return &Cursor{next: func(ctx context.Context) ([]Record, error) {
		if done {
			return nil, nil
		}
		query := "SELECT rowid, id, deck_id, source_id, position, body, vector FROM vector_records WHERE rowid > ?"
		args := []any{lastRowID}
		if deckID != "" {
			query += " AND deck_id = ?"
			args = append(args, deckID)
		}
		query += " ORDER BY rowid LIMIT ?"
		args = append(args, exportBatchSize)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: export query: %v", ErrUnavailable, err)
		}
		defer func() {
			_ = rows.Close()
		}()

		var batch []Record
		for rows.Next() {
			var (
				seq  int64
				rec  Record
				blob []byte
			)
			if err := rows.Scan(&seq, &rec.ID, &rec.DeckID, &rec.Payload.SourceID, &rec.Payload.Position, &rec.Payload.Text, &blob); err != nil {
				return nil, fmt.Errorf("%w: scan export record: %v", ErrUnavailable, err)
			}
			if err := json.Unmarshal(blob, &rec.Vector); err != nil {
				return nil, fmt.Errorf("corrupt vector for record %s: %w", rec.ID, err)
			}
			lastRowID = seq
			batch = append(batch, rec)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: iterate export records: %v", ErrUnavailable, err)
		}
		if len(batch) < exportBatchSize {
			done = true
		}
		if len(batch) == 0 {
			return nil, nil
		}
		return batch, nil
	}}, nil
}

func (s *SQLiteIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM vector_records WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("%w: delete records: %v", ErrUnavailable, err)
	}
	return nil
}

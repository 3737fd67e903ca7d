package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
//
// vector_records is also the table behind the sqlite vector backend; its
// rowid doubles as the insertion-order tie-break for search results, so the
// table must never be rebuilt in a way that renumbers existing rows.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS decks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			embedding_strategy TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT NOT NULL,
			deck_id TEXT NOT NULL,
			title TEXT,
			content_hash TEXT NOT NULL,
			block_count INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (deck_id, id),
			FOREIGN KEY (deck_id) REFERENCES decks(id)
		);`,
		`CREATE TABLE IF NOT EXISTS vector_records (
			id TEXT PRIMARY KEY,
			deck_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			body TEXT NOT NULL,
			vector BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_vector_records_deck ON vector_records(deck_id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const documentSchema = `CREATE TABLE IF NOT EXISTS documents (
    collection TEXT    NOT NULL,
    id         TEXT    NOT NULL,
    data_json  TEXT    NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (collection, id)
)`

// SQLiteStore provides SQLite-backed document persistence.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore ensures the documents table exists on db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("docstore: sqlite db is required")
	}
	if _, err := db.ExecContext(ctx, documentSchema); err != nil {
		return nil, fmt.Errorf("create document schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get loads a document by collection and id.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validateRef(collection, id); err != nil {
		return Document{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT data_json, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	var raw string
	var updatedAt int64
	if err := row.Scan(&raw, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get document: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return Document{}, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return Document{
		Collection: collection,
		ID:         id,
		Data:       data,
		UpdatedAt:  time.UnixMilli(updatedAt).UTC(),
	}, nil
}

// Put upserts a document.
func (s *SQLiteStore) Put(ctx context.Context, doc Document) error {
	if err := validateRef(doc.Collection, doc.ID); err != nil {
		return err
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", doc.Collection, doc.ID, err)
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data_json, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
		    data_json = excluded.data_json,
		    updated_at = excluded.updated_at`,
		doc.Collection, doc.ID, string(raw), doc.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

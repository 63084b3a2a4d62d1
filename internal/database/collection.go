package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Collection is a typed view over one named collection in the documents
// table. T is a pointer type such as *Scene.
type Collection[T Document] struct {
	db   *Database
	name string
}

// NewCollection binds a collection name to a document type.
func NewCollection[T Document](db *Database, name string) *Collection[T] {
	return &Collection[T]{db: db, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

func decode[T Document](data string) (T, error) {
	var doc T
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return doc, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func (c *Collection[T]) queryOne(ctx context.Context, op, query string, args ...any) (doc T, err error) {
	start := time.Now()
	defer func() { recordQuery(op, start, err) }()

	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data string
	err = c.db.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return doc, ErrNotFound
	}
	if err != nil {
		return doc, err
	}
	return decode[T](data)
}

func (c *Collection[T]) queryMany(ctx context.Context, op, query string, args ...any) (docs []T, err error) {
	start := time.Now()
	defer func() { recordQuery(op, start, err) }()

	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	rows, err := c.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err = rows.Scan(&data); err != nil {
			return nil, err
		}
		doc, decErr := decode[T](data)
		if decErr != nil {
			err = decErr
			return nil, err
		}
		docs = append(docs, doc)
	}
	err = rows.Err()
	return docs, err
}

// Get returns the document with the given id or ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	return c.queryOne(ctx, "get",
		"SELECT data FROM documents WHERE collection = ? AND id = ?", c.name, id)
}

// GetByPath returns the document whose stored path equals path exactly, or
// ErrNotFound. No normalization is applied.
func (c *Collection[T]) GetByPath(ctx context.Context, path string) (T, error) {
	return c.queryOne(ctx, "get_by_path",
		"SELECT data FROM documents WHERE collection = ? AND path = ?", c.name, path)
}

// GetBulk returns the documents for ids in the order given, skipping ids
// that do not exist.
func (c *Collection[T]) GetBulk(ctx context.Context, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, c.name)
	for _, id := range ids {
		args = append(args, id)
	}

	docs, err := c.queryMany(ctx, "get_bulk",
		"SELECT data FROM documents WHERE collection = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]T, len(docs))
	for _, doc := range docs {
		byID[doc.DocID()] = doc
	}
	ordered := make([]T, 0, len(docs))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			ordered = append(ordered, doc)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// GetAll returns every document in insertion order.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	return c.queryMany(ctx, "get_all",
		"SELECT data FROM documents WHERE collection = ? ORDER BY created_at, rowid", c.name)
}

// Query returns the documents whose secondary index indexName holds key.
func (c *Collection[T]) Query(ctx context.Context, indexName, key string) ([]T, error) {
	return c.queryMany(ctx, "query", `
		SELECT d.data FROM documents d
		JOIN document_keys k ON k.collection = d.collection AND k.id = d.id
		WHERE k.collection = ? AND k.index_name = ? AND k.key = ?
		ORDER BY d.created_at, d.rowid
	`, c.name, indexName, key)
}

// Count returns the number of documents in the collection.
func (c *Collection[T]) Count(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { recordQuery("count", start, err) }()

	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	err = c.db.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ?", c.name).Scan(&n)
	return n, err
}

// Upsert inserts or replaces doc under doc.DocID() and rewrites its
// secondary index keys. It fails with ErrPathConflict when another id in
// the collection already owns doc.DocPath().
func (c *Collection[T]) Upsert(ctx context.Context, doc T) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert", start, err) }()

	id := doc.DocID()
	if id == "" {
		return fmt.Errorf("upsert into %s: empty id", c.name)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	var path sql.NullString
	if p := doc.DocPath(); p != "" {
		path = sql.NullString{String: p, Valid: true}
	}

	err = c.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, path, data)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				path = excluded.path,
				data = excluded.data,
				updated_at = strftime('%s', 'now')
		`, c.name, id, path, string(data))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrPathConflict, path.String)
			}
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM document_keys WHERE collection = ? AND id = ?", c.name, id); err != nil {
			return err
		}

		for index, keys := range doc.IndexKeys() {
			for _, key := range keys {
				if key == "" {
					continue
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT OR IGNORE INTO document_keys (collection, id, index_name, key)
					VALUES (?, ?, ?, ?)
				`, c.name, id, index, key); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return err
}

// Remove deletes the document with the given id. Removing a missing id is
// not an error.
func (c *Collection[T]) Remove(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { recordQuery("remove", start, err) }()

	return c.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM document_keys WHERE collection = ? AND id = ?", c.name, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ?", c.name, id)
		return err
	})
}

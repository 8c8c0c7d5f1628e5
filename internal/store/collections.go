package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/moon/internal/value"
)

var (
	// ErrCollectionNotFound is returned when a collection has no table.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollection is returned for names that cannot be used as a
	// table suffix.
	ErrInvalidCollection = errors.New("invalid collection name")
)

// Record is a single stored value addressed by collection and id.
type Record struct {
	ID    string
	Value value.Value
}

// Upsert writes a record, replacing any existing record with the same id.
// The collection table is created if it does not exist yet.
func (s *Store) Upsert(ctx context.Context, collection, id string, v value.Value) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	data, err := value.Marshal(v)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: begin: %w", collection, id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id    TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`, table)); err != nil {
		return fmt.Errorf("upsert %s/%s: create table: %w", collection, id, err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, value) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value
	`, table), id, string(data)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert %s/%s: commit: %w", collection, id, err)
	}
	return nil
}

// Delete removes a record. Deleting a missing record, or a record in a
// missing collection, is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	exists, err := s.tableExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if !exists {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Drop removes a collection and all of its records.
func (s *Store) Drop(ctx context.Context, collection string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	return nil
}

// Collections returns the names of all collections, sorted.
// Returns an empty slice (not nil) for an empty database.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND substr(name, 1, ?) = ?
	`, len(tablePrefix), tablePrefix)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, strings.TrimPrefix(name, tablePrefix))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Get returns the record value for id.
//
// Returns ErrCollectionNotFound if the collection does not exist, and
// found=false if the collection exists but has no such record.
func (s *Store) Get(ctx context.Context, collection, id string) (v value.Value, found bool, err error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, false, err
	}

	exists, err := s.tableExists(ctx, collection)
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if !exists {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, id, ErrCollectionNotFound)
	}

	var raw string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE id = ?`, table), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	v, err = value.Unmarshal([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: decode: %w", collection, id, err)
	}
	return v, true, nil
}

// All returns every record in a collection ordered by id.
// Returns an empty slice (not nil) when the collection does not exist.
func (s *Store) All(ctx context.Context, collection string) ([]Record, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}

	exists, err := s.tableExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("all %s: %w", collection, err)
	}
	if !exists {
		return []Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, value FROM %s
		ORDER BY id COLLATE BINARY ASC
	`, table))
	if err != nil {
		return nil, fmt.Errorf("all %s: %w", collection, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		v, err := value.Unmarshal([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("all %s/%s: decode: %w", collection, id, err)
		}
		records = append(records, Record{ID: id, Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return records, nil
}

func (s *Store) tableExists(ctx context.Context, collection string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?
	`, tablePrefix+collection).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table: %w", err)
	}
	return n > 0, nil
}

// tableName returns the quoted table identifier for a collection.
func tableName(collection string) (string, error) {
	if collection == "" || strings.ContainsRune(collection, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
	return `"` + strings.ReplaceAll(tablePrefix+collection, `"`, `""`) + `"`, nil
}

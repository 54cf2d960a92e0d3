package remote

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a durable Memory backed by a single SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Memory = (*SQLite)(nil)

// NewSQLite opens (or creates) a SQLite-backed memory at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("remote: open database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("remote: pragma failed: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS memory (
		namespace  TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		expires_at INTEGER,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("remote: schema creation failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) purgeExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM memory WHERE expires_at IS NOT NULL AND expires_at <= ?",
		time.Now().UnixMilli())
	return err
}

func (s *SQLite) Store(ctx context.Context, key, value, namespace string, ttl time.Duration) error {
	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memory (namespace, key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		namespace, key, value, expiresAt, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("remote: store %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Retrieve(ctx context.Context, key, namespace string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM memory
		WHERE namespace = ? AND key = ?
		  AND (expires_at IS NULL OR expires_at > ?)`,
		namespace, key, time.Now().UnixMilli()).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("remote: retrieve %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) Search(ctx context.Context, pattern, namespace string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	// GLOB matches "*" the same way the in-memory backend does; a
	// wildcard-free pattern searches as a substring.
	if !strings.ContainsAny(pattern, "*?[") {
		pattern = "*" + pattern + "*"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM memory
		WHERE namespace = ? AND key GLOB ?
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key LIMIT ?`,
		namespace, pattern, time.Now().UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("remote: search %s: %w", pattern, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, key, namespace string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM memory WHERE namespace = ? AND key = ? AND (expires_at IS NULL OR expires_at > ?)",
		namespace, key, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("remote: delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) List(ctx context.Context, namespace string) ([]string, error) {
	if err := s.purgeExpired(ctx); err != nil {
		return nil, fmt.Errorf("remote: purge expired: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM memory WHERE namespace = ? ORDER BY key", namespace)
	if err != nil {
		return nil, fmt.Errorf("remote: list namespace %s: %w", namespace, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLiteStore keeps the record in a two-row key/value table. Save and
// Clear run inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("session: sqlite store requires a path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	// One connection keeps ":memory:" databases coherent and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrStorage, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	user, err := EncodeUser(rec.User)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	const upsert = `INSERT INTO session_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, tokenKey, []byte(rec.Token)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, upsert, userKey, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM session_kv WHERE key IN (?, ?)`, tokenKey, userKey)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	var (
		token, user       []byte
		hasToken, hasUser bool
	)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		switch key {
		case tokenKey:
			token, hasToken = value, true
		case userKey:
			user, hasUser = value, true
		}
	}
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return assemble(string(token), hasToken, user, hasUser)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_kv WHERE key IN (?, ?)`, tokenKey, userKey); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

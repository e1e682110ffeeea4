package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hpkotak/aiplatform/internal/message"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
  key TEXT PRIMARY KEY,
  messages TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`

// SQLite keeps conversations in one table, one row per key.
type SQLite struct {
	db  *sql.DB
	key string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path, key string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLite{db: db, key: key}, nil
}

// Setup creates the conversations table.
func (s *SQLite) Setup(ctx context.Context, _ SetupOptions) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context) (message.Bag, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT messages FROM conversations WHERE key = ?`, s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return message.Bag{}, nil
	}
	if err != nil {
		return message.Bag{}, fmt.Errorf("query conversation: %w", err)
	}
	return message.UnmarshalBag([]byte(data))
}

func (s *SQLite) Save(ctx context.Context, bag message.Bag) error {
	data, err := message.MarshalBag(bag)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO conversations (key, messages, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at`,
		s.key, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (s *SQLite) Drop(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE key = ?`, s.key); err != nil {
		return fmt.Errorf("drop conversation: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

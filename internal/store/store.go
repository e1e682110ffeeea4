// Package store persists chat history. A Store holds exactly one
// conversation; it is a persistence boundary and never inspects messages.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hpkotak/aiplatform/internal/config"
	"github.com/hpkotak/aiplatform/internal/message"
)

var ErrUnknownDriver = errors.New("unsupported store driver")

// Store loads and saves a message bag.
type Store interface {
	// Setup prepares the backend (directories, tables). It is idempotent.
	Setup(ctx context.Context, opts SetupOptions) error
	// Load returns the saved bag, or an empty bag when nothing was saved.
	Load(ctx context.Context) (message.Bag, error)
	Save(ctx context.Context, bag message.Bag) error
	Drop(ctx context.Context) error
}

// SetupOptions tune backend preparation.
type SetupOptions struct {
	// TTL expires saved conversations. Zero keeps them forever. Only the
	// Redis backend honors it.
	TTL time.Duration
}

// Open builds the store selected by cfg. Stores holding connections also
// implement io.Closer; release them with Close.
func Open(cfg config.Store) (Store, error) {
	key := cfg.Key
	if strings.TrimSpace(key) == "" {
		key = "default"
	}
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Path), nil
	case "redis":
		return NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), key), nil
	case "sqlite":
		return OpenSQLite(cfg.Path, key)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Close releases the resources held by s, if any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

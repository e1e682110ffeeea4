package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpkotak/aiplatform/internal/config"
	"github.com/hpkotak/aiplatform/internal/message"
)

func sampleBag() message.Bag {
	return message.NewBag(
		message.System("be brief"),
		message.UserText("what time is it?"),
		message.Assistant("noon"),
	)
}

// exercise runs the contract every backend must satisfy.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Setup(ctx, SetupOptions{}))
	require.NoError(t, s.Setup(ctx, SetupOptions{}), "setup must be idempotent")

	empty, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	want := sampleBag()
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want.Len(), got.Len())
	for i, m := range got.Messages() {
		assert.Equal(t, want.Messages()[i].ID(), m.ID())
		assert.Equal(t, want.Messages()[i].Role(), m.Role())
	}
	last, _ := got.Last()
	assert.Equal(t, "noon", last.(message.AssistantMessage).Content)

	longer := got.With(message.UserText("thanks"))
	require.NoError(t, s.Save(ctx, longer))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Len())

	require.NoError(t, s.Drop(ctx))
	require.NoError(t, s.Drop(ctx), "dropping an empty store is not an error")
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	exercise(t, NewFile(path))
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFile(path).Load(context.Background())
	assert.ErrorContains(t, err, "decoding message bag")
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"), "default")
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestSQLiteKeysAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	work, err := OpenSQLite(path, "work")
	require.NoError(t, err)
	defer work.Close()
	require.NoError(t, work.Setup(ctx, SetupOptions{}))
	require.NoError(t, work.Save(ctx, sampleBag()))

	home, err := OpenSQLite(path, "home")
	require.NoError(t, err)
	defer home.Close()
	got, err := home.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("AIP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AIP_TEST_REDIS_ADDR not set")
	}
	s := NewRedis(redis.NewClient(&redis.Options{Addr: addr}), "test-"+time.Now().Format("150405.000"))
	defer s.Close()
	exercise(t, s)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		cfg     config.Store
		want    any
		wantErr bool
	}{
		{cfg: config.Store{Driver: "memory"}, want: &Memory{}},
		{cfg: config.Store{Driver: "file", Path: filepath.Join(dir, "h.json")}, want: &File{}},
		{cfg: config.Store{Driver: "sqlite", Path: filepath.Join(dir, "h.db")}, want: &SQLite{}},
		{cfg: config.Store{Driver: "redis", RedisAddr: "localhost:6379"}, want: &Redis{}},
		{cfg: config.Store{Driver: "postgres"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Driver, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownDriver)
				return
			}
			require.NoError(t, err)
			defer Close(s)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestRedisKeyDefaults(t *testing.T) {
	s, err := Open(config.Store{Driver: "redis", RedisAddr: "localhost:6379"})
	require.NoError(t, err)
	defer Close(s)
	assert.Equal(t, "aip:chat:default", s.(*Redis).key)
}

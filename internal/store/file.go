package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hpkotak/aiplatform/internal/message"
)

// File keeps the conversation as a JSON document at path.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Setup creates the parent directory.
func (f *File) Setup(context.Context, SetupOptions) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	return nil
}

func (f *File) Load(context.Context) (message.Bag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return message.Bag{}, nil
	}
	if err != nil {
		return message.Bag{}, fmt.Errorf("reading history: %w", err)
	}
	if len(data) == 0 {
		return message.Bag{}, nil
	}
	return message.UnmarshalBag(data)
}

// Save replaces the file atomically via a temporary file in the same directory.
func (f *File) Save(_ context.Context, bag message.Bag) error {
	data, err := message.MarshalBag(bag)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".history-*")
	if err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing history: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

func (f *File) Drop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing history: %w", err)
	}
	return nil
}

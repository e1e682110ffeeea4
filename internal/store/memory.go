package store

import (
	"context"
	"sync"

	"github.com/hpkotak/aiplatform/internal/message"
)

// Memory keeps the conversation for the lifetime of the process.
type Memory struct {
	mu  sync.RWMutex
	bag message.Bag
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Setup(context.Context, SetupOptions) error { return nil }

func (m *Memory) Load(context.Context) (message.Bag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bag, nil
}

func (m *Memory) Save(_ context.Context, bag message.Bag) error {
	m.mu.Lock()
	m.bag = bag
	m.mu.Unlock()
	return nil
}

func (m *Memory) Drop(context.Context) error {
	m.mu.Lock()
	m.bag = message.Bag{}
	m.mu.Unlock()
	return nil
}

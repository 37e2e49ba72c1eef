package cache

import (
	"context"
	"sync"

	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]archive.Entry
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]archive.Entry)}
}

func (memory *Memory) Get(_ context.Context, key string) ([]archive.Entry, bool) {
	memory.mu.RLock()
	defer memory.mu.RUnlock()

	entries, ok := memory.records[key]
	if !ok {
		return nil, false
	}
	return clone(entries), true
}

func (memory *Memory) Set(_ context.Context, key string, entries []archive.Entry) error {
	memory.mu.Lock()
	defer memory.mu.Unlock()

	memory.records[key] = clone(entries)
	return nil
}

func (memory *Memory) Clear(context.Context) error {
	memory.mu.Lock()
	defer memory.mu.Unlock()

	memory.records = make(map[string][]archive.Entry)
	return nil
}

func (memory *Memory) Close() error {
	return nil
}

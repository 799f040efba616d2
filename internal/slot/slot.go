// Package slot provides named durable slots: each slot holds one opaque
// payload that is overwritten as a whole on every write.
package slot

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Read when the slot has never been written.
var ErrNotFound = errors.New("slot: not found")

// Memory is a process-local slot set, used by tests and ephemeral clients.
type Memory struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemory returns an empty in-memory slot set.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

// Read returns a copy of the payload stored under name.
func (m *Memory) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.slots[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write replaces the payload stored under name.
func (m *Memory) Write(ctx context.Context, name string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.slots[name] = append([]byte(nil), payload...)
	m.mu.Unlock()
	return nil
}

package storage

import (
	"context"
	"sync"

	"github.com/MrWong99/dialogic/pkg/dialog"
)

// Memory keeps user objects in process memory. It is lost on restart.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]map[string]any
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]map[string]any)}
}

// Get implements [Store]. The result is a deep copy.
func (m *Memory) Get(_ context.Context, id string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return dialog.CloneObject(m.objects[id]), nil
}

// Set implements [Store]. obj is deep-copied.
func (m *Memory) Set(_ context.Context, id string, obj map[string]any) error {
	clone := dialog.CloneObject(obj)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[id] = clone
	return nil
}

// Len returns the number of stored users.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Package mock provides a scripted [manager.Manager] for tests.
//
// The mock records every call and answers with the configured response.
// It is safe for concurrent use.
//
// Example:
//
//	m := &mock.Manager{Response: dialog.NewResponse("hello")}
//	resp, err := m.Respond(ctx, dc)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/dialogic/internal/manager"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// Compile-time interface assertion.
var _ manager.Manager = (*Manager)(nil)

// Manager is a mock implementation of [manager.Manager].
type Manager struct {
	mu sync.Mutex

	// Response is returned by Respond. Nil makes the mock decline.
	Response *dialog.Response

	// RespondFunc, when set, overrides Response and Err.
	RespondFunc func(ctx context.Context, dc *dialog.Context) (*dialog.Response, error)

	// Err is returned by Respond.
	Err error

	// Calls records the context of every Respond call.
	Calls []*dialog.Context
}

// Respond implements [manager.Manager].
func (m *Manager) Respond(ctx context.Context, dc *dialog.Context) (*dialog.Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, dc)
	fn, resp, err := m.RespondFunc, m.Response, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, dc)
	}
	if resp == nil {
		return nil, err
	}
	clone := *resp
	return &clone, err
}

// CallCount returns the number of Respond calls.
func (m *Manager) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Package manager defines the dialog manager contract and the managers that
// are not backed by a dedicated engine: the cascade of managers, the
// greeting/help manager, the FAQ manager and the turn-based manager.
//
// A manager answers a [dialog.Context] with a [dialog.Response]. A nil
// response with a nil error means the manager declines the message and
// leaves it to the next manager of a [Cascade].
package manager

import (
	"context"
	"fmt"

	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// DefaultMessage is the fallback answer of a [Cascade].
const DefaultMessage = "Простите, я вас не понял."

// Manager answers dialog messages.
type Manager interface {
	// Respond returns the answer to dc, or nil to decline.
	Respond(ctx context.Context, dc *dialog.Context) (*dialog.Response, error)
}

// Func adapts an ordinary function to [Manager].
type Func func(ctx context.Context, dc *dialog.Context) (*dialog.Response, error)

// Respond implements [Manager].
func (f Func) Respond(ctx context.Context, dc *dialog.Context) (*dialog.Response, error) {
	return f(ctx, dc)
}

// Named is one member of a [Cascade].
type Named struct {
	Name    string
	Manager Manager
}

// CascadeOption configures a [Cascade].
type CascadeOption func(*Cascade)

// WithDefaultMessage sets the answer given when every manager declines.
func WithDefaultMessage(text string) CascadeOption {
	return func(c *Cascade) { c.defaultMessage = text }
}

// Cascade tries its managers in order and returns the first answer. The
// last manager is the fallback: when it declines too, the cascade answers
// with the default message, so a cascade always answers.
type Cascade struct {
	managers       []Named
	defaultMessage string
}

var _ Manager = (*Cascade)(nil)

// NewCascade returns a cascade of managers. At least one is required.
func NewCascade(managers []Named, opts ...CascadeOption) (*Cascade, error) {
	if len(managers) == 0 {
		return nil, fmt.Errorf("manager: cascade needs at least one manager")
	}
	for i, m := range managers {
		if m.Manager == nil {
			return nil, fmt.Errorf("manager: cascade member %d (%q) is nil", i, m.Name)
		}
	}
	c := &Cascade{managers: managers, defaultMessage: DefaultMessage}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Managers returns the member names in order.
func (c *Cascade) Managers() []string {
	names := make([]string, len(c.managers))
	for i, m := range c.managers {
		names[i] = m.Name
	}
	return names
}

// Respond implements [Manager]. An error of a member aborts the cascade.
func (c *Cascade) Respond(ctx context.Context, dc *dialog.Context) (*dialog.Response, error) {
	log := observe.Logger(ctx)
	for _, m := range c.managers {
		resp, err := m.Manager.Respond(ctx, dc)
		if err != nil {
			return nil, fmt.Errorf("manager: %s: %w", m.Name, err)
		}
		if resp == nil {
			continue
		}
		if resp.Handler == "" {
			resp.Handler = m.Name
		}
		log.Debug("manager answered", "manager", m.Name)
		return resp, nil
	}
	log.Debug("every manager declined, using default message")
	resp := dialog.NewResponse(c.defaultMessage)
	resp.Handler = "default"
	return resp, nil
}

// Package adapter holds what the platform adapters share. Each subpackage
// translates one platform's messages into [dialog.Context] values, passes
// them to a [connector.Responder] and renders the [dialog.Response] back.
//
// Adapters that receive webhooks implement [net/http.Handler]; adapters
// that hold a connection or poll implement [Runner].
package adapter

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/dialogic/internal/connector"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// Responder is the connector contract adapters depend on.
type Responder = connector.Responder

// Runner is an adapter with its own event loop. Run blocks until ctx is
// cancelled or the platform connection fails.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// UserID namespaces a platform user id so ids of different platforms never
// collide in storage.
func UserID(source dialog.Source, id string) string {
	return string(source) + "__" + id
}

// Button is a rendered suggest or link.
type Button struct {
	Title string
	URL   string
	Hide  bool
}

// Buttons returns the links of resp followed by its suggests. Link URLs
// have their non-ASCII bytes percent-escaped.
func Buttons(resp *dialog.Response) []Button {
	out := make([]Button, 0, len(resp.Links)+len(resp.Suggests))
	for _, l := range resp.Links {
		out = append(out, Button{Title: l.Title, URL: EncodeURL(l.URL), Hide: l.Hide})
	}
	for _, s := range resp.Suggests {
		out = append(out, Button{Title: s, Hide: true})
	}
	return out
}

// EncodeURL percent-escapes the non-ASCII bytes of raw and leaves
// everything else, reserved characters included, untouched.
func EncodeURL(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= 0x80 {
			fmt.Fprintf(&b, "%%%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Rows splits items into rows of at most width elements. A non-positive
// width yields a single row.
func Rows[T any](items []T, width int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if width <= 0 {
		return [][]T{items}
	}
	return slices.Collect(slices.Chunk(items, width))
}

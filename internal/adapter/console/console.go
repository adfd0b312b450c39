// Package console runs a dialog as a line-oriented REPL, for trying bots
// out from a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/dialogic/internal/adapter"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// ExitCommand ends the REPL.
const ExitCommand = "/exit"

// Console reads user messages from In and writes replies to Out.
type Console struct {
	in        io.Reader
	out       io.Writer
	responder adapter.Responder
	userID    string
	prompt    string
}

var _ adapter.Runner = (*Console)(nil)

// Option configures a [Console].
type Option func(*Console)

// WithUserID fixes the user id. Default: a random uuid per console.
func WithUserID(id string) Option {
	return func(c *Console) { c.userID = id }
}

// WithPrompt sets the input prompt. Default: "> ".
func WithPrompt(p string) Option {
	return func(c *Console) { c.prompt = p }
}

// New returns a console on in and out.
func New(in io.Reader, out io.Writer, r adapter.Responder, opts ...Option) *Console {
	c := &Console{in: in, out: out, responder: r, prompt: "> "}
	for _, o := range opts {
		o(c)
	}
	if c.userID == "" {
		c.userID = uuid.NewString()
	}
	return c
}

// Name implements [adapter.Runner].
func (c *Console) Name() string { return "console" }

// Run serves lines until EOF, [ExitCommand], a response that ends the
// session, or cancellation of ctx.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	first := true
	for {
		if _, err := io.WriteString(c.out, c.prompt); err != nil {
			return fmt.Errorf("console: write prompt: %w", err)
		}
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("console: read input: %w", err)
					}
				default:
				}
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == ExitCommand {
			return nil
		}

		dc := dialog.NewContext(adapter.UserID(dialog.SourceText, c.userID), line, nil, dialog.SourceText)
		dc.SessionIsNew = first
		first = false

		resp, err := c.responder.Respond(ctx, dc)
		if err != nil {
			return fmt.Errorf("console: respond: %w", err)
		}
		if resp == nil || resp.NoResponse {
			continue
		}
		if _, err := io.WriteString(c.out, Render(resp)); err != nil {
			return fmt.Errorf("console: write reply: %w", err)
		}
		if resp.HasExitCommand() {
			return nil
		}
	}
}

// Render formats resp for a terminal: the text, then links one per line,
// then suggests in brackets.
func Render(resp *dialog.Response) string {
	var b strings.Builder
	b.WriteString(resp.Text)
	b.WriteByte('\n')
	for _, l := range resp.Links {
		fmt.Fprintf(&b, "  %s: %s\n", l.Title, l.URL)
	}
	if len(resp.Suggests) > 0 {
		for i, s := range resp.Suggests {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "[%s]", s)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

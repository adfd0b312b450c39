// Package mcp exposes a dialog as a Model Context Protocol server with a
// single send_message tool, so that agents can talk to a bot the way a
// user would.
package mcp

import (
	"context"
	"fmt"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/dialogic/internal/adapter"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// ToolName is the name of the tool that forwards a message to the dialog.
const ToolName = "send_message"

// seenSessions bounds the number of MCP sessions remembered for new-session
// detection.
const seenSessions = 4096

// SendInput is the argument of the send_message tool.
type SendInput struct {
	Text       string `json:"text" jsonschema:"the user message"`
	UserID     string `json:"user_id,omitempty" jsonschema:"stable id of the conversing user; defaults to the MCP session"`
	NewSession bool   `json:"new_session,omitempty" jsonschema:"start a new conversation"`
}

// SendOutput is the structured result of the send_message tool.
type SendOutput struct {
	Text       string   `json:"text"`
	Suggests   []string `json:"suggests,omitempty"`
	Links      []string `json:"links,omitempty"`
	EndSession bool     `json:"end_session,omitempty"`
}

// Server wraps an MCP server bound to a responder.
type Server struct {
	responder adapter.Responder
	server    *mcpsdk.Server
	seen      *lru.Cache[string, struct{}]
	stdio     bool
}

var _ adapter.Runner = (*Server)(nil)

// New creates the MCP server. version is reported to clients.
func New(r adapter.Responder, version string) *Server {
	seen, _ := lru.New[string, struct{}](seenSessions)
	s := &Server{
		responder: r,
		server:    mcpsdk.NewServer(&mcpsdk.Implementation{Name: "dialogic", Version: version}, nil),
		seen:      seen,
	}
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        ToolName,
		Description: "Send a message to the bot and receive its reply.",
	}, s.sendMessage)
	return s
}

// SDK returns the underlying MCP server.
func (s *Server) SDK() *mcpsdk.Server { return s.server }

// Name implements [adapter.Runner].
func (s *Server) Name() string { return string(dialog.SourceMCP) }

// Run serves a single client over stdin/stdout until ctx is cancelled or
// the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: serve stdio: %w", err)
	}
	return nil
}

// Handler returns a streamable HTTP handler serving the tool.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.server }, nil)
}

func (s *Server) sendMessage(ctx context.Context, req *mcpsdk.CallToolRequest, in SendInput) (*mcpsdk.CallToolResult, SendOutput, error) {
	var sessionID string
	if req != nil && req.Session != nil {
		sessionID = req.Session.ID()
	}
	userID := in.UserID
	if userID == "" {
		userID = sessionID
	}
	if userID == "" {
		userID = "anonymous"
	}

	dc := dialog.NewContext(adapter.UserID(dialog.SourceMCP, userID), in.Text, nil, dialog.SourceMCP)
	dc.SessionIsNew = in.NewSession || s.firstInSession(sessionID+"\x00"+userID)
	dc.Raw = in

	resp, err := s.responder.Respond(ctx, dc)
	if err != nil {
		return nil, SendOutput{}, fmt.Errorf("mcp: respond: %w", err)
	}
	if resp == nil || resp.NoResponse {
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: ""}}}, SendOutput{}, nil
	}
	out := MakeOutput(resp)
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out.Text}}}, out, nil
}

// firstInSession reports whether key has not been seen before and marks it.
func (s *Server) firstInSession(key string) bool {
	ok, _ := s.seen.ContainsOrAdd(key, struct{}{})
	return !ok
}

// MakeOutput renders resp as the tool's structured result.
func MakeOutput(resp *dialog.Response) SendOutput {
	out := SendOutput{
		Text:       resp.Text,
		Suggests:   resp.Suggests,
		EndSession: resp.HasExitCommand(),
	}
	for _, l := range resp.Links {
		out.Links = append(out.Links, l.URL)
	}
	return out
}

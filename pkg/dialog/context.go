// Package dialog holds the platform-neutral message types exchanged between
// adapters, the connector and dialog managers: the inbound [Context], the
// outbound [Response], and the [Phrase] templates responses are rendered
// from.
package dialog

import "time"

// Source identifies the surface a message came from.
type Source string

// Known sources.
const (
	SourceAlice     Source = "alice"
	SourceTelegram  Source = "telegram"
	SourceDiscord   Source = "discord"
	SourceWebSocket Source = "websocket"
	SourceMCP       Source = "mcp"
	SourceText      Source = "text"
)

// Context is a normalized inbound message together with the state stored
// for its user.
type Context struct {
	UserID    string
	MessageID string
	Source    Source
	Timestamp time.Time

	// Text is the raw utterance as the user typed or said it.
	Text string

	// SessionIsNew marks the first message of a session. Platforms without
	// sessions set it on /start-like commands.
	SessionIsNew bool

	// UserObject is the state stored for the user before this message. It
	// is a private copy; managers must not mutate it and write into the
	// response's UserObject instead.
	UserObject map[string]any

	// NLU is the platform-native NLU payload, if any, in the shape
	// {"intents": {name: {"slots": {slot: {"value": v, "type": t}}}}}.
	// Adapters pass it through undecoded.
	NLU map[string]any

	// NativeState marks a user object that travels inside the platform
	// message. The connector neither loads nor stores it; the adapter copies
	// the response's UserObject back into its reply.
	NativeState bool

	// Raw is the platform message the context was built from.
	Raw any
}

// NewContext returns a context for text with a deep copy of userObject.
func NewContext(userID, text string, userObject map[string]any, source Source) *Context {
	return &Context{
		UserID:     userID,
		Text:       text,
		Source:     source,
		Timestamp:  time.Now(),
		UserObject: CloneObject(userObject),
	}
}

// State returns a deep copy of the stored user object, never nil.
func (c *Context) State() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return CloneObject(c.UserObject)
}

// CloneObject deep-copies a JSON-like user object. Maps and slices are
// copied recursively; other values are shared. A nil object yields an empty
// map.
func CloneObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CloneObject(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	default:
		return v
	}
}

package alice

import "encoding/json"

// Request is the webhook body Yandex Dialogs sends for every utterance.
type Request struct {
	Meta    Meta        `json:"meta"`
	Request RequestBody `json:"request"`
	Session Session     `json:"session"`
	State   *State      `json:"state,omitempty"`
	Version string      `json:"version"`
}

// Meta describes the device.
type Meta struct {
	Locale     string         `json:"locale,omitempty"`
	Timezone   string         `json:"timezone,omitempty"`
	ClientID   string         `json:"client_id,omitempty"`
	Interfaces map[string]any `json:"interfaces,omitempty"`
}

// Request types.
const (
	TypeSimpleUtterance = "SimpleUtterance"
	TypeButtonPressed   = "ButtonPressed"
	TypeShowPull        = "Show.Pull"
)

// RequestBody is the user's utterance.
type RequestBody struct {
	Command           string          `json:"command"`
	OriginalUtterance string          `json:"original_utterance"`
	Type              string          `json:"type"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	NLU               map[string]any  `json:"nlu,omitempty"`
}

// Session identifies the conversation.
type Session struct {
	New       bool   `json:"new"`
	MessageID int    `json:"message_id"`
	SessionID string `json:"session_id"`
	SkillID   string `json:"skill_id"`

	// UserID is the application-scoped id.
	UserID string `json:"user_id"`

	// User is present for users logged into Yandex.
	User *User `json:"user,omitempty"`
}

// User is an authorized Yandex user.
type User struct {
	UserID string `json:"user_id"`
}

// State carries the platform-stored state.
type State struct {
	Session     map[string]any `json:"session,omitempty"`
	User        map[string]any `json:"user,omitempty"`
	Application map[string]any `json:"application,omitempty"`
}

// Response is the webhook reply.
type Response struct {
	Response         ResponseBody   `json:"response"`
	SessionState     map[string]any `json:"session_state,omitempty"`
	ApplicationState map[string]any `json:"application_state,omitempty"`
	UserStateUpdate  map[string]any `json:"user_state_update,omitempty"`
	Version          string         `json:"version"`
}

// ResponseBody is what Alice says and shows.
type ResponseBody struct {
	Text       string                    `json:"text"`
	TTS        string                    `json:"tts,omitempty"`
	EndSession bool                      `json:"end_session"`
	Buttons    []Button                  `json:"buttons"`
	Card       *Card                     `json:"card,omitempty"`
	Directives map[string]map[string]any `json:"directives,omitempty"`
}

// Button is a suggest or link button.
type Button struct {
	Title   string          `json:"title"`
	URL     string          `json:"url,omitempty"`
	Hide    bool            `json:"hide"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Card is an image or gallery.
type Card struct {
	Type        string     `json:"type"`
	ImageID     string     `json:"image_id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Items       []CardItem `json:"items,omitempty"`
}

// CardItem is one image of a gallery.
type CardItem struct {
	ImageID     string `json:"image_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

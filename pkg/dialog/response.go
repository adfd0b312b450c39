package dialog

import (
	"fmt"
	"slices"
)

// Commands a response can carry.
const (
	CommandExit               = "exit"
	CommandRequestGeolocation = "request_geolocation"
)

// Link is a button that opens a URL. Hidden links are rendered as
// suggest-like buttons by platforms that distinguish the two.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Hide  bool   `json:"hide,omitempty"`
}

// CardType selects how a [Card] is rendered.
type CardType string

// Card types.
const (
	CardBigImage  CardType = "BigImage"
	CardItemsList CardType = "ItemsList"
)

// CardItem is one image of a gallery card.
type CardItem struct {
	ImageID     string `json:"image_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Card is a structured image or gallery descriptor.
type Card struct {
	Type        CardType   `json:"type"`
	ImageID     string     `json:"image_id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Items       []CardItem `json:"items,omitempty"`
}

// Response is the platform-neutral answer to a [Context].
type Response struct {
	Text string

	// Voice is the text-to-speech rendition. Empty means "same as Text".
	Voice string

	Suggests []string
	Links    []Link
	Commands []string
	Card     *Card
	ImageID  string
	ImageURL string

	// UserObject is the new state to store for the user. Nil keeps the
	// stored state unchanged.
	UserObject map[string]any

	// Confidence and Label let cascades of managers compare answers.
	Confidence float64
	Label      string

	// Handler names the handler or manager that produced the response.
	Handler string

	// NoResponse asks messengers to send nothing at all.
	NoResponse bool
}

// NewResponse returns a response with text and the default confidence.
func NewResponse(text string, suggests ...string) *Response {
	return &Response{Text: text, Suggests: suggests, Confidence: 0.5}
}

// VoiceText returns Voice, or Text when no separate voice is set.
func (r *Response) VoiceText() string {
	if r.Voice != "" {
		return r.Voice
	}
	return r.Text
}

// HasExitCommand reports whether the response ends the session.
func (r *Response) HasExitCommand() bool {
	return slices.Contains(r.Commands, CommandExit)
}

// AddLink appends a link button.
func (r *Response) AddLink(title, url string, hide bool) {
	r.Links = append(r.Links, Link{Title: title, URL: url, Hide: hide})
}

// SetRichText replaces Text and Voice with the rendition of rich, which may
// contain TTS markup (see [ParseMarkup]). Links found in the markup are
// appended, and an image reference replaces the current one.
func (r *Response) SetRichText(rich string) error {
	m, err := ParseMarkup(rich)
	if err != nil {
		return fmt.Errorf("dialog: set rich text: %w", err)
	}
	r.Text, r.Voice = m.Text, m.Voice
	r.Links = append(r.Links, m.Links...)
	if m.ImageID != "" {
		r.ImageID = m.ImageID
	}
	if m.ImageURL != "" {
		r.ImageURL = m.ImageURL
	}
	return nil
}

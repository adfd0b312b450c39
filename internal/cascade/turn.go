package cascade

import (
	"fmt"
	"slices"

	"github.com/MrWong99/dialogic/internal/nlu"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// Reserved user-object keys.
const (
	KeyStage       = "stage"
	KeyAgenda      = "agenda"
	KeyAgendaForms = "agenda_forms"
)

// Turn is one request/response cycle: the inbound context with its resolved
// intents plus the response being built by handlers.
type Turn struct {
	Ctx *dialog.Context

	// Text is the normalized utterance.
	Text    string
	Intents map[string]float64
	Forms   map[string]map[string]string

	// ResponseText accumulates the reply. It may carry <text>, <voice> and
	// <a> markup. A turn with non-empty ResponseText is complete.
	ResponseText string

	// Response, when set by a handler, is returned as is and also completes
	// the turn.
	Response *dialog.Response

	Suggests []string
	Commands []string
	Links    []dialog.Link
	Card     *dialog.Card
	ImageURL string

	// UserObject is the state to store after this turn. It starts as a deep
	// copy of the stored state.
	UserObject map[string]any

	canChangeTopic bool
}

// NewTurn builds a turn for ctx from the resolver output.
func NewTurn(ctx *dialog.Context, res nlu.Result) *Turn {
	if ctx == nil {
		ctx = &dialog.Context{}
	}
	t := &Turn{
		Ctx:        ctx,
		Text:       res.Text,
		Intents:    res.Intents,
		Forms:      res.Forms,
		UserObject: ctx.State(),
	}
	if t.Intents == nil {
		t.Intents = make(map[string]float64)
	}
	if t.Forms == nil {
		t.Forms = make(map[string]map[string]string)
	}
	return t
}

// IsComplete reports whether a handler has produced a response.
func (t *Turn) IsComplete() bool {
	return t.ResponseText != "" || t.Response != nil
}

// Stage returns the stage stored before this turn.
func (t *Turn) Stage() string {
	s, _ := t.Ctx.UserObject[KeyStage].(string)
	return s
}

// NextStage returns the stage that will be stored after this turn.
func (t *Turn) NextStage() string {
	s, _ := t.UserObject[KeyStage].(string)
	return s
}

// SetStage sets the stage stored after this turn. An empty stage clears it.
func (t *Turn) SetStage(stage string) {
	if stage == "" {
		delete(t.UserObject, KeyStage)
		return
	}
	t.UserObject[KeyStage] = stage
}

// ReleaseControl signals that the current topic is finished and queued
// postprocessors may run.
func (t *Turn) ReleaseControl() { t.canChangeTopic = true }

// TakeControl signals that the handler is mid-topic.
func (t *Turn) TakeControl() { t.canChangeTopic = false }

// CanTakeControl reports whether a postprocessor may append to this turn:
// control was released and no next stage is pending.
func (t *Turn) CanTakeControl() bool {
	return t.canChangeTopic && t.NextStage() == ""
}

// Agenda returns the stack of pending postprocessor names, oldest first.
func (t *Turn) Agenda() []string {
	switch v := t.UserObject[KeyAgenda].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (t *Turn) agendaForms() map[string]any {
	forms, ok := t.UserObject[KeyAgendaForms].(map[string]any)
	if !ok {
		forms = make(map[string]any)
		t.UserObject[KeyAgendaForms] = forms
	}
	return forms
}

func (t *Turn) setAgenda(names []string) {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	t.UserObject[KeyAgenda] = out
}

// AddAgenda pushes a postprocessor name with an optional form. Names already
// on the agenda are not pushed again and AddAgenda reports false.
func (t *Turn) AddAgenda(name string, form map[string]any) bool {
	agenda := t.Agenda()
	if slices.Contains(agenda, name) {
		return false
	}
	t.setAgenda(append(agenda, name))
	if len(form) > 0 {
		t.agendaForms()[name] = form
	}
	return true
}

// PopAgenda removes the most recently pushed name and returns it with its
// form. On an empty agenda it clears the agenda and reports false.
func (t *Turn) PopAgenda() (name string, form map[string]any, ok bool) {
	agenda := t.Agenda()
	if len(agenda) == 0 {
		t.ClearAgenda()
		return "", nil, false
	}
	name = agenda[len(agenda)-1]
	t.setAgenda(agenda[:len(agenda)-1])
	forms := t.agendaForms()
	if f, found := forms[name].(map[string]any); found {
		form = f
		delete(forms, name)
	}
	return name, form, true
}

// ClearAgenda drops every pending postprocessor.
func (t *Turn) ClearAgenda() {
	t.UserObject[KeyAgenda] = []any{}
	t.UserObject[KeyAgendaForms] = map[string]any{}
}

// AddSpace starts a new line if the response already has text.
func (t *Turn) AddSpace() {
	if t.ResponseText != "" {
		t.ResponseText += "\n"
	}
}

// MakeResponse renders the turn. It returns nil for an incomplete turn.
func (t *Turn) MakeResponse() (*dialog.Response, error) {
	if t.Response != nil {
		return t.Response, nil
	}
	if t.ResponseText == "" {
		return nil, nil
	}
	r := dialog.NewResponse("", slices.Clone(t.Suggests)...)
	if err := r.SetRichText(t.ResponseText); err != nil {
		return nil, fmt.Errorf("cascade: render response: %w", err)
	}
	r.Commands = append(r.Commands, t.Commands...)
	r.Links = append(r.Links, t.Links...)
	r.Card = t.Card
	if t.ImageURL != "" {
		r.ImageURL = t.ImageURL
	}
	r.UserObject = t.UserObject
	return r, nil
}

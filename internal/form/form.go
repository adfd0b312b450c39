// Package form implements a form-filling dialog manager: a sequence of
// questions with per-field validation, fixed options matched fuzzily,
// branching and multivalued answers.
//
// Progress is stored in the user object under forms.<form_name> as
// {fields, is_active, name, next_question}.
package form

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/MrWong99/dialogic/internal/observe"
	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/matcher"
	"github.com/MrWong99/dialogic/pkg/textnorm"
)

// User-object keys.
const (
	KeyForms        = "forms"
	keyFields       = "fields"
	keyActive       = "is_active"
	keyName         = "name"
	keyNextQuestion = "next_question"
)

// introShown marks a started form whose introduction was shown but whose
// first question was not asked yet.
const introShown = -1

// CompleteFunc is called with the answers of a completed form. A nil
// response falls back to the finish message. The response's UserObject is
// filled in when left nil.
type CompleteFunc func(ctx context.Context, fields map[string]any, dc *dialog.Context) (*dialog.Response, error)

type field struct {
	FieldConfig
	index    int
	validate matcher.Pattern
	matcher  matcher.Matcher
}

// allOptions returns the options followed by the exit option.
func (f *field) allOptions() []Choice {
	if len(f.Options) == 0 {
		return nil
	}
	all := slices.Clone(f.Options)
	if f.ExitOption != nil {
		all = append(all, *f.ExitOption)
	}
	return all
}

func (f *field) optionTexts() []string {
	opts := f.allOptions()
	texts := make([]string, len(opts))
	for i, o := range opts {
		texts[i] = o.Text
	}
	return texts
}

// nextName returns the field named by the chosen option or by the field.
func (f *field) nextName(answer string) string {
	for _, o := range f.allOptions() {
		if o.Text == answer && o.Next != "" {
			return o.Next
		}
	}
	return f.Next
}

type compiled struct {
	cfg             *Config
	start           matcher.Pattern
	exit            matcher.Pattern
	fields          []*field
	byName          map[string]*field
	defaultValidate string
}

func anchored(engine matcher.Engine, expr string) (matcher.Pattern, error) {
	return engine.Compile("^(?:" + expr + ")$")
}

func compileWith(c *Config, engine matcher.Engine) (*compiled, error) {
	var errs []error
	if c.FormName == "" {
		errs = append(errs, errors.New("form_name is required"))
	}
	if len(c.Fields) == 0 {
		errs = append(errs, errors.New("fields cannot be empty"))
	}
	out := &compiled{cfg: c, byName: make(map[string]*field)}

	startExpr := c.Start.Regexp
	if startExpr == "" {
		startExpr = ".*"
	}
	var err error
	if out.start, err = anchored(engine, startExpr); err != nil {
		errs = append(errs, fmt.Errorf("start.regexp: %w", err))
	}
	if c.Exit.Regexp != "" {
		if out.exit, err = anchored(engine, c.Exit.Regexp); err != nil {
			errs = append(errs, fmt.Errorf("exit.regexp: %w", err))
		}
	}
	if c.DefaultField != nil {
		out.defaultValidate = c.DefaultField.ValidateMessage
	}

	for i, fc := range c.Fields {
		f := &field{FieldConfig: fc, index: i}
		if f.Name == "" {
			f.Name = fmt.Sprintf("field_%d", i)
		}
		if f.Question == "" {
			f.Question = f.Q
		}
		if f.Question == "" {
			errs = append(errs, fmt.Errorf("field %q: question is required", f.Name))
		}
		if _, dup := out.byName[f.Name]; dup {
			errs = append(errs, fmt.Errorf("field %q declared twice", f.Name))
		}
		expr := f.ValidateRegexp
		if expr == "" {
			expr = ".*"
		}
		if f.validate, err = anchored(engine, expr); err != nil {
			errs = append(errs, fmt.Errorf("field %q: validate_regexp: %w", f.Name, err))
		}
		if texts := f.optionTexts(); len(texts) > 0 {
			key := DefaultOptionsMatcher
			th := DefaultOptionsThreshold
			if f.OptionsMatcher != nil {
				if f.OptionsMatcher.Key != "" {
					key = f.OptionsMatcher.Key
				}
				if f.OptionsMatcher.Threshold != nil {
					th = *f.OptionsMatcher.Threshold
				}
			}
			m, err := matcher.New(key, matcher.WithThreshold(th))
			if err != nil {
				errs = append(errs, fmt.Errorf("field %q: %w", f.Name, err))
			} else if err := m.Fit(texts, texts); err != nil {
				errs = append(errs, fmt.Errorf("field %q: fit options: %w", f.Name, err))
			} else {
				f.matcher = m
			}
		}
		out.fields = append(out.fields, f)
		out.byName[f.Name] = f
	}

	for _, f := range out.fields {
		targets := []string{f.Next}
		for _, o := range f.allOptions() {
			targets = append(targets, o.Next)
		}
		for _, t := range targets {
			if _, ok := out.byName[t]; t != "" && !ok {
				errs = append(errs, fmt.Errorf("field %q: next field %q not found", f.Name, t))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("form: invalid config: %w", err)
	}
	return out, nil
}

func compile(c *Config) (*compiled, error) { return compileWith(c, matcher.StdEngine{}) }

// Option configures a [Manager].
type Option func(*Manager)

// WithOnComplete sets the hook called when the last field is answered.
func WithOnComplete(fn CompleteFunc) Option {
	return func(m *Manager) { m.onComplete = fn }
}

// WithEngine sets the regular expression engine. Default: [matcher.StdEngine].
func WithEngine(e matcher.Engine) Option {
	return func(m *Manager) { m.engine = e }
}

// Manager is a form-filling dialog manager. It is read-only after [New] and
// safe for concurrent use.
type Manager struct {
	c          *compiled
	engine     matcher.Engine
	onComplete CompleteFunc
}

// New validates cfg and fits the option matchers.
func New(cfg *Config, opts ...Option) (*Manager, error) {
	m := &Manager{engine: matcher.StdEngine{}}
	for _, o := range opts {
		o(m)
	}
	c, err := compileWith(cfg, m.engine)
	if err != nil {
		return nil, err
	}
	m.c = c
	return m, nil
}

// Name returns the form name.
func (m *Manager) Name() string { return m.c.cfg.FormName }

// State returns the stored progress of the form, or nil.
func (m *Manager) State(userObject map[string]any) map[string]any {
	forms, _ := userObject[KeyForms].(map[string]any)
	st, _ := forms[m.c.cfg.FormName].(map[string]any)
	return st
}

// Respond advances an active form or starts it when the message matches
// the start expression. It returns nil otherwise.
func (m *Manager) Respond(ctx context.Context, dc *dialog.Context) (*dialog.Response, error) {
	userObject := dc.State()
	normalized := textnorm.Normalize(dc.Text)
	state := m.State(userObject)

	if active, _ := state[keyActive].(bool); !active {
		if m.c.start.MatchString(normalized) {
			return m.Start(ctx, dc)
		}
		return nil, nil
	}
	state[keyName] = m.c.cfg.FormName

	if m.c.exit != nil && m.c.exit.MatchString(normalized) {
		state[keyActive] = false
		observe.Logger(ctx).Debug("form left", "form", m.Name())
		return m.reply(m.c.cfg.Exit.Message, nil, userObject), nil
	}

	qid := questionIndex(state[keyNextQuestion])
	if qid == introShown || qid >= len(m.c.fields) {
		state[keyNextQuestion] = 0
		return m.ask(0, state, userObject, false), nil
	}

	f := m.c.fields[qid]
	answer, ok := m.validate(f, dc.Text, normalized)
	if !ok {
		return m.ask(qid, state, userObject, true), nil
	}

	fields, _ := state[keyFields].(map[string]any)
	if fields == nil {
		fields = make(map[string]any)
		state[keyFields] = fields
	}
	if f.Multivalued {
		fields[f.Name] = append(values(fields[f.Name]), answer)
	} else {
		fields[f.Name] = answer
	}

	next := qid
	if f.ExitOption == nil || f.ExitOption.Text == answer {
		next++
	}
	if name := f.nextName(answer); name != "" {
		next = m.c.byName[name].index
	}

	if next >= len(m.c.fields) {
		delete(state, keyNextQuestion)
		state[keyActive] = false
		observe.Logger(ctx).Debug("form completed", "form", m.Name())
		if m.onComplete != nil {
			resp, err := m.onComplete(ctx, dialog.CloneObject(fields), dc)
			if err != nil {
				return nil, fmt.Errorf("form: complete %q: %w", m.Name(), err)
			}
			if resp != nil {
				if resp.UserObject == nil {
					resp.UserObject = userObject
				}
				return resp, nil
			}
		}
		return m.reply(m.c.cfg.Finish.Message, nil, userObject), nil
	}
	state[keyNextQuestion] = next
	return m.ask(next, state, userObject, false), nil
}

// Start activates the form from scratch and shows the introduction or the
// first question.
func (m *Manager) Start(ctx context.Context, dc *dialog.Context) (*dialog.Response, error) {
	userObject := dc.State()
	forms, ok := userObject[KeyForms].(map[string]any)
	if !ok {
		forms = make(map[string]any)
		userObject[KeyForms] = forms
	}
	state := map[string]any{
		keyFields:       map[string]any{},
		keyActive:       true,
		keyName:         m.c.cfg.FormName,
		keyNextQuestion: introShown,
	}
	forms[m.c.cfg.FormName] = state
	observe.Logger(ctx).Debug("form started", "form", m.Name())

	if m.c.cfg.Start.Message != "" {
		return m.reply(m.c.cfg.Start.Message, slices.Clone(m.c.cfg.Start.Suggests), userObject), nil
	}
	state[keyNextQuestion] = 0
	return m.ask(0, state, userObject, false), nil
}

// validate returns the accepted answer: the matched option text for fields
// with options, the raw text otherwise.
func (m *Manager) validate(f *field, raw, normalized string) (string, bool) {
	if f.matcher != nil {
		label, _, ok := matcher.Match(f.matcher, raw, true)
		return label, ok
	}
	if f.validate.MatchString(normalized) {
		return raw, true
	}
	return "", false
}

func (m *Manager) ask(qid int, state, userObject map[string]any, reask bool) *dialog.Response {
	f := m.c.fields[qid]
	text := f.Question
	if reask {
		switch {
		case f.ValidateMessage != "":
			text = f.ValidateMessage
		case m.c.defaultValidate != "":
			text = m.c.defaultValidate
		}
	}

	var suggests []string
	if options := f.optionTexts(); len(options) > 0 {
		suggests = options
		fields, _ := state[keyFields].(map[string]any)
		if prev := values(fields[f.Name]); f.Multivalued && len(prev) > 0 {
			suggests = slices.DeleteFunc(suggests, func(s string) bool {
				return slices.Contains(prev, s)
			})
			if f.RepeatedQuestion != "" && !reask {
				text = f.RepeatedQuestion
			}
		}
	} else if len(f.Suggests) > 0 {
		suggests = slices.Clone(f.Suggests)
	}
	if m.c.cfg.Exit.Suggest != "" {
		suggests = append(suggests, m.c.cfg.Exit.Suggest)
	}
	return m.reply(text, suggests, userObject)
}

func (m *Manager) reply(text string, suggests []string, userObject map[string]any) *dialog.Response {
	resp := dialog.NewResponse(text, suggests...)
	resp.UserObject = userObject
	resp.Label = m.c.cfg.FormName
	return resp
}

// values reads a multivalued answer, as stored or as decoded from JSON.
func values(v any) []string {
	switch x := v.(type) {
	case []string:
		return slices.Clone(x)
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{x}
	default:
		return nil
	}
}

// questionIndex reads next_question, which decodes as float64 from JSON.
func questionIndex(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return introShown
	}
}

package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dlclark/regexp2"
)

// Engine compiles regular expressions for the [Regex] matcher and for slot
// extraction.
type Engine interface {
	Compile(pattern string) (Pattern, error)
}

// Pattern is a compiled expression.
type Pattern interface {
	// MatchString reports whether the pattern matches text.
	MatchString(text string) bool

	// FindNamed returns the named capture groups of the first match.
	// Groups that did not participate in the match are omitted.
	FindNamed(text string) (groups map[string]string, ok bool)

	String() string
}

// StdEngine compiles RE2 expressions with the standard regexp package.
type StdEngine struct{}

var _ Engine = StdEngine{}

// Compile implements [Engine].
func (StdEngine) Compile(pattern string) (Pattern, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("matcher: compile %q: %w", pattern, err)
	}
	return stdPattern{re}, nil
}

type stdPattern struct{ re *regexp.Regexp }

func (p stdPattern) MatchString(text string) bool { return p.re.MatchString(text) }
func (p stdPattern) String() string               { return p.re.String() }

func (p stdPattern) FindNamed(text string) (map[string]string, bool) {
	idx := p.re.FindStringSubmatchIndex(text)
	if idx == nil {
		return nil, false
	}
	groups := make(map[string]string)
	for i, name := range p.re.SubexpNames() {
		if name == "" || idx[2*i] < 0 {
			continue
		}
		groups[name] = text[idx[2*i]:idx[2*i+1]]
	}
	return groups, true
}

// Regexp2Engine compiles .NET-style expressions with
// github.com/dlclark/regexp2, which adds lookaround and backreferences.
type Regexp2Engine struct {
	// Options are passed to regexp2.Compile.
	Options regexp2.RegexOptions
	// Timeout bounds a single match; zero means no limit.
	Timeout time.Duration
}

var _ Engine = Regexp2Engine{}

// Compile implements [Engine].
func (e Regexp2Engine) Compile(pattern string) (Pattern, error) {
	re, err := regexp2.Compile(pattern, e.Options)
	if err != nil {
		return nil, fmt.Errorf("matcher: compile %q: %w", pattern, err)
	}
	if e.Timeout > 0 {
		re.MatchTimeout = e.Timeout
	}
	return regexp2Pattern{re}, nil
}

type regexp2Pattern struct{ re *regexp2.Regexp }

func (p regexp2Pattern) String() string { return p.re.String() }

// MatchString implements [Pattern]; a match timeout counts as no match.
func (p regexp2Pattern) MatchString(text string) bool {
	ok, err := p.re.MatchString(text)
	return err == nil && ok
}

func (p regexp2Pattern) FindNamed(text string) (map[string]string, bool) {
	m, err := p.re.FindStringMatch(text)
	if err != nil || m == nil {
		return nil, false
	}
	groups := make(map[string]string)
	for _, name := range p.re.GetGroupNames() {
		if _, err := strconv.Atoi(name); err == nil {
			continue // numbered group
		}
		g := m.GroupByName(name)
		if g == nil || len(g.Captures) == 0 {
			continue
		}
		groups[name] = g.String()
	}
	return groups, true
}

// EngineByName returns the engine registered under name: "re" or "" for
// [StdEngine], "regexp2" or "regex" for [Regexp2Engine].
func EngineByName(name string) (Engine, error) {
	switch name {
	case "", "re", "std":
		return StdEngine{}, nil
	case "regexp2", "regex":
		return Regexp2Engine{Timeout: time.Second}, nil
	default:
		return nil, fmt.Errorf("%w: regex engine %q", ErrUnknownMatcher, name)
	}
}

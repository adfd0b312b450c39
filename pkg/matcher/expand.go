package matcher

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)\s*\}\}`)

// Expressions maps reusable expression names to regex fragments, referenced
// from patterns as {{NAME}}.
type Expressions map[string]string

// ExpandRegex replaces every {{NAME}} in pattern with the parenthesized
// expression NAME. Unknown names are an error.
func ExpandRegex(pattern string, expressions Expressions) (string, error) {
	var errs []error
	out := placeholder.ReplaceAllStringFunc(pattern, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		expr, ok := expressions[name]
		if !ok {
			errs = append(errs, fmt.Errorf("matcher: unknown expression %q", name))
			return m
		}
		return "(" + expr + ")"
	})
	return out, errors.Join(errs...)
}

// Resolve expands references between expressions so that every value is
// free of placeholders. Cyclic references are an error.
func (e Expressions) Resolve() (Expressions, error) {
	out := make(Expressions, len(e))
	state := make(map[string]int) // 1 = resolving, 2 = done
	var resolve func(name string) (string, error)
	resolve = func(name string) (string, error) {
		switch state[name] {
		case 1:
			return "", fmt.Errorf("matcher: cyclic expression %q", name)
		case 2:
			return out[name], nil
		}
		raw, ok := e[name]
		if !ok {
			return "", fmt.Errorf("matcher: unknown expression %q", name)
		}
		state[name] = 1
		var err error
		expanded := placeholder.ReplaceAllStringFunc(raw, func(m string) string {
			if err != nil {
				return m
			}
			ref := placeholder.FindStringSubmatch(m)[1]
			var v string
			v, err = resolve(ref)
			return "(" + v + ")"
		})
		if err != nil {
			return "", err
		}
		state[name] = 2
		out[name] = expanded
		return expanded, nil
	}
	for name := range e {
		if _, err := resolve(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadExpressions reads and resolves a YAML mapping of expressions.
func LoadExpressions(path string) (Expressions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("matcher: read expressions %q: %w", path, err)
	}
	var raw Expressions
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("matcher: decode expressions %q: %w", path, err)
	}
	return raw.Resolve()
}

// ExpandIntents expands the expressions of every intent pattern in place.
func ExpandIntents(intents map[string]Intent, expressions Expressions) error {
	if len(expressions) == 0 {
		return nil
	}
	var errs []error
	for name, in := range intents {
		for i, p := range in.Regexp {
			expanded, err := ExpandRegex(p, expressions)
			if err != nil {
				errs = append(errs, fmt.Errorf("intent %q: %w", name, err))
				continue
			}
			in.Regexp[i] = expanded
		}
	}
	return errors.Join(errs...)
}

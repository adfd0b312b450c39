package cascade

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// checkerEnv declares the variables a checker expression can read.
func checkerEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("intents", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("forms", cel.MapType(cel.StringType, cel.MapType(cel.StringType, cel.StringType))),
		cel.Variable("stage", cel.StringType),
		cel.Variable("new_session", cel.BoolType),
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// CompileChecker compiles a CEL expression into a checker. The expression
// must evaluate to a bool and may read:
//
//	text         normalized utterance
//	intents      map of intent scores
//	forms        map of intent slots
//	stage        stage before this turn
//	new_session  whether the session just started
//	user         stored user object
//
// For example: `"weather" in intents && intents["weather"] > 0.7`.
// Evaluation errors make the checker report false.
func CompileChecker(expr string) (CheckerFunc, error) {
	env, err := checkerEnv()
	if err != nil {
		return nil, fmt.Errorf("cascade: create checker environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cascade: invalid checker %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("cascade: checker %q returns %s, want bool", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cascade: build checker %q: %w", expr, err)
	}

	return func(t *Turn) bool {
		user := t.Ctx.UserObject
		if user == nil {
			user = map[string]any{}
		}
		out, _, err := prg.Eval(map[string]any{
			"text":        t.Text,
			"intents":     t.Intents,
			"forms":       t.Forms,
			"stage":       t.Stage(),
			"new_session": t.Ctx.SessionIsNew,
			"user":        user,
		})
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}

package rules

import "fmt"

// SyntaxError reports a rule string that does not parse as the grammar.
type SyntaxError struct {
	Rule string
	Pos  int
	Msg  string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("rules: syntax error at position %d in %q: %s", e.Pos, e.Rule, e.Msg)
}

// EvaluationError reports a compiled rule that cannot be evaluated against
// a given frame (a required column is absent and cannot be derived).
type EvaluationError struct {
	Rule string
	Msg  string
}

func (e EvaluationError) Error() string {
	return fmt.Sprintf("rules: cannot evaluate %q: %s", e.Rule, e.Msg)
}

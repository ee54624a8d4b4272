package rules

import (
	"fmt"
	"math"
	"strings"

	"rulebacktest/services/series"
)

// Rule is a compiled condition. It is immutable and safe to evaluate against
// any number of frames.
type Rule struct {
	source string
	root   node
}

// Source returns the original rule string.
func (r *Rule) Source() string { return r.source }

// Eval evaluates the rule against a frame and returns one boolean per bar.
// Bars where any referenced indicator has insufficient history evaluate to
// false rather than erroring; division by zero follows IEEE semantics, so
// 0/0 inside a comparison also yields false.
func (r *Rule) Eval(f *series.Frame) ([]bool, error) {
	ev := &evaluator{rule: r, frame: f, cache: make(map[string][]float64)}
	return ev.evalBool(r.root)
}

type evaluator struct {
	rule  *Rule
	frame *series.Frame
	cache map[string][]float64
}

// numValue is either a scalar literal or a per-bar series.
type numValue struct {
	scalar float64
	series []float64
}

func (v numValue) at(i int) float64 {
	if v.series == nil {
		return v.scalar
	}
	return v.series[i]
}

func (ev *evaluator) evalBool(n node) ([]bool, error) {
	switch t := n.(type) {
	case notNode:
		child, err := ev.evalBool(t.child)
		if err != nil {
			return nil, err
		}
		out := make([]bool, len(child))
		for i, b := range child {
			out[i] = !b
		}
		return out, nil
	case binaryNode:
		switch t.op {
		case opAnd, opOr:
			left, err := ev.evalBool(t.left)
			if err != nil {
				return nil, err
			}
			right, err := ev.evalBool(t.right)
			if err != nil {
				return nil, err
			}
			out := make([]bool, len(left))
			for i := range out {
				if t.op == opAnd {
					out[i] = left[i] && right[i]
				} else {
					out[i] = left[i] || right[i]
				}
			}
			return out, nil
		default:
			return ev.evalComparison(t)
		}
	}
	return nil, EvaluationError{Rule: ev.rule.source, Msg: "internal: non-boolean root"}
}

func (ev *evaluator) evalComparison(n binaryNode) ([]bool, error) {
	left, err := ev.evalNum(n.left)
	if err != nil {
		return nil, err
	}
	right, err := ev.evalNum(n.right)
	if err != nil {
		return nil, err
	}
	out := make([]bool, ev.frame.Len())
	for i := range out {
		a, b := left.at(i), right.at(i)
		if math.IsNaN(a) || math.IsNaN(b) {
			continue // insufficient history never matches
		}
		switch n.op {
		case opLT:
			out[i] = a < b
		case opLE:
			out[i] = a <= b
		case opGT:
			out[i] = a > b
		case opGE:
			out[i] = a >= b
		case opEQ:
			out[i] = a == b
		case opNE:
			out[i] = a != b
		}
	}
	return out, nil
}

func (ev *evaluator) evalNum(n node) (numValue, error) {
	switch t := n.(type) {
	case numberNode:
		return numValue{scalar: t.value}, nil
	case negNode:
		v, err := ev.evalNum(t.child)
		if err != nil {
			return numValue{}, err
		}
		if v.series == nil {
			return numValue{scalar: -v.scalar}, nil
		}
		out := make([]float64, len(v.series))
		for i, x := range v.series {
			out[i] = -x
		}
		return numValue{series: out}, nil
	case callNode:
		s, err := ev.resolve(t)
		if err != nil {
			return numValue{}, err
		}
		return numValue{series: s}, nil
	case binaryNode:
		left, err := ev.evalNum(t.left)
		if err != nil {
			return numValue{}, err
		}
		right, err := ev.evalNum(t.right)
		if err != nil {
			return numValue{}, err
		}
		if left.series == nil && right.series == nil {
			return numValue{scalar: applyArith(t.op, left.scalar, right.scalar)}, nil
		}
		out := make([]float64, ev.frame.Len())
		for i := range out {
			out[i] = applyArith(t.op, left.at(i), right.at(i))
		}
		return numValue{series: out}, nil
	}
	return numValue{}, EvaluationError{Rule: ev.rule.source, Msg: "internal: unexpected node"}
}

func applyArith(op binaryOp, a, b float64) float64 {
	switch op {
	case opAdd:
		return a + b
	case opSub:
		return a - b
	case opMul:
		return a * b
	default:
		return a / b
	}
}

// resolve maps an accessor call to a column: a matching pre-computed column
// wins, otherwise the built-in fallback formula derives it. Results are
// cached per evaluation.
func (ev *evaluator) resolve(c callNode) ([]float64, error) {
	key := callKey(c)
	if s, ok := ev.cache[key]; ok {
		return s, nil
	}
	if col := c.fn.column(c.args); col != "" {
		if s, ok := ev.frame.Column(col); ok {
			ev.cache[key] = s
			return s, nil
		}
	}
	if c.fn.derive == nil {
		return nil, EvaluationError{Rule: ev.rule.source,
			Msg: fmt.Sprintf("column %s not present in table", c.fn.column(c.args))}
	}
	s := c.fn.derive(ev.frame, c.args)
	ev.cache[key] = s
	return s, nil
}

func callKey(c callNode) string {
	var b strings.Builder
	b.WriteString(c.fn.name)
	for _, a := range c.args {
		fmt.Fprintf(&b, ",%g", a)
	}
	return b.String()
}

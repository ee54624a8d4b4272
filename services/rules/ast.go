package rules

// Tagged-variant AST nodes. Built once per rule string, immutable, reused
// for every evaluation.

type binaryOp int

const (
	opAnd binaryOp = iota
	opOr
	opLT
	opLE
	opGT
	opGE
	opEQ
	opNE
	opAdd
	opSub
	opMul
	opDiv
)

type node interface {
	// boolean reports whether the node yields a truth series (logical or
	// comparison) rather than a numeric one.
	boolean() bool
}

type numberNode struct{ value float64 }

// callNode is a named accessor invocation, e.g. sma(50) or bare close.
type callNode struct {
	fn   *function
	args []float64
}

type binaryNode struct {
	op          binaryOp
	left, right node
}

type notNode struct{ child node }

type negNode struct{ child node }

func (numberNode) boolean() bool { return false }
func (callNode) boolean() bool   { return false }
func (negNode) boolean() bool    { return false }
func (notNode) boolean() bool    { return true }

func (n binaryNode) boolean() bool {
	switch n.op {
	case opAdd, opSub, opMul, opDiv:
		return false
	default:
		return true
	}
}

package rules

import "strconv"

// Recursive-descent parser for the closed rule grammar:
//
//	rule       := or
//	or         := and { "or" and }
//	and        := unary { "and" unary }
//	unary      := "not" unary | comparison
//	comparison := sum [ ("<"|"<="|">"|">="|"=="|"!=") sum ]
//	sum        := product { ("+"|"-") product }
//	product    := atom { ("*"|"/") atom }
//	atom       := number | accessor | "-" atom | "(" or ")"
//	accessor   := ident [ "(" [number {"," number}] ")" ]
//
// The raw string is never handed to a general-purpose evaluator; only the
// grammar above is interpreted.
type parser struct {
	rule string
	toks []token
	pos  int
}

// Compile parses a rule string into an immutable, reusable evaluator.
func Compile(rule string) (*Rule, error) {
	toks, err := lex(rule)
	if err != nil {
		return nil, err
	}
	p := &parser{rule: rule, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, SyntaxError{Rule: rule, Pos: tok.pos, Msg: "unexpected " + tok.text}
	}
	if !root.boolean() {
		return nil, SyntaxError{Rule: rule, Pos: 0, Msg: "rule must be a condition, not a bare value"}
	}
	return &Rule{source: rule, root: root}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if err := p.wantBoolean(left, right, "or"); err != nil {
			return nil, err
		}
		left = binaryNode{op: opOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if err := p.wantBoolean(left, right, "and"); err != nil {
			return nil, err
		}
		left = binaryNode{op: opAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokNot {
		tok := p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if !child.boolean() {
			return nil, SyntaxError{Rule: p.rule, Pos: tok.pos, Msg: "'not' needs a condition operand"}
		}
		return notNode{child: child}, nil
	}
	return p.parseComparison()
}

var compOps = map[tokenKind]binaryOp{
	tokLT: opLT, tokLE: opLE, tokGT: opGT, tokGE: opGE, tokEQ: opEQ, tokNE: opNE,
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	op, ok := compOps[p.peek().kind]
	if !ok {
		return left, nil
	}
	tok := p.next()
	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if left.boolean() || right.boolean() {
		return nil, SyntaxError{Rule: p.rule, Pos: tok.pos, Msg: "comparison needs numeric operands"}
	}
	return binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		var op binaryOp
		switch p.peek().kind {
		case tokPlus:
			op = opAdd
		case tokMinus:
			op = opSub
		default:
			return left, nil
		}
		tok := p.next()
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		if left.boolean() || right.boolean() {
			return nil, SyntaxError{Rule: p.rule, Pos: tok.pos, Msg: "arithmetic needs numeric operands"}
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseProduct() (node, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		var op binaryOp
		switch p.peek().kind {
		case tokStar:
			op = opMul
		case tokSlash:
			op = opDiv
		default:
			return left, nil
		}
		tok := p.next()
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		if left.boolean() || right.boolean() {
			return nil, SyntaxError{Rule: p.rule, Pos: tok.pos, Msg: "arithmetic needs numeric operands"}
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseAtom() (node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNumber:
		p.next()
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, SyntaxError{Rule: p.rule, Pos: tok.pos, Msg: "malformed number " + tok.text}
		}
		return numberNode{value: v}, nil
	case tokMinus:
		p.next()
		child, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		if child.boolean() {
			return nil, SyntaxError{Rule: p.rule, Pos: tok.pos, Msg: "negation needs a numeric operand"}
		}
		return negNode{child: child}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, SyntaxError{Rule: p.rule, Pos: closing.pos, Msg: "missing ')'"}
		}
		return inner, nil
	case tokIdent:
		return p.parseAccessor()
	case tokEOF:
		return nil, SyntaxError{Rule: p.rule, Pos: tok.pos, Msg: "unexpected end of rule"}
	default:
		return nil, SyntaxError{Rule: p.rule, Pos: tok.pos, Msg: "unexpected " + tok.text}
	}
}

// parseAccessor handles both call syntax (sma(50)) and bare accessor names
// (close, rsi) which act as zero-argument calls.
func (p *parser) parseAccessor() (node, error) {
	tok := p.next()
	fn, ok := functions[tok.text]
	if !ok {
		return nil, SyntaxError{Rule: p.rule, Pos: tok.pos, Msg: "unknown function " + tok.text}
	}
	var args []float64
	if p.peek().kind == tokLParen {
		p.next()
		for p.peek().kind != tokRParen {
			argTok := p.next()
			neg := false
			if argTok.kind == tokMinus {
				neg = true
				argTok = p.next()
			}
			if argTok.kind != tokNumber {
				return nil, SyntaxError{Rule: p.rule, Pos: argTok.pos, Msg: "function arguments must be numeric literals"}
			}
			v, err := strconv.ParseFloat(argTok.text, 64)
			if err != nil {
				return nil, SyntaxError{Rule: p.rule, Pos: argTok.pos, Msg: "malformed number " + argTok.text}
			}
			if neg {
				v = -v
			}
			args = append(args, v)
			if p.peek().kind == tokComma {
				p.next()
			} else if p.peek().kind != tokRParen {
				return nil, SyntaxError{Rule: p.rule, Pos: p.peek().pos, Msg: "expected ',' or ')'"}
			}
		}
		p.next() // consume ')'
	}
	full, err := fn.checkArgs(args, p.rule, tok.pos)
	if err != nil {
		return nil, err
	}
	return callNode{fn: fn, args: full}, nil
}

func (p *parser) wantBoolean(left, right node, op string) error {
	if !left.boolean() || !right.boolean() {
		return SyntaxError{Rule: p.rule, Pos: 0, Msg: "'" + op + "' needs condition operands"}
	}
	return nil
}

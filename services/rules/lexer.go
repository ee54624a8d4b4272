package rules

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokLT
	tokLE
	tokGT
	tokGE
	tokEQ
	tokNE
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits a rule string into tokens. Keywords and function names are
// case-insensitive and lowered here.
func lex(rule string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(rule) {
		c := rule[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '+':
			toks = append(toks, token{tokPlus, "+", i})
			i++
		case c == '-':
			toks = append(toks, token{tokMinus, "-", i})
			i++
		case c == '*':
			toks = append(toks, token{tokStar, "*", i})
			i++
		case c == '/':
			toks = append(toks, token{tokSlash, "/", i})
			i++
		case c == '<':
			if i+1 < len(rule) && rule[i+1] == '=' {
				toks = append(toks, token{tokLE, "<=", i})
				i += 2
			} else {
				toks = append(toks, token{tokLT, "<", i})
				i++
			}
		case c == '>':
			if i+1 < len(rule) && rule[i+1] == '=' {
				toks = append(toks, token{tokGE, ">=", i})
				i += 2
			} else {
				toks = append(toks, token{tokGT, ">", i})
				i++
			}
		case c == '=':
			if i+1 < len(rule) && rule[i+1] == '=' {
				toks = append(toks, token{tokEQ, "==", i})
				i += 2
			} else {
				return nil, SyntaxError{Rule: rule, Pos: i, Msg: "single '=' (use '==')"}
			}
		case c == '!':
			if i+1 < len(rule) && rule[i+1] == '=' {
				toks = append(toks, token{tokNE, "!=", i})
				i += 2
			} else {
				return nil, SyntaxError{Rule: rule, Pos: i, Msg: "unexpected '!'"}
			}
		case c >= '0' && c <= '9' || c == '.':
			start := i
			seenDot := false
			for i < len(rule) && (rule[i] >= '0' && rule[i] <= '9' || rule[i] == '.') {
				if rule[i] == '.' {
					if seenDot {
						return nil, SyntaxError{Rule: rule, Pos: i, Msg: "malformed number"}
					}
					seenDot = true
				}
				i++
			}
			toks = append(toks, token{tokNumber, rule[start:i], start})
		case isIdentStart(rune(c)):
			start := i
			for i < len(rule) && isIdentPart(rune(rule[i])) {
				i++
			}
			word := strings.ToLower(rule[start:i])
			switch word {
			case "and":
				toks = append(toks, token{tokAnd, word, start})
			case "or":
				toks = append(toks, token{tokOr, word, start})
			case "not":
				toks = append(toks, token{tokNot, word, start})
			default:
				toks = append(toks, token{tokIdent, word, start})
			}
		default:
			return nil, SyntaxError{Rule: rule, Pos: i, Msg: "unexpected character " + string(c)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(rule)})
	return toks, nil
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' }
func isIdentPart(r rune) bool  { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

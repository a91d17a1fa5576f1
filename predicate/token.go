package predicate

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

// tokenize breaks a predicate source string into tokens, the way the
// teacher's tokenizeWhereClause breaks a WHERE clause into fields,
// operators, and values, but generalized to arbitrary boolean/arithmetic
// expressions instead of a flat field-op-value triple.
func tokenize(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '"' || c == '\'':
			quote := c
			j := i + 1
			var b strings.Builder
			for j < len(runes) && runes[j] != quote {
				b.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("predicate: unterminated string literal starting at %d", i)
			}
			toks = append(toks, token{tokString, b.String()})
			i = j + 1
		case unicode.IsDigit(c):
			j := i
			isFloat := false
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				if runes[j] == '.' {
					isFloat = true
				}
				j++
			}
			text := string(runes[i:j])
			if isFloat {
				toks = append(toks, token{tokFloat, text})
			} else {
				toks = append(toks, token{tokInt, text})
			}
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, string(runes[i:j])})
			i = j
		default:
			// Operators: <= >= == != <> and single-char < > + - * / %
			two := ""
			if i+1 < len(runes) {
				two = string(runes[i : i+2])
			}
			switch two {
			case "<=", ">=", "==", "!=", "<>":
				toks = append(toks, token{tokOp, two})
				i += 2
				continue
			}
			switch c {
			case '<', '>', '+', '-', '*', '/', '%':
				toks = append(toks, token{tokOp, string(c)})
				i++
			default:
				return nil, fmt.Errorf("predicate: unexpected character %q at %d", c, i)
			}
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

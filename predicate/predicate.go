// Package predicate compiles a textual predicate or expression into a
// callable bound against a relalg.Row plus a fallback Namespace, the
// way spec.md §4.4/§9 describes: "a parsed AST bound to a source
// string... free variables resolve against the relation's header first
// and the expression namespace second." Any error during evaluation is
// reported to the caller rather than swallowed into False, so the
// catalog can decide how to surface it (spec.md's coerce-to-boolean but
// preserve-the-cause rule lives one layer up, in catalog).
package predicate

import (
	"fmt"

	"github.com/bitdancer/reldb/relalg"
)

// Predicate is a compiled, re-evaluable boolean expression together with
// the source text it must round-trip to when persisted (§4.1, §9).
type Predicate struct {
	Source string
	ast    expr
}

// Compile parses src into a Predicate. It does not evaluate anything;
// evaluation happens per-row via Eval.
func Compile(src string) (*Predicate, error) {
	ast, err := parse(src)
	if err != nil {
		return nil, fmt.Errorf("predicate: %q: %w", src, err)
	}
	return &Predicate{Source: src, ast: ast}, nil
}

// Eval evaluates the predicate against row, with ns providing fallback
// bindings for names row does not itself carry. Any evaluation error
// (undefined name, type mismatch, division by zero, ...) is returned
// rather than coerced to false, per spec.md §4.4 — callers that want the
// "any exception is False, but the cause must surface" behavior should
// treat a non-nil error as a violation whose message names the cause.
func (p *Predicate) Eval(row relalg.Row, ns Namespace) (bool, error) {
	v, err := p.ast.eval(&evalCtx{row: row, ns: ns})
	if err != nil {
		return false, err
	}
	b, ok := unwrap(v).(bool)
	if !ok {
		return false, fmt.Errorf("predicate: %q did not evaluate to a boolean (got %T)", p.Source, v)
	}
	return b, nil
}

// Expression is a compiled non-boolean expression, used for the
// right-hand sides of update/extend attribute assignments.
type Expression struct {
	Source string
	ast    expr
}

// CompileExpression parses src as a value-producing expression.
func CompileExpression(src string) (*Expression, error) {
	ast, err := parse(src)
	if err != nil {
		return nil, fmt.Errorf("predicate: %q: %w", src, err)
	}
	return &Expression{Source: src, ast: ast}, nil
}

// Eval evaluates the expression, returning a relalg.Value. Plain Go
// scalars produced by arithmetic are wrapped into the corresponding
// built-in relalg type.
func (e *Expression) Eval(row relalg.Row, ns Namespace) (relalg.Value, error) {
	v, err := e.ast.eval(&evalCtx{row: row, ns: ns})
	if err != nil {
		return nil, err
	}
	return wrapValue(v)
}

func wrapValue(v interface{}) (relalg.Value, error) {
	switch t := v.(type) {
	case relalg.Value:
		return t, nil
	case string:
		return relalg.String(t), nil
	case int64:
		return relalg.Int(t), nil
	case float64:
		return relalg.Float(t), nil
	case bool:
		return relalg.Bool(t), nil
	default:
		return nil, fmt.Errorf("predicate: cannot represent %T as a relation value", v)
	}
}

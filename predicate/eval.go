package predicate

import (
	"fmt"

	"github.com/bitdancer/reldb/relalg"
)

// Namespace is the process-level (or, per §9's redesign note, database-
// scoped) mapping from identifier to value that constraint and algebra
// expressions may fall back to when a name is not one of the row's own
// attributes: user-registered domain constructors, named constants, and
// (inside an open transaction) the bare names of other persistent
// relations.
type Namespace map[string]relalg.Value

type evalCtx struct {
	row relalg.Row
	ns  Namespace
}

func (c *evalCtx) lookup(name string) (relalg.Value, bool) {
	if v, ok := c.row.Get(name); ok {
		return v, true
	}
	if c.ns != nil {
		if v, ok := c.ns[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *litExpr) eval(ctx *evalCtx) (interface{}, error) { return e.v, nil }

func (e *identExpr) eval(ctx *evalCtx) (interface{}, error) {
	v, ok := ctx.lookup(e.name)
	if !ok {
		return nil, fmt.Errorf("predicate: undefined name %q", e.name)
	}
	return v, nil
}

func (e *callExpr) eval(ctx *evalCtx) (interface{}, error) {
	args := make([]interface{}, len(e.args))
	for i, a := range e.args {
		v, err := a.eval(ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if e.name == "__list" {
		return args, nil
	}
	fn, ok := ctx.lookup(e.name)
	if !ok {
		return nil, fmt.Errorf("predicate: undefined function %q", e.name)
	}
	callable, ok := fn.(Callable)
	if !ok {
		return nil, fmt.Errorf("predicate: %q is not callable", e.name)
	}
	return callable.Call(args)
}

// Callable lets a Namespace entry act as a user-defined type constructor
// or function reachable from predicate/extend expressions (e.g. CID(...)).
type Callable interface {
	relalg.Value
	Call(args []interface{}) (relalg.Value, error)
}

func (e *unaryExpr) eval(ctx *evalCtx) (interface{}, error) {
	v, err := e.x.eval(ctx)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case "not":
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case "-":
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return -f, nil
	}
	return nil, fmt.Errorf("predicate: unknown unary operator %q", e.op)
}

func (e *binaryExpr) eval(ctx *evalCtx) (interface{}, error) {
	switch e.op {
	case "and":
		x, err := e.x.eval(ctx)
		if err != nil {
			return nil, err
		}
		xb, err := toBool(x)
		if err != nil {
			return nil, err
		}
		if !xb {
			return false, nil
		}
		y, err := e.y.eval(ctx)
		if err != nil {
			return nil, err
		}
		return toBool(y)
	case "or":
		x, err := e.x.eval(ctx)
		if err != nil {
			return nil, err
		}
		xb, err := toBool(x)
		if err != nil {
			return nil, err
		}
		if xb {
			return true, nil
		}
		y, err := e.y.eval(ctx)
		if err != nil {
			return nil, err
		}
		return toBool(y)
	}
	x, err := e.x.eval(ctx)
	if err != nil {
		return nil, err
	}
	y, err := e.y.eval(ctx)
	if err != nil {
		return nil, err
	}
	return applyBinary(e.op, x, y)
}

func (e *chainExpr) eval(ctx *evalCtx) (interface{}, error) {
	vals := make([]interface{}, len(e.operands))
	for i, o := range e.operands {
		v, err := o.eval(ctx)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	for i, op := range e.ops {
		ok, err := applyBinary(op, vals[i], vals[i+1])
		if err != nil {
			return nil, err
		}
		b, err := toBool(ok)
		if err != nil {
			return nil, err
		}
		if !b {
			return false, nil
		}
	}
	return true, nil
}

func applyBinary(op string, x, y interface{}) (interface{}, error) {
	switch op {
	case "+", "-", "*", "/", "%":
		return arith(op, x, y)
	case "<", "<=", ">", ">=", "==", "!=", "<>":
		return compare(op, x, y)
	case "in":
		return evalIn(x, y)
	case "not in":
		found, err := evalIn(x, y)
		if err != nil {
			return nil, err
		}
		return !found.(bool), nil
	default:
		return nil, fmt.Errorf("predicate: unknown operator %q", op)
	}
}

// evalIn implements both sides of the 'in'/'not in' operators. The
// right side is either a literal list, built from __list, or a relation
// bound into the namespace by its bare name (§4.6) — the mechanism
// cross-relation row constraints use, e.g. `sid in Students` checking
// membership against a single-attribute relation, in place of the
// original's _key_relname binding.
func evalIn(x, y interface{}) (interface{}, error) {
	switch t := y.(type) {
	case []interface{}:
		return memberOf(x, t)
	case relalg.RelationValue:
		return relationMembership(x, t.Relation)
	default:
		return nil, fmt.Errorf("predicate: right side of 'in' must be a list or relation")
	}
}

func relationMembership(x interface{}, rel relalg.Relation) (interface{}, error) {
	names := rel.Header().Names()
	if len(names) != 1 {
		return nil, fmt.Errorf("predicate: 'in' against a relation requires exactly one attribute, got %d", len(names))
	}
	xv, ok := x.(relalg.Value)
	if !ok {
		return nil, fmt.Errorf("predicate: left side of 'in' must be a value")
	}
	for _, row := range rel.Rows() {
		if row.MustGet(names[0]).Equal(xv) {
			return true, nil
		}
	}
	return false, nil
}

func memberOf(x interface{}, list []interface{}) (interface{}, error) {
	for _, item := range list {
		eq, err := compare("==", x, item)
		if err != nil {
			return nil, err
		}
		if eq.(bool) {
			return true, nil
		}
	}
	return false, nil
}

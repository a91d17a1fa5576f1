// Package relalg is the in-memory relational algebra kernel: headers,
// rows, relations, and the small set of operators the database layer
// builds on (union, project, rename, join, where, extend, matching,
// compute). It has no notion of persistence, constraints, or
// transactions — those live in catalog and txn.
package relalg

import "fmt"

// Value is an attribute value that can sit in a Row. Built-in scalars
// (String, Int, Bool, Float) and user-registered domain types (a CID or SID in
// the tutorial scenarios) both implement it.
type Value interface {
	// TypeTag is the stable, comparable identifier used when checking
	// that a value belongs to a header's declared attribute type.
	TypeTag() string
	// Equal reports structural equality against another Value of the
	// same TypeTag.
	Equal(other Value) bool
	// String renders the value canonically; Row and Relation use it to
	// build the sorted composite keys that make set membership and
	// hashing well defined without a reflect-based hash function.
	String() string
}

// String is the built-in scalar type for text attributes.
type String string

func (s String) TypeTag() string { return "string" }
func (s String) Equal(o Value) bool {
	os, ok := o.(String)
	return ok && s == os
}
func (s String) String() string { return string(s) }

// Int is the built-in scalar type for integer attributes.
type Int int64

func (i Int) TypeTag() string { return "int" }
func (i Int) Equal(o Value) bool {
	oi, ok := o.(Int)
	return ok && i == oi
}
func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }

// Bool is the built-in scalar type for boolean attributes.
type Bool bool

func (b Bool) TypeTag() string { return "bool" }
func (b Bool) Equal(o Value) bool {
	ob, ok := o.(Bool)
	return ok && b == ob
}
func (b Bool) String() string { return fmt.Sprintf("%t", bool(b)) }

// Float is the built-in scalar type for floating point attributes.
type Float float64

func (f Float) TypeTag() string { return "float" }
func (f Float) Equal(o Value) bool {
	of, ok := o.(Float)
	return ok && f == of
}
func (f Float) String() string { return fmt.Sprintf("%v", float64(f)) }

// RelationValue lets a persistent relation be bound into an expression
// namespace under its own bare name, so a predicate or expression
// evaluated inside a transaction can reference another relation
// directly (spec.md §4.6's transaction-scoped namespace augmentation).
// String is promoted from the embedded Relation; TypeTag and Equal are
// given their own definitions since Relation's Equal takes a Relation,
// not a Value.
type RelationValue struct {
	Relation
}

func (v RelationValue) TypeTag() string { return "relation" }
func (v RelationValue) Equal(o Value) bool {
	ov, ok := o.(RelationValue)
	return ok && v.Relation.Equal(ov.Relation)
}

// Package errs defines the error kinds the database layer can raise.
//
// catalog, txn, and reldb report each condition listed below as an
// *Error so callers can switch on Kind instead of matching strings.
// Other failures (a where clause or expression that does not parse, a
// key that names attributes outside the header, a store read error while
// loading) are returned as plain wrapped errors.
package errs

import "fmt"

// Kind identifies one of the error conditions spec.md §7 names.
type Kind string

const (
	Disconnected             Kind = "disconnected"
	NameInvalid              Kind = "name-invalid"
	UnknownRelation          Kind = "unknown-relation"
	UnknownConstraint        Kind = "unknown-constraint"
	HeaderMismatch           Kind = "header-mismatch"
	TypeMismatch             Kind = "type-mismatch"
	RowConstraintViolated    Kind = "row-constraint-violated"
	KeyViolated              Kind = "key-violated"
	PredicateNotSerializable Kind = "predicate-not-serializable"
	CommitFailed             Kind = "commit-failed"
	ConstraintLoop           Kind = "constraint-loop"
)

// Error is the concrete error type returned for every Kind above.
type Error struct {
	Kind Kind
	// RelName is the relation the error concerns, when applicable.
	RelName string
	// Constraint is the offending row-constraint name, for RowConstraintViolated.
	Constraint string
	// Predicate is the offending predicate source, for RowConstraintViolated.
	Predicate string
	// Row is a string rendering of the offending row, for RowConstraintViolated and KeyViolated.
	Row string
	// KeyAttrs is the declared key, for KeyViolated.
	KeyAttrs []string
	// Msg is a free-form human-readable explanation.
	Msg string
	// Wrapped is the underlying cause, if any.
	Wrapped error
}

func (e *Error) Error() string {
	switch e.Kind {
	case RowConstraintViolated:
		return fmt.Sprintf("%s constraint %s violated: %q is not satisfied by %s",
			e.RelName, e.Constraint, e.Predicate, e.Row)
	case KeyViolated:
		return fmt.Sprintf("%s key %v violated by row %s", e.RelName, e.KeyAttrs, e.Row)
	default:
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
		}
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is lets errors.Is(err, errs.Sentinel(errs.KeyViolated)) work by
// matching Kind against a bare *Error that carries only that Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a bare *Error carrying only Kind, suitable for errors.Is comparisons.
func Sentinel(k Kind) *Error { return &Error{Kind: k} }

func Disconnectedf(relOrDB string) *Error {
	return &Error{Kind: Disconnected, RelName: relOrDB, Msg: "database or handle is closed"}
}

func NameInvalidf(name string) *Error {
	return &Error{Kind: NameInvalid, RelName: name, Msg: fmt.Sprintf("invalid relation name %q", name)}
}

func UnknownRelationf(name string) *Error {
	return &Error{Kind: UnknownRelation, RelName: name, Msg: fmt.Sprintf("no such relation %q", name)}
}

func UnknownConstraintf(relName, cname string) *Error {
	return &Error{Kind: UnknownConstraint, RelName: relName, Constraint: cname,
		Msg: fmt.Sprintf("no such constraint %q on %q", cname, relName)}
}

func HeaderMismatchf(relName string) *Error {
	return &Error{Kind: HeaderMismatch, RelName: relName,
		Msg: fmt.Sprintf("assigned value's header does not match %q's declared header", relName)}
}

func TypeMismatchf(relName string, got interface{}) *Error {
	return &Error{Kind: TypeMismatch, RelName: relName,
		Msg: fmt.Sprintf("expected a relation value, got %T", got)}
}

func RowConstraintViolatedf(relName, cname, predicate, row string) *Error {
	return &Error{Kind: RowConstraintViolated, RelName: relName, Constraint: cname,
		Predicate: predicate, Row: row}
}

func KeyViolatedf(relName string, keyAttrs []string, row string) *Error {
	return &Error{Kind: KeyViolated, RelName: relName, KeyAttrs: keyAttrs, Row: row}
}

func PredicateNotSerializablef(relName, cname string) *Error {
	return &Error{Kind: PredicateNotSerializable, RelName: relName, Constraint: cname,
		Msg: "predicate must be supplied as source text, not a compiled callable"}
}

func CommitFailedf(err error) *Error {
	return &Error{Kind: CommitFailed, Wrapped: err, Msg: err.Error()}
}

func ConstraintLoopf(relName string) *Error {
	return &Error{Kind: ConstraintLoop, RelName: relName,
		Msg: fmt.Sprintf("constraints on %q did not settle to a fixed point", relName)}
}

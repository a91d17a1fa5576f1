package relalg

import (
	"fmt"
	"sort"
	"strings"
)

// Row is an immutable mapping from attribute name to Value. Two rows
// with the same header and equal attribute values are equal.
type Row struct {
	header Header
	attrs  map[string]Value
}

// NewRow builds a Row from a header and a matching set of attribute
// values. Every header attribute must be present with a value of the
// declared TypeTag.
func NewRow(h Header, values map[string]Value) (Row, error) {
	if len(values) != len(h) {
		return Row{}, fmt.Errorf("relalg: expected %d attributes, got %d", len(h), len(values))
	}
	attrs := make(map[string]Value, len(h))
	for name, tag := range h {
		v, ok := values[name]
		if !ok {
			return Row{}, fmt.Errorf("relalg: missing attribute %q", name)
		}
		if v.TypeTag() != tag {
			return Row{}, fmt.Errorf("relalg: attribute %q expects type %q, got %q", name, tag, v.TypeTag())
		}
		attrs[name] = v
	}
	return Row{header: h, attrs: attrs}, nil
}

// Header returns the row's header.
func (r Row) Header() Header { return r.header }

// Get returns the value bound to name and whether it was present.
func (r Row) Get(name string) (Value, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// MustGet returns the value bound to name, panicking if absent. Meant
// for call sites that have already validated the attribute exists.
func (r Row) MustGet(name string) Value {
	v, ok := r.attrs[name]
	if !ok {
		panic(fmt.Sprintf("relalg: row has no attribute %q", name))
	}
	return v
}

// Names returns the row's attribute names, sorted.
func (r Row) Names() []string { return r.header.Names() }

// AsMap returns a fresh copy of the row's attribute values.
func (r Row) AsMap() map[string]Value {
	out := make(map[string]Value, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// Equal reports structural equality: same header, same values.
func (r Row) Equal(other Row) bool {
	if !r.header.Equal(other.header) {
		return false
	}
	for name, v := range r.attrs {
		ov, ok := other.attrs[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Key returns the canonical string used for set membership and hashing:
// attribute values in sorted-name order, each rendered via Value.String.
func (r Row) Key() string {
	names := r.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + r.attrs[n].String()
	}
	return strings.Join(parts, ";")
}

// Project returns a new row restricted to the given attribute names.
func (r Row) Project(names []string) Row {
	h := make(Header, len(names))
	attrs := make(map[string]Value, len(names))
	for _, n := range names {
		h[n] = r.header[n]
		attrs[n] = r.attrs[n]
	}
	return Row{header: h, attrs: attrs}
}

// With returns a new row with the named attributes replaced or added.
func (r Row) With(values map[string]Value) Row {
	h := r.header.Clone()
	attrs := r.AsMap()
	for n, v := range values {
		h[n] = v.TypeTag()
		attrs[n] = v
	}
	return Row{header: h, attrs: attrs}
}

func (r Row) String() string {
	names := r.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%s", n, r.attrs[n].String())
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}

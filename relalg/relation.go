package relalg

import (
	"fmt"
	"sort"
	"strings"
)

// Relation is an immutable set of rows sharing one header, per §3 of
// the data model: no duplicates, order insignificant.
type Relation struct {
	header Header
	rows   map[string]Row
}

// New builds a Relation over header from the given rows. Every row's
// header must equal header exactly.
func New(header Header, rows ...Row) (Relation, error) {
	set := make(map[string]Row, len(rows))
	for i, row := range rows {
		if !row.Header().Equal(header) {
			return Relation{}, fmt.Errorf("relalg: row %d header does not match relation header", i)
		}
		set[row.Key()] = row
	}
	return Relation{header: header.Clone(), rows: set}, nil
}

// Empty returns the empty relation with the given header.
func Empty(header Header) Relation {
	return Relation{header: header.Clone(), rows: map[string]Row{}}
}

// Header returns the relation's header.
func (r Relation) Header() Header { return r.header }

// Len returns the number of rows.
func (r Relation) Len() int { return len(r.rows) }

// Rows returns the relation's rows in an unspecified but stable-within-call order.
func (r Relation) Rows() []Row {
	out := make([]Row, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Contains reports whether row is a member.
func (r Relation) Contains(row Row) bool {
	_, ok := r.rows[row.Key()]
	return ok
}

// With returns a new relation containing r's rows plus extra, deduplicated by value.
func (r Relation) With(extra ...Row) (Relation, error) {
	set := make(map[string]Row, len(r.rows)+len(extra))
	for k, v := range r.rows {
		set[k] = v
	}
	for _, row := range extra {
		if !row.Header().Equal(r.header) {
			return Relation{}, fmt.Errorf("relalg: row header does not match relation header")
		}
		set[row.Key()] = row
	}
	return Relation{header: r.header, rows: set}, nil
}

// Without returns a new relation with the rows satisfying remove removed.
func (r Relation) Without(remove func(Row) bool) Relation {
	set := make(map[string]Row, len(r.rows))
	for k, row := range r.rows {
		if !remove(row) {
			set[k] = row
		}
	}
	return Relation{header: r.header, rows: set}
}

// Equal reports whether two relations have equal headers and row sets.
func (r Relation) Equal(other Relation) bool {
	if !r.header.Equal(other.header) {
		return false
	}
	if len(r.rows) != len(other.rows) {
		return false
	}
	for k, row := range r.rows {
		orow, ok := other.rows[k]
		if !ok || !row.Equal(orow) {
			return false
		}
	}
	return true
}

func (r Relation) String() string {
	names := r.header.Names()
	var b strings.Builder
	b.WriteString("rel(")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(") {")
	for i, row := range r.Rows() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row.String())
	}
	b.WriteString("}")
	return b.String()
}

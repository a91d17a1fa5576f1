package relalg

import "fmt"

// Union returns the set union of relations sharing a common header.
func Union(relations ...Relation) (Relation, error) {
	if len(relations) == 0 {
		return Relation{}, fmt.Errorf("relalg: union requires at least one relation")
	}
	header := relations[0].header
	out := Empty(header)
	for i, r := range relations {
		if !r.header.Equal(header) {
			return Relation{}, fmt.Errorf("relalg: union operand %d has mismatched header", i)
		}
		var err error
		out, err = out.With(r.Rows()...)
		if err != nil {
			return Relation{}, err
		}
	}
	return out, nil
}

// Minus returns rows of first not present in second. Headers must match.
func Minus(first, second Relation) (Relation, error) {
	if !first.header.Equal(second.header) {
		return Relation{}, fmt.Errorf("relalg: minus operands must share a header")
	}
	return first.Without(func(row Row) bool { return second.Contains(row) }), nil
}

// Intersect returns the set intersection of two relations sharing a
// common header.
func Intersect(first, second Relation) (Relation, error) {
	if !first.header.Equal(second.header) {
		return Relation{}, fmt.Errorf("relalg: intersect operands must share a header")
	}
	return first.Without(func(row Row) bool { return !second.Contains(row) }), nil
}

// Project restricts a relation to the given attribute names.
func Project(r Relation, names []string) (Relation, error) {
	if !r.header.Subset(names) {
		return Relation{}, fmt.Errorf("relalg: project names include unknown attributes")
	}
	newHeader := make(Header, len(names))
	for _, n := range names {
		newHeader[n] = r.header[n]
	}
	out := Empty(newHeader)
	for _, row := range r.Rows() {
		var err error
		out, err = out.With(row.Project(names))
		if err != nil {
			return Relation{}, err
		}
	}
	return out, nil
}

// AllBut projects onto every attribute except the given names.
func AllBut(r Relation, exclude []string) (Relation, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		if _, ok := r.header[n]; !ok {
			return Relation{}, fmt.Errorf("relalg: all-but names include unknown attribute %q", n)
		}
		excluded[n] = true
	}
	var keep []string
	for _, n := range r.header.Names() {
		if !excluded[n] {
			keep = append(keep, n)
		}
	}
	return Project(r, keep)
}

// Rename returns a relation with attributes renamed per the from->to map.
func Rename(r Relation, renames map[string]string) (Relation, error) {
	newHeader := r.header.Clone()
	for from, to := range renames {
		tag, ok := newHeader[from]
		if !ok {
			return Relation{}, fmt.Errorf("relalg: rename: unknown attribute %q", from)
		}
		if _, exists := newHeader[to]; exists && to != from {
			return Relation{}, fmt.Errorf("relalg: rename: duplicate attribute name %q", to)
		}
		delete(newHeader, from)
		newHeader[to] = tag
	}
	out := Empty(newHeader)
	for _, row := range r.Rows() {
		values := make(map[string]Value, len(newHeader))
		for name := range r.header {
			target := name
			if to, ok := renames[name]; ok {
				target = to
			}
			values[target] = row.MustGet(name)
		}
		newRow, err := NewRow(newHeader, values)
		if err != nil {
			return Relation{}, err
		}
		if out, err = out.With(newRow); err != nil {
			return Relation{}, err
		}
	}
	return out, nil
}

// Where returns the rows of r for which pred holds.
func Where(r Relation, pred func(Row) (bool, error)) (Relation, error) {
	out := Empty(r.header)
	for _, row := range r.Rows() {
		ok, err := pred(row)
		if err != nil {
			return Relation{}, err
		}
		if ok {
			var werr error
			out, werr = out.With(row)
			if werr != nil {
				return Relation{}, werr
			}
		}
	}
	return out, nil
}

// Extend adds a new, computed attribute to every row of r.
func Extend(r Relation, name string, tag string, fn func(Row) (Value, error)) (Relation, error) {
	if _, exists := r.header[name]; exists {
		return Relation{}, fmt.Errorf("relalg: extend: duplicate attribute name %q", name)
	}
	newHeader := r.header.Clone()
	newHeader[name] = tag
	out := Empty(newHeader)
	for _, row := range r.Rows() {
		v, err := fn(row)
		if err != nil {
			return Relation{}, err
		}
		newRow := row.With(map[string]Value{name: v})
		if out, err = out.With(newRow); err != nil {
			return Relation{}, err
		}
	}
	return out, nil
}

func commonAttrs(first, second Header) ([]string, error) {
	var common []string
	for name, tag := range second {
		if ftag, ok := first[name]; ok {
			if ftag != tag {
				return nil, fmt.Errorf("relalg: attribute %q has conflicting types in join operands", name)
			}
			common = append(common, name)
		}
	}
	return common, nil
}

// Join is the natural join of two relations: an equi-join over their
// common attributes, or a cartesian product if they share none.
func Join(first, second Relation) (Relation, error) {
	common, err := commonAttrs(first.header, second.header)
	if err != nil {
		return Relation{}, err
	}
	newHeader := first.header.Clone()
	for n, t := range second.header {
		newHeader[n] = t
	}
	out := Empty(newHeader)
	for _, r1 := range first.Rows() {
		for _, r2 := range second.Rows() {
			matched := true
			for _, c := range common {
				if !r1.MustGet(c).Equal(r2.MustGet(c)) {
					matched = false
					break
				}
			}
			if !matched {
				continue
			}
			values := r1.AsMap()
			for n, v := range r2.AsMap() {
				values[n] = v
			}
			newRow, err := NewRow(newHeader, values)
			if err != nil {
				return Relation{}, err
			}
			if out, err = out.With(newRow); err != nil {
				return Relation{}, err
			}
		}
	}
	return out, nil
}

// Times is the cartesian product; it errors if the operands share attributes.
func Times(first, second Relation) (Relation, error) {
	common, err := commonAttrs(first.header, second.header)
	if err != nil {
		return Relation{}, err
	}
	if len(common) > 0 {
		return Relation{}, fmt.Errorf("relalg: times operands share attributes %v", common)
	}
	return Join(first, second)
}

func matcher(first, second Relation, match bool) (Relation, error) {
	common, err := commonAttrs(first.header, second.header)
	if err != nil {
		return Relation{}, err
	}
	if len(common) == 0 {
		if (second.Len() > 0) == match {
			return first, nil
		}
		return Empty(first.header), nil
	}
	index := make(map[string]bool, second.Len())
	for _, row := range second.Rows() {
		index[row.Project(common).Key()] = true
	}
	return first.Without(func(row Row) bool {
		return index[row.Project(common).Key()] != match
	}), nil
}

// Matching returns the rows of first whose common-attribute projection
// appears in second (a semijoin).
func Matching(first, second Relation) (Relation, error) { return matcher(first, second, true) }

// NotMatching returns the rows of first whose common-attribute
// projection does not appear in second (an anti-semijoin).
func NotMatching(first, second Relation) (Relation, error) { return matcher(first, second, false) }

// Compose is join followed by projecting away the attributes the two
// operands had in common.
func Compose(first, second Relation) (Relation, error) {
	common, err := commonAttrs(first.header, second.header)
	if err != nil {
		return Relation{}, err
	}
	joined, err := Join(first, second)
	if err != nil {
		return Relation{}, err
	}
	return AllBut(joined, common)
}

// Compute evaluates fn once per row, without adding an attribute, and
// returns the collected results in row order.
func Compute(r Relation, fn func(Row) (Value, error)) ([]Value, error) {
	rows := r.Rows()
	out := make([]Value, len(rows))
	for i, row := range rows {
		v, err := fn(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

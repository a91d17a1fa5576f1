package reldb

import (
	"errors"
	"fmt"

	"github.com/bitdancer/reldb/catalog"
	"github.com/bitdancer/reldb/errs"
	"github.com/bitdancer/reldb/predicate"
	"github.com/bitdancer/reldb/relalg"
	"github.com/bitdancer/reldb/txn"
)

// Session is one client's view of a Database: its own nested
// transaction frame stack (§4.6), isolated from every other session.
// Writes outside an explicit Transaction run as implicit
// single-statement transactions (§4.5); reads outside one see the last
// committed catalog.
type Session struct {
	db  *Database
	mgr *txn.Manager
}

func newSession(db *Database) *Session {
	return &Session{db: db, mgr: txn.NewManager(db.cat, db.store)}
}

// namespace returns the effective expression namespace for the current
// call: the database's process-wide registered constructors and
// constants, transparently augmented with every relation visible from
// the current frame under its own bare name while a transaction is
// open — explicit, or the implicit single-statement kind (§4.5's
// closing paragraph) — per §4.6. The augmentation lives only as long as
// the frame does: Manager.RelationValues reads live off the current
// frame stack, so it disappears from any namespace built after the
// frame closes.
func (s *Session) namespace() predicate.Namespace {
	ns := s.db.namespace()
	for name, v := range s.mgr.RelationValues() {
		ns[name] = v
	}
	return ns
}

// ListRelations returns every relation currently visible to this
// session, with its header.
func (s *Session) ListRelations() (map[string]relalg.Header, error) {
	if err := s.db.checkOpen(); err != nil {
		return nil, err
	}
	out := map[string]relalg.Header{}
	for _, name := range s.mgr.Names() {
		e, ok := s.mgr.View(name)
		if ok {
			out[name] = e.Header
		}
	}
	return out, nil
}

// Has reports whether name is a registered relation.
func (s *Session) Has(name string) bool {
	if s.db.checkOpen() != nil {
		return false
	}
	_, ok := s.mgr.View(name)
	return ok
}

// Get returns the current value of relation name.
func (s *Session) Get(name string) (relalg.Relation, error) {
	if err := s.db.checkOpen(); err != nil {
		return relalg.Relation{}, err
	}
	e, ok := s.mgr.View(name)
	if !ok {
		return relalg.Relation{}, errs.UnknownRelationf(name)
	}
	return e.Data, nil
}

// MustGet is Get for call sites that have already verified Has(name).
func (s *Session) MustGet(name string) relalg.Relation {
	rel, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return rel
}

// Set creates or wholesale-replaces relation name, per §4.3. v is
// either a relalg.Relation (initializing R=v, H=header(v)) or a
// relalg.Header alone (initializing H, R=∅).
func (s *Session) Set(name string, v interface{}) error {
	if err := s.db.checkOpen(); err != nil {
		return err
	}
	if err := catalog.ValidateName(name); err != nil {
		return err
	}
	var header relalg.Header
	var data relalg.Relation
	switch t := v.(type) {
	case relalg.Relation:
		header = t.Header()
		data = t
	case relalg.Header:
		header = t
		data = relalg.Empty(t)
	default:
		return errs.TypeMismatchf(name, v)
	}

	return s.withImplicitTxn(func() error {
		existing, existed := s.mgr.View(name)
		if existed {
			if !existing.Header.Equal(header) {
				return errs.HeaderMismatchf(name)
			}
		}
		entry := catalog.Entry{Header: header, Data: data, Constraints: map[string]catalog.Constraint{}}
		if existed {
			entry.Constraints = existing.Constraints
			entry.Key = existing.Key
			if err := catalog.Validate(name, entry, data, s.namespace()); err != nil {
				return err
			}
		}
		return s.mgr.Stage(name, entry, !existed)
	})
}

// Remove deletes relation name entirely.
func (s *Session) Remove(name string) error {
	if err := s.db.checkOpen(); err != nil {
		return err
	}
	if !s.Has(name) {
		return errs.UnknownRelationf(name)
	}
	return s.withImplicitTxn(func() error {
		return s.mgr.StageRemove(name)
	})
}

// ConstrainRows compiles and installs the named predicates on relation
// name, per §4.4. Predicates already in effect that share a name are
// replaced; predicates already in effect that are not named are kept.
func (s *Session) ConstrainRows(name string, preds map[string]string) error {
	if err := s.db.checkOpen(); err != nil {
		return err
	}
	return s.withImplicitTxn(func() error {
		entry, ok := s.mgr.View(name)
		if !ok {
			return errs.UnknownRelationf(name)
		}
		next := make(map[string]catalog.Constraint, len(entry.Constraints)+len(preds))
		for k, v := range entry.Constraints {
			next[k] = v
		}
		for cname, src := range preds {
			pred, err := predicate.Compile(src)
			if err != nil {
				return errs.PredicateNotSerializablef(name, cname)
			}
			next[cname] = catalog.Constraint{Source: src, Pred: pred}
		}
		candidate := entry
		candidate.Constraints = next
		if err := catalog.CheckAgainstConstraints(name, candidate, entry.Data, s.namespace()); err != nil {
			return err
		}
		entry.Constraints = next
		return s.mgr.Stage(name, entry, false)
	})
}

// RemoveRowConstraints deletes the named row constraints from relation name.
func (s *Session) RemoveRowConstraints(name string, names ...string) error {
	if err := s.db.checkOpen(); err != nil {
		return err
	}
	return s.withImplicitTxn(func() error {
		entry, ok := s.mgr.View(name)
		if !ok {
			return errs.UnknownRelationf(name)
		}
		next := make(map[string]catalog.Constraint, len(entry.Constraints))
		for k, v := range entry.Constraints {
			next[k] = v
		}
		for _, cname := range names {
			if _, ok := next[cname]; !ok {
				return errs.UnknownConstraintf(name, cname)
			}
			delete(next, cname)
		}
		entry.Constraints = next
		return s.mgr.Stage(name, entry, false)
	})
}

// RowConstraints returns the current name->source mapping for relation name.
func (s *Session) RowConstraints(name string) (map[string]string, error) {
	if err := s.db.checkOpen(); err != nil {
		return nil, err
	}
	entry, ok := s.mgr.View(name)
	if !ok {
		return nil, errs.UnknownRelationf(name)
	}
	out := make(map[string]string, len(entry.Constraints))
	for k, v := range entry.Constraints {
		out[k] = v.Source
	}
	return out, nil
}

// SetKey declares attrs as relation name's key, verifying uniqueness on
// the current data (§4.4).
func (s *Session) SetKey(name string, attrs []string) error {
	if err := s.db.checkOpen(); err != nil {
		return err
	}
	return s.withImplicitTxn(func() error {
		entry, ok := s.mgr.View(name)
		if !ok {
			return errs.UnknownRelationf(name)
		}
		if !entry.Header.Subset(attrs) {
			return fmt.Errorf("reldb: key attrs %v are not a subset of %q's header", attrs, name)
		}
		candidate := entry
		candidate.Key = attrs
		if err := catalog.ValidateStable(name, candidate, entry.Data, s.namespace()); err != nil {
			return err
		}
		entry.Key = attrs
		return s.mgr.Stage(name, entry, false)
	})
}

// Key returns relation name's declared key, or nil if none.
func (s *Session) Key(name string) ([]string, error) {
	if err := s.db.checkOpen(); err != nil {
		return nil, err
	}
	entry, ok := s.mgr.View(name)
	if !ok {
		return nil, errs.UnknownRelationf(name)
	}
	return entry.Key, nil
}

// Insert adds v (a row or a relation value) to relation name, per §4.5.
func (s *Session) Insert(name string, v interface{}) error {
	return s.mutateData(name, func(entry catalog.Entry) (relalg.Relation, error) {
		switch t := v.(type) {
		case relalg.Row:
			if !t.Header().Equal(entry.Header) {
				return relalg.Relation{}, errs.HeaderMismatchf(name)
			}
			return entry.Data.With(t)
		case relalg.Relation:
			if !t.Header().Equal(entry.Header) {
				return relalg.Relation{}, errs.HeaderMismatchf(name)
			}
			return entry.Data.With(t.Rows()...)
		default:
			return relalg.Relation{}, errs.TypeMismatchf(name, v)
		}
	})
}

// Update evaluates whereSrc over relation name's rows and, for matches,
// replaces the named attributes with the evaluated right-hand sides.
func (s *Session) Update(name, whereSrc string, assigns map[string]string) error {
	pred, err := predicate.Compile(whereSrc)
	if err != nil {
		return fmt.Errorf("reldb: compiling where clause: %w", err)
	}
	exprs := make(map[string]*predicate.Expression, len(assigns))
	for attr, src := range assigns {
		e, err := predicate.CompileExpression(src)
		if err != nil {
			return fmt.Errorf("reldb: compiling assignment to %q: %w", attr, err)
		}
		exprs[attr] = e
	}
	return s.mutateData(name, func(entry catalog.Entry) (relalg.Relation, error) {
		ns := s.namespace()
		var updated []relalg.Row
		for _, row := range entry.Data.Rows() {
			match, err := pred.Eval(row, ns)
			if err != nil {
				return relalg.Relation{}, fmt.Errorf("reldb: evaluating where clause: %w", err)
			}
			if !match {
				continue
			}
			values := row.AsMap()
			for attr, e := range exprs {
				v, err := e.Eval(row, ns)
				if err != nil {
					return relalg.Relation{}, fmt.Errorf("reldb: evaluating assignment to %q: %w", attr, err)
				}
				values[attr] = v
			}
			newRow, err := relalg.NewRow(entry.Header, values)
			if err != nil {
				return relalg.Relation{}, err
			}
			updated = append(updated, newRow)
		}
		return entry.Data.Without(func(r relalg.Row) bool {
			match, _ := pred.Eval(r, ns)
			return match
		}).With(updated...)
	})
}

// Delete removes every row of relation name for which whereSrc evaluates true.
func (s *Session) Delete(name, whereSrc string) error {
	pred, err := predicate.Compile(whereSrc)
	if err != nil {
		return fmt.Errorf("reldb: compiling where clause: %w", err)
	}
	return s.mutateData(name, func(entry catalog.Entry) (relalg.Relation, error) {
		ns := s.namespace()
		return entry.Data.Without(func(r relalg.Row) bool {
			match, _ := pred.Eval(r, ns)
			return match
		}), nil
	})
}

// mutateData is the shared plumbing for insert/update/delete: view the
// current entry, compute the candidate row set, validate it, and route
// the mutation through the transaction manager (§4.5's closing
// paragraph). CheckKey and CheckAgainstConstraints both run
// unconditionally, Delete included, since re-checking an unaffected key
// is cheap and always correct.
func (s *Session) mutateData(name string, compute func(catalog.Entry) (relalg.Relation, error)) error {
	if err := s.db.checkOpen(); err != nil {
		return err
	}
	return s.withImplicitTxn(func() error {
		entry, ok := s.mgr.View(name)
		if !ok {
			return errs.UnknownRelationf(name)
		}
		newData, err := compute(entry)
		if err != nil {
			return err
		}
		if err := catalog.Validate(name, entry, newData, s.namespace()); err != nil {
			return err
		}
		entry.Data = newData
		return s.mgr.Stage(name, entry, false)
	})
}

func (s *Session) beginIfImplicit() bool {
	if s.mgr.InTransaction() {
		return false
	}
	s.mgr.Begin()
	return true
}

// withImplicitTxn runs fn inside a frame, opening an implicit
// single-statement transaction first if none is already open (§4.5's
// closing paragraph). Opening the frame before fn runs, rather than
// around just the final Stage, is what makes the bare-relation-name
// namespace augmentation of §4.6 visible to fn's own validation step,
// not only to explicit Transaction bodies. The implicit frame is
// aborted on error and committed on success; an already-open frame is
// left for its own Transaction call to close.
func (s *Session) withImplicitTxn(fn func() error) error {
	implicit := s.beginIfImplicit()
	if err := fn(); err != nil {
		if implicit {
			s.mgr.Abort()
		}
		return err
	}
	if implicit {
		return s.mgr.Commit()
	}
	return nil
}

// Transaction runs fn inside a new nested frame (§4.6). If fn returns a
// *txn.Rollback, the frame's overlays are discarded and Transaction
// returns nil: the rollback is contained. If fn returns any other
// error, the frame's overlays are discarded and the error propagates,
// so an enclosing Transaction call also sees an error and rolls back in
// turn. If fn returns nil, the frame commits (merging into the parent,
// or flushing to the store if this was the outermost frame).
func (s *Session) Transaction(fn func(*Session) error) error {
	if err := s.db.checkOpen(); err != nil {
		return err
	}
	s.mgr.Begin()
	err := fn(s)
	if err == nil {
		return s.mgr.Commit()
	}
	s.mgr.Abort()
	var rb *txn.Rollback
	if errors.As(err, &rb) {
		return nil
	}
	return err
}

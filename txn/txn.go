// Package txn implements the per-client nested transaction manager of
// spec.md §4.6: a stack of frames, each a copy-on-write overlay over
// its parent's view of the catalog. Nothing here talks to the store
// directly except at the outermost frame's commit, where the whole
// overlay set is flushed atomically.
package txn

import (
	"fmt"
	"sync"

	"github.com/bitdancer/reldb/catalog"
	"github.com/bitdancer/reldb/errs"
	"github.com/bitdancer/reldb/relalg"
	"github.com/bitdancer/reldb/store"
)

// Rollback is the explicit signal a transaction body raises to abort
// only its own frame without propagating failure to an enclosing one
// (§4.6: "Propagation stops at this frame"). Any other error returned
// from a transaction body is treated as "other failure" and re-raised
// after discarding the frame's overlays, rolling back enclosing frames
// in turn as it propagates.
type Rollback struct {
	Cause error
}

// NewRollback wraps cause (which may be nil) as an explicit Rollback signal.
func NewRollback(cause error) *Rollback { return &Rollback{Cause: cause} }

func (r *Rollback) Error() string {
	if r.Cause != nil {
		return fmt.Sprintf("txn: rolled back: %v", r.Cause)
	}
	return "txn: rolled back"
}

func (r *Rollback) Unwrap() error { return r.Cause }

type overlay struct {
	entry   catalog.Entry
	isNew   bool
	removed bool
}

// frame is one entry in a client's transaction stack.
type frame struct {
	overlays map[string]*overlay
}

func newFrame() *frame { return &frame{overlays: map[string]*overlay{}} }

// Manager owns one client's frame stack over a shared Catalog and
// Store. Per spec.md §5, the frame stack is per-client state; Manager
// is meant to be owned by exactly one reldb.Session and never shared
// across goroutines without external synchronization at a higher level
// (the catalog and store it wraps are already internally synchronized).
type Manager struct {
	mu    sync.Mutex
	cat   *catalog.Catalog
	st    *store.Store
	stack []*frame
}

// NewManager returns a Manager with an empty frame stack.
func NewManager(cat *catalog.Catalog, st *store.Store) *Manager {
	return &Manager{cat: cat, st: st}
}

// InTransaction reports whether at least one frame is open.
func (m *Manager) InTransaction() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack) > 0
}

// Begin pushes a new frame over the current view.
func (m *Manager) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack, newFrame())
}

// View returns the entry visible to the current frame for name: the
// nearest overlay in the stack (innermost first), falling back to the
// committed catalog. The second return is false if name does not exist
// in the visible state, including when it was removed by an overlay.
func (m *Manager) View(name string) (catalog.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.stack) - 1; i >= 0; i-- {
		if ov, ok := m.stack[i].overlays[name]; ok {
			if ov.removed {
				return catalog.Entry{}, false
			}
			return ov.entry, true
		}
	}
	return m.cat.Snapshot(name)
}

// Names returns every relation name visible from the current frame.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[string]bool{}
	for _, n := range m.cat.Names() {
		set[n] = true
	}
	for _, f := range m.stack {
		for n, ov := range f.overlays {
			if ov.removed {
				delete(set, n)
			} else {
				set[n] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out
}

// RelationValues returns every relation visible from the current frame,
// each wrapped as a relalg.Value under its own name, for binding into an
// expression namespace (§4.6: "each persistent relation is visible by
// its bare name for use inside algebra expressions evaluated within
// that scope"). It returns nil outside a transaction, so the
// augmentation this backs disappears the moment the frame closes.
func (m *Manager) RelationValues() map[string]relalg.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return nil
	}
	out := map[string]relalg.Value{}
	for _, name := range m.cat.Names() {
		if e, ok := m.cat.Snapshot(name); ok {
			out[name] = relalg.RelationValue{Relation: e.Data}
		}
	}
	for _, f := range m.stack {
		for name, ov := range f.overlays {
			if ov.removed {
				delete(out, name)
			} else {
				out[name] = relalg.RelationValue{Relation: ov.entry.Data}
			}
		}
	}
	return out
}

// Stage records entry as the new value for name in the innermost open
// frame. isNew marks a relation created within this transaction chain
// (so flush knows to create it in the store rather than replace it);
// once true anywhere in the visible overlay chain for name, it stays true.
func (m *Manager) Stage(name string, entry catalog.Entry, isNew bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return fmt.Errorf("txn: Stage called with no open transaction frame")
	}
	if !isNew {
		for i := len(m.stack) - 1; i >= 0; i-- {
			if ov, ok := m.stack[i].overlays[name]; ok && ov.isNew {
				isNew = true
				break
			}
		}
	}
	top := m.stack[len(m.stack)-1]
	top.overlays[name] = &overlay{entry: entry, isNew: isNew}
	return nil
}

// StageRemove records name as deleted in the innermost open frame.
func (m *Manager) StageRemove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return fmt.Errorf("txn: StageRemove called with no open transaction frame")
	}
	top := m.stack[len(m.stack)-1]
	top.overlays[name] = &overlay{removed: true}
	return nil
}

// Abort pops the current frame and discards its overlays without
// touching the parent frame or the store. Used both for the implicit
// rollback of a failed single-statement operation and for an explicit
// Rollback signal.
func (m *Manager) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return
	}
	m.stack = m.stack[:len(m.stack)-1]
}

// Commit pops the current frame. If another frame remains beneath it,
// the popped frame's overlays merge into the parent (the parent now
// sees these changes, still unflushed). If this was the outermost
// frame, every overlaid relation is flushed atomically through the
// store adapter and applied to the shared catalog.
func (m *Manager) Commit() error {
	m.mu.Lock()
	if len(m.stack) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("txn: Commit called with no open transaction frame")
	}
	f := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	if len(m.stack) > 0 {
		parent := m.stack[len(m.stack)-1]
		for name, ov := range f.overlays {
			parent.overlays[name] = ov
		}
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return m.flush(f)
}

// flush persists every overlay in f in one store transaction (§4.6:
// "begin; per relation bulk_replace ...; save_meta; commit") and, only
// once that succeeds, updates the in-memory catalog to match.
func (m *Manager) flush(f *frame) error {
	if len(f.overlays) == 0 {
		return nil
	}
	stx, err := m.st.Begin()
	if err != nil {
		return errs.CommitFailedf(err)
	}
	for name, ov := range f.overlays {
		if ov.removed {
			if err := stx.DropRelation(name); err != nil {
				stx.Rollback()
				return errs.CommitFailedf(err)
			}
			continue
		}
		if ov.isNew {
			if err := stx.CreateRelation(name, ov.entry.Header); err != nil {
				stx.Rollback()
				return errs.CommitFailedf(err)
			}
		}
		if err := stx.BulkReplace(name, ov.entry.Header, ov.entry.Data.Rows()); err != nil {
			stx.Rollback()
			return errs.CommitFailedf(err)
		}
		if err := m.syncMeta(stx, name, ov.entry); err != nil {
			stx.Rollback()
			return errs.CommitFailedf(err)
		}
	}
	if err := stx.Commit(); err != nil {
		return errs.CommitFailedf(err)
	}
	for name, ov := range f.overlays {
		if ov.removed {
			m.cat.ApplyRemoved(name)
		} else {
			m.cat.ApplyCommitted(name, ov.entry)
		}
	}
	return nil
}

func (m *Manager) syncMeta(stx *store.Txn, name string, entry catalog.Entry) error {
	prev, _ := m.cat.Snapshot(name)
	for cname := range prev.Constraints {
		if _, keep := entry.Constraints[cname]; !keep {
			if err := stx.DeleteConstraint(name, cname); err != nil {
				return err
			}
		}
	}
	for cname, con := range entry.Constraints {
		if err := stx.SaveConstraint(name, cname, con.Source); err != nil {
			return err
		}
	}
	switch {
	case len(entry.Key) > 0:
		if err := stx.SaveKey(name, entry.Key); err != nil {
			return err
		}
	case len(prev.Key) > 0:
		if err := stx.DropKey(name); err != nil {
			return err
		}
	}
	return nil
}

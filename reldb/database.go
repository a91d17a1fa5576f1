// Package reldb assembles the catalog, predicate compiler, transaction
// manager, and store adapter into the single Database facade spec.md
// §6 names: open, close, list_relations, set/get/has/remove,
// constrain_rows/remove_row_constraints/row_constraints, set_key/key,
// and transaction.
package reldb

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/bitdancer/reldb/catalog"
	"github.com/bitdancer/reldb/codec"
	"github.com/bitdancer/reldb/errs"
	"github.com/bitdancer/reldb/predicate"
	"github.com/bitdancer/reldb/relalg"
	"github.com/bitdancer/reldb/store"
)

// Database is the process-wide handle: one Catalog, one Store, one
// expression namespace of client-registered constructors (§5: "the
// expression namespace's client-registered entries" are process-wide).
// Per-client state (the transaction frame stack, the trace sink) lives
// on a Session, obtained via NewSession or the Database's own default
// session for non-transactional convenience calls.
type Database struct {
	mu       sync.RWMutex
	dir      string
	store    *store.Store
	cat      *catalog.Catalog
	registry *codec.Registry
	ns       predicate.Namespace
	logger   *zap.SugaredLogger
	closed   bool
	def      *Session
}

// Open connects to the database at dir, creating it if absent, and
// loads the catalog from persisted state. registry may be nil to use
// only the built-in scalar types; logger may be nil to use zap's no-op
// logger.
func Open(dir string, registry *codec.Registry, logger *zap.SugaredLogger) (*Database, error) {
	if registry == nil {
		registry = codec.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	st, err := store.Open(dir, registry, logger)
	if err != nil {
		return nil, err
	}
	cat := catalog.New(st)
	if err := cat.Load(); err != nil {
		st.Close()
		return nil, err
	}
	db := &Database{
		dir:      dir,
		store:    st,
		cat:      cat,
		registry: registry,
		ns:       predicate.Namespace{},
		logger:   logger.With("component", "reldb"),
	}
	db.def = newSession(db)
	db.logger.Infow("database opened", "dir", dir, "relations", len(cat.Names()))
	return db, nil
}

// Close flushes pending state and disconnects. Every subsequent
// Database or Session call fails with errs.Disconnected.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.logger.Infow("database closed")
	return db.store.Close()
}

func (db *Database) checkOpen() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return errs.Disconnectedf(db.dir)
	}
	return nil
}

// Registry exposes the value codec so callers can register domain types
// before opening relations that use them.
func (db *Database) Registry() *codec.Registry { return db.registry }

// RegisterConstructor adds name to the process-wide expression
// namespace, making it available inside every predicate and expression
// compiled against this database (§4.4's "expression namespace").
func (db *Database) RegisterConstructor(name string, fn predicate.Callable) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ns[name] = fn
}

// RegisterConstant adds a named constant value to the expression namespace.
func (db *Database) RegisterConstant(name string, v relalg.Value) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ns[name] = v
}

func (db *Database) namespace() predicate.Namespace {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(predicate.Namespace, len(db.ns))
	for k, v := range db.ns {
		out[k] = v
	}
	return out
}

// Default returns the Database's implicit session, used by every
// Database-level convenience method below. Concurrent independent
// clients that need isolated transaction frame stacks should call
// NewSession instead — see §5's per-client state and §4.6's isolation
// discussion, which spec.md attributes to "the thread that owns the
// transaction." Go has no ambient thread identity, so this module makes
// the client an explicit handle instead of an implicit one.
func (db *Database) Default() *Session { return db.def }

// NewSession returns a Session with its own transaction frame stack,
// isolated from every other session on this Database per §4.6.
func (db *Database) NewSession() *Session { return newSession(db) }

// The methods below delegate to the Database's default session, for
// callers that never need more than one logical client.

func (db *Database) ListRelations() (map[string]relalg.Header, error) {
	return db.def.ListRelations()
}
func (db *Database) Set(name string, v interface{}) error     { return db.def.Set(name, v) }
func (db *Database) Get(name string) (relalg.Relation, error) { return db.def.Get(name) }
func (db *Database) MustGet(name string) relalg.Relation      { return db.def.MustGet(name) }
func (db *Database) Has(name string) bool                     { return db.def.Has(name) }
func (db *Database) Remove(name string) error                 { return db.def.Remove(name) }
func (db *Database) ConstrainRows(name string, preds map[string]string) error {
	return db.def.ConstrainRows(name, preds)
}
func (db *Database) RemoveRowConstraints(name string, names ...string) error {
	return db.def.RemoveRowConstraints(name, names...)
}
func (db *Database) RowConstraints(name string) (map[string]string, error) {
	return db.def.RowConstraints(name)
}
func (db *Database) SetKey(name string, attrs []string) error { return db.def.SetKey(name, attrs) }
func (db *Database) Key(name string) ([]string, error)        { return db.def.Key(name) }
func (db *Database) Insert(name string, v interface{}) error  { return db.def.Insert(name, v) }
func (db *Database) Delete(name, whereSrc string) error       { return db.def.Delete(name, whereSrc) }
func (db *Database) Update(name, whereSrc string, assigns map[string]string) error {
	return db.def.Update(name, whereSrc, assigns)
}
func (db *Database) Transaction(fn func(*Session) error) error {
	return db.def.Transaction(fn)
}

// Trace directs the store's per-statement trace stream, per §4.2.
func (db *Database) Trace(w io.Writer) {
	db.store.Trace(w)
}

func (db *Database) String() string {
	return fmt.Sprintf("reldb.Database{%s}", db.dir)
}

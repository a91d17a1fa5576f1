// Package store adapts an embedded, row-oriented key-value engine
// (github.com/syndtr/goleveldb) to the backing-store contract spec.md
// §4.2 defines: per-relation tables, a metadata table for headers,
// constraints and keys, and begin/commit/rollback around a batch of
// writes. It is deliberately ignorant of relational-algebra semantics
// above "a named bag of encoded rows" — the catalog decides what goes
// in and validates it first.
package store

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/bitdancer/reldb/codec"
	"github.com/bitdancer/reldb/relalg"
)

// kv is the subset of *leveldb.DB and *leveldb.Transaction this package
// needs. Both types satisfy it with their real method sets, which lets
// core's read/write logic run unmodified whether it is talking directly
// to the database or to an open transaction.
type kv interface {
	Put(key, value []byte, wo *opt.WriteOptions) error
	Delete(key []byte, wo *opt.WriteOptions) error
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
	Write(batch *leveldb.Batch, wo *opt.WriteOptions) error
}

// core implements every relation/constraint/key/row operation against
// whatever kv it's handed. Store and Txn are thin wrappers that supply
// the backend and, in Txn's case, Commit/Rollback.
type core struct {
	mu       sync.Mutex
	backend  kv
	registry *codec.Registry
	logger   *zap.SugaredLogger
	trace    io.Writer
}

func (c *core) tracef(format string, args ...interface{}) {
	c.mu.Lock()
	w := c.trace
	c.mu.Unlock()
	if w != nil {
		fmt.Fprintf(w, format+"\n", args...)
	}
}

func (c *core) setTrace(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trace = w
}

// CreateRelation registers a new relation's header. It does not create
// any rows; the relation starts empty.
func (c *core) CreateRelation(name string, header relalg.Header) error {
	data, err := codec.EncodeHeader(header)
	if err != nil {
		return fmt.Errorf("store: encoding header for %q: %w", name, err)
	}
	c.tracef("CREATE RELATION %s", name)
	return c.backend.Put(relMetaKey(name), data, nil)
}

// DropRelation removes a relation's header, constraints, key, and rows.
func (c *core) DropRelation(name string) error {
	batch := new(leveldb.Batch)
	batch.Delete(relMetaKey(name))
	batch.Delete(keyMetaKey(name))
	if err := c.stageRowDeletes(batch, name); err != nil {
		return err
	}
	if err := c.stageConstraintDeletes(batch, name); err != nil {
		return err
	}
	c.tracef("DROP RELATION %s", name)
	return c.backend.Write(batch, nil)
}

func (c *core) stageRowDeletes(batch *leveldb.Batch, name string) error {
	it := c.backend.NewIterator(util.BytesPrefix(dataPrefixFor(name)), nil)
	defer it.Release()
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	return it.Error()
}

func (c *core) stageConstraintDeletes(batch *leveldb.Batch, name string) error {
	it := c.backend.NewIterator(util.BytesPrefix(constraintPrefix(name)), nil)
	defer it.Release()
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	return it.Error()
}

// BulkReplace atomically replaces every row of relation name with rows.
// Deletion of the previous contents and insertion of the new contents
// happen in a single leveldb batch, per §4.6's discretion to implement
// flush as "bulk_replace" — the transaction manager always hands the
// whole in-memory set to this call rather than a diff.
func (c *core) BulkReplace(name string, header relalg.Header, rows []relalg.Row) error {
	batch := new(leveldb.Batch)
	if err := c.stageRowDeletes(batch, name); err != nil {
		return err
	}
	for _, row := range rows {
		data, err := c.registry.EncodeRow(row)
		if err != nil {
			return fmt.Errorf("store: encoding row for %q: %w", name, err)
		}
		rid := uuid.New().String()
		batch.Put(dataKey(name, rid), data)
	}
	c.tracef("BULK REPLACE %s (%d rows)", name, len(rows))
	return c.backend.Write(batch, nil)
}

// InsertRows adds rows to relation name without disturbing the rows
// already present. Implemented as a read-modify-bulk-replace: goleveldb
// gives us no cheaper granular row op that also keeps the synthetic row
// identifiers consistent, and the relation is already materialized in
// memory by the caller.
func (c *core) InsertRows(name string, header relalg.Header, rows []relalg.Row) error {
	existing, err := c.LoadRows(name, header)
	if err != nil {
		return err
	}
	combined := make(map[string]relalg.Row, len(existing)+len(rows))
	for _, r := range existing {
		combined[r.Key()] = r
	}
	for _, r := range rows {
		combined[r.Key()] = r
	}
	out := make([]relalg.Row, 0, len(combined))
	for _, r := range combined {
		out = append(out, r)
	}
	return c.BulkReplace(name, header, out)
}

// DeleteRows removes rows from relation name, matched by content rather
// than by any storage identity.
func (c *core) DeleteRows(name string, header relalg.Header, rows []relalg.Row) error {
	existing, err := c.LoadRows(name, header)
	if err != nil {
		return err
	}
	remove := make(map[string]bool, len(rows))
	for _, r := range rows {
		remove[r.Key()] = true
	}
	out := existing[:0:0]
	for _, r := range existing {
		if !remove[r.Key()] {
			out = append(out, r)
		}
	}
	return c.BulkReplace(name, header, out)
}

// SaveConstraint persists one row constraint's source text.
func (c *core) SaveConstraint(relName, cname, src string) error {
	c.tracef("SAVE CONSTRAINT %s.%s", relName, cname)
	return c.backend.Put(constraintKey(relName, cname), []byte(src), nil)
}

// DeleteConstraint removes one persisted constraint.
func (c *core) DeleteConstraint(relName, cname string) error {
	c.tracef("DELETE CONSTRAINT %s.%s", relName, cname)
	return c.backend.Delete(constraintKey(relName, cname), nil)
}

// LoadConstraints returns every persisted row constraint for relName.
func (c *core) LoadConstraints(relName string) (map[string]string, error) {
	out := map[string]string{}
	it := c.backend.NewIterator(util.BytesPrefix(constraintPrefix(relName)), nil)
	defer it.Release()
	for it.Next() {
		cname := constraintNameFromKey(relName, it.Key())
		out[cname] = string(append([]byte(nil), it.Value()...))
	}
	return out, it.Error()
}

// SaveKey persists a declared key.
func (c *core) SaveKey(relName string, attrs []string) error {
	data, err := codec.EncodeKey(attrs)
	if err != nil {
		return err
	}
	c.tracef("SAVE KEY %s %v", relName, attrs)
	return c.backend.Put(keyMetaKey(relName), data, nil)
}

// LoadKey returns the declared key for relName, or (nil, false) if none.
func (c *core) LoadKey(relName string) ([]string, bool, error) {
	data, err := c.backend.Get(keyMetaKey(relName), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	attrs, err := codec.DecodeKey(data)
	if err != nil {
		return nil, false, err
	}
	return attrs, true, nil
}

// DropKey removes a relation's declared key, if any.
func (c *core) DropKey(relName string) error {
	c.tracef("DROP KEY %s", relName)
	return c.backend.Delete(keyMetaKey(relName), nil)
}

// ListRelations returns every relation name currently registered.
func (c *core) ListRelations() ([]string, error) {
	var names []string
	it := c.backend.NewIterator(util.BytesPrefix([]byte(relPrefix)), nil)
	defer it.Release()
	for it.Next() {
		names = append(names, string(append([]byte(nil), it.Key()[len(relPrefix):]...)))
	}
	return names, it.Error()
}

// LoadHeader returns the persisted header for a relation.
func (c *core) LoadHeader(name string) (relalg.Header, error) {
	data, err := c.backend.Get(relMetaKey(name), nil)
	if err != nil {
		return nil, fmt.Errorf("store: loading header for %q: %w", name, err)
	}
	return codec.DecodeHeader(data)
}

// LoadRows returns every row currently stored for a relation.
func (c *core) LoadRows(name string, header relalg.Header) ([]relalg.Row, error) {
	var rows []relalg.Row
	it := c.backend.NewIterator(util.BytesPrefix(dataPrefixFor(name)), nil)
	defer it.Release()
	for it.Next() {
		row, err := c.registry.DecodeRow(header, it.Value())
		if err != nil {
			return nil, fmt.Errorf("store: decoding row %s: %w", ridFromDataKey(name, it.Key()), err)
		}
		rows = append(rows, row)
	}
	return rows, it.Error()
}

// Store wraps one open goleveldb database, one per open reldb.Database.
type Store struct {
	*core
	db *leveldb.DB
}

// Open opens (creating if absent) the leveldb database at dir. Idempotent,
// per §4.2's "open(URI)" contract — goleveldb's OpenFile already is.
func Open(dir string, registry *codec.Registry, logger *zap.SugaredLogger) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", dir, err)
	}
	return &Store{
		core: &core{backend: db, registry: registry, logger: logger},
		db:   db,
	}, nil
}

// Trace directs a line of text to w for every mutating operation the
// store performs, mirroring spec.md §4.2's optional per-thread trace
// stream (and the teacher's debug_sql style flag on its sqlite adapter).
func (s *Store) Trace(w io.Writer) { s.setTrace(w) }

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin opens a new transaction against the store, per §4.2's begin().
func (s *Store) Begin() (*Txn, error) {
	tx, err := s.db.OpenTransaction()
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	return &Txn{
		core: &core{backend: tx, registry: s.registry, logger: s.logger, trace: s.trace},
		tx:   tx,
	}, nil
}

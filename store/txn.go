package store

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// Txn is a store-level transaction: every core operation runs against a
// *leveldb.Transaction instead of the database directly, so nothing it
// writes is visible to other readers until Commit. This is the layer
// spec.md §4.2's begin/commit/rollback triad targets; the higher-level
// nested-frame semantics of §4.6 live in the txn package, one level up,
// and call Commit only for the outermost frame.
type Txn struct {
	*core
	tx        *leveldb.Transaction
	committed bool
	done      bool
}

// Commit makes every write performed through this Txn durable and visible.
func (t *Txn) Commit() error {
	if t.done {
		return fmt.Errorf("store: transaction already closed")
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	t.committed = true
	t.done = true
	return nil
}

// Rollback discards every write performed through this Txn.
func (t *Txn) Rollback() error {
	if t.done {
		return nil
	}
	t.tx.Discard()
	t.done = true
	return nil
}

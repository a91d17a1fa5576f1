// Package catalog holds the process-wide relation directory spec.md
// §4.3 describes: for each named relation, its header H, its current
// row set R, its row-constraint dictionary C, and its declared key K.
// Catalog only ever sees committed state — the per-client overlay
// bookkeeping of §4.6 lives one layer up, in package txn.
package catalog

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/bitdancer/reldb/errs"
	"github.com/bitdancer/reldb/predicate"
	"github.com/bitdancer/reldb/relalg"
	"github.com/bitdancer/reldb/store"
)

// Entry is one relation's full state: header, rows, compiled row
// constraints (keyed by name, alongside their source text for
// persistence and re-listing), and an optional declared key.
type Entry struct {
	Header      relalg.Header
	Data        relalg.Relation
	Constraints map[string]Constraint
	Key         []string // nil if unset
}

// Constraint pairs a compiled predicate with the source text it must
// round-trip to when persisted (§4.1: "predicates persist as source").
type Constraint struct {
	Source string
	Pred   *predicate.Predicate
}

// clone returns a value copy of e suitable for a copy-on-write overlay:
// Data is an immutable relalg.Relation so sharing it is safe, but the
// Constraints map must not be aliased across overlays.
func (e Entry) clone() Entry {
	out := Entry{Header: e.Header, Data: e.Data, Key: append([]string(nil), e.Key...)}
	out.Constraints = make(map[string]Constraint, len(e.Constraints))
	for k, v := range e.Constraints {
		out.Constraints[k] = v
	}
	return out
}

// Catalog is the shared, mutex-protected directory of every open
// relation. All reads take the shared lock; all writes take the
// exclusive lock for the duration of applying one committed change, per
// spec.md §5's "shared-resource policy."
type Catalog struct {
	mu      sync.RWMutex
	store   *store.Store
	entries map[string]*Entry
}

// New wraps an already-open Store. Load must be called once before use
// to populate the in-memory directory from persisted state.
func New(st *store.Store) *Catalog {
	return &Catalog{store: st, entries: map[string]*Entry{}}
}

// Load reads every persisted relation, its constraints, and its key
// from the store, populating the in-memory directory. Called once at
// database open.
func (c *Catalog) Load() error {
	names, err := c.store.ListRelations()
	if err != nil {
		return fmt.Errorf("catalog: listing relations: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		header, err := c.store.LoadHeader(name)
		if err != nil {
			return fmt.Errorf("catalog: loading header for %q: %w", name, err)
		}
		rows, err := c.store.LoadRows(name, header)
		if err != nil {
			return fmt.Errorf("catalog: loading rows for %q: %w", name, err)
		}
		data, err := relalg.New(header, rows...)
		if err != nil {
			return fmt.Errorf("catalog: rebuilding relation %q: %w", name, err)
		}
		srcs, err := c.store.LoadConstraints(name)
		if err != nil {
			return fmt.Errorf("catalog: loading constraints for %q: %w", name, err)
		}
		constraints := make(map[string]Constraint, len(srcs))
		for cname, src := range srcs {
			pred, err := predicate.Compile(src)
			if err != nil {
				return fmt.Errorf("catalog: recompiling constraint %q.%q: %w", name, cname, err)
			}
			constraints[cname] = Constraint{Source: src, Pred: pred}
		}
		key, _, err := c.store.LoadKey(name)
		if err != nil {
			return fmt.Errorf("catalog: loading key for %q: %w", name, err)
		}
		c.entries[name] = &Entry{Header: header, Data: data, Constraints: constraints, Key: key}
	}
	return nil
}

// ValidateName enforces §4.3's naming rule: a relation name must be an
// identifier (first rune a letter or underscore, remaining runes
// letters, digits, or underscores, at least one rune total) and must
// not begin with underscore. The identifier shape mirrors the one
// predicate/token.go scans for bare names; the Python original gets
// this for free from attribute-assignment syntax, so the general case
// has to be written out explicitly here.
func ValidateName(name string) error {
	if strings.HasPrefix(name, "_") {
		return errs.NameInvalidf(name)
	}
	if !isIdentifier(name) {
		return errs.NameInvalidf(name)
	}
	return nil
}

func isIdentifier(name string) bool {
	runes := []rune(name)
	if len(runes) == 0 {
		return false
	}
	if !unicode.IsLetter(runes[0]) && runes[0] != '_' {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// Names returns every currently-registered relation name.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for name := range c.entries {
		out = append(out, name)
	}
	return out
}

// Snapshot returns a value copy of the committed entry for name.
func (c *Catalog) Snapshot(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

// Ns is the fallback expression namespace: process-wide, client-registered
// constructors and constants visible to every predicate and expression
// (§5: "the expression namespace's client-registered entries" are
// process-wide state). It does not include bare relation names — those
// are added transiently inside a transaction, by package txn.
type Ns = predicate.Namespace

// CheckAgainstConstraints evaluates every constraint in e against every
// row of candidate, returning the first violation as a
// row-constraint-violated error, or nil if all pass.
func CheckAgainstConstraints(relName string, e Entry, candidate relalg.Relation, ns Ns) error {
	for cname, con := range e.Constraints {
		for _, row := range candidate.Rows() {
			ok, err := con.Pred.Eval(row, ns)
			if err != nil {
				return errs.RowConstraintViolatedf(relName, cname, con.Source,
					fmt.Sprintf("%s (evaluation error: %v)", row.String(), err))
			}
			if !ok {
				return errs.RowConstraintViolatedf(relName, cname, con.Source, row.String())
			}
		}
	}
	return nil
}

// CheckKey verifies that candidate has no two rows colliding on e.Key.
// Returns a key-violated error naming the first colliding row.
func CheckKey(relName string, e Entry, candidate relalg.Relation) error {
	if len(e.Key) == 0 {
		return nil
	}
	seen := make(map[string]relalg.Row, candidate.Len())
	for _, row := range candidate.Rows() {
		proj := row.Project(e.Key)
		k := proj.Key()
		if _, ok := seen[k]; ok {
			return errs.KeyViolatedf(relName, e.Key, row.String())
		}
		seen[k] = row
	}
	return nil
}

// Validate runs both the row-constraint and key checks candidate must
// pass to become e's new Data, in the order §4.3/§4.4 specify.
func Validate(relName string, e Entry, candidate relalg.Relation, ns Ns) error {
	if err := CheckAgainstConstraints(relName, e, candidate, ns); err != nil {
		return err
	}
	return CheckKey(relName, e, candidate)
}

// maxConstraintPasses bounds the fixed-point check below, mirroring the
// original implementation's ten-pass constraint-fixer loop.
const maxConstraintPasses = 10

// ValidateStable re-runs Validate against the same candidate up to
// maxConstraintPasses times and requires an identical verdict every
// time, surfacing errs.ConstraintLoop if it does not settle. Validate
// itself is pure, so in practice this always converges on pass one; the
// loop is kept as the terminating replacement for the original's
// higher-level constraint-fixer pattern, applied here to close spec.md's
// key-persistence Open Question with a concrete, always-terminating check.
func ValidateStable(relName string, e Entry, candidate relalg.Relation, ns Ns) error {
	var first error
	for i := 0; i < maxConstraintPasses; i++ {
		err := Validate(relName, e, candidate, ns)
		if i == 0 {
			first = err
			continue
		}
		if (err == nil) != (first == nil) {
			return errs.ConstraintLoopf(relName)
		}
	}
	return first
}

// Commit installs entry as the new committed state for name and
// persists it through the store: header (if newly created), the full
// row set, every constraint (deleting ones no longer present), and the
// key (dropping a previously stored one if entry has none). The caller
// has already validated entry against Validate.
//
// This persists one relation in one store call and is not itself
// atomic across relations; package txn's Manager.flush does not use
// it for that reason, instead opening a single store.Txn spanning
// every relation touched by a frame and calling ApplyCommitted once
// it succeeds. Commit remains the catalog's standalone single-relation
// primitive.
func (c *Catalog) Commit(name string, entry Entry, wasNew bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wasNew {
		if err := c.store.CreateRelation(name, entry.Header); err != nil {
			return errs.CommitFailedf(err)
		}
	}
	if err := c.store.BulkReplace(name, entry.Header, entry.Data.Rows()); err != nil {
		return errs.CommitFailedf(err)
	}
	if err := c.syncConstraints(name, entry); err != nil {
		return errs.CommitFailedf(err)
	}
	if err := c.syncKey(name, entry); err != nil {
		return errs.CommitFailedf(err)
	}
	stored := entry.clone()
	c.entries[name] = &stored
	return nil
}

func (c *Catalog) syncConstraints(name string, entry Entry) error {
	prev, ok := c.entries[name]
	var prevNames map[string]bool
	if ok {
		prevNames = make(map[string]bool, len(prev.Constraints))
		for n := range prev.Constraints {
			prevNames[n] = true
		}
	}
	for cname, con := range entry.Constraints {
		if err := c.store.SaveConstraint(name, cname, con.Source); err != nil {
			return err
		}
		delete(prevNames, cname)
	}
	for stale := range prevNames {
		if err := c.store.DeleteConstraint(name, stale); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) syncKey(name string, entry Entry) error {
	prev, ok := c.entries[name]
	hadKey := ok && len(prev.Key) > 0
	hasKey := len(entry.Key) > 0
	if hasKey {
		return c.store.SaveKey(name, entry.Key)
	}
	if hadKey {
		return c.store.DropKey(name)
	}
	return nil
}

// ApplyCommitted installs entry as name's committed state without
// touching the store. Used by package txn once its own flush has
// already persisted the same data atomically across every relation
// touched by a transaction.
func (c *Catalog) ApplyCommitted(name string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := entry.clone()
	c.entries[name] = &stored
}

// ApplyRemoved deletes name from the in-memory directory without
// touching the store, mirroring ApplyCommitted.
func (c *Catalog) ApplyRemoved(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// Remove deletes a relation entirely, in memory and in the store.
func (c *Catalog) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; !ok {
		return errs.UnknownRelationf(name)
	}
	if err := c.store.DropRelation(name); err != nil {
		return errs.CommitFailedf(err)
	}
	delete(c.entries, name)
	return nil
}

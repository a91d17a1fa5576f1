package txn_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdancer/reldb/catalog"
	"github.com/bitdancer/reldb/codec"
	"github.com/bitdancer/reldb/relalg"
	"github.com/bitdancer/reldb/store"
	"github.com/bitdancer/reldb/txn"
)

func header() relalg.Header { return relalg.Header{"name": "string"} }

func setup(t *testing.T) (*catalog.Catalog, *txn.Manager) {
	t.Helper()
	st, err := store.Open(t.TempDir(), codec.NewRegistry(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	cat := catalog.New(st)
	require.NoError(t, cat.Load())
	rel := relalg.Empty(header())
	require.NoError(t, cat.Commit("students", catalog.Entry{Header: header(), Data: rel, Constraints: map[string]catalog.Constraint{}}, true))
	return cat, txn.NewManager(cat, st)
}

func TestViewFallsBackToCatalog(t *testing.T) {
	cat, mgr := setup(t)
	entry, ok := mgr.View("students")
	require.True(t, ok)
	catEntry, _ := cat.Snapshot("students")
	require.True(t, entry.Data.Equal(catEntry.Data))
}

func TestStagedChangeIsInvisibleUntilCommit(t *testing.T) {
	cat, mgr := setup(t)
	mgr.Begin()

	row, err := relalg.NewRow(header(), map[string]relalg.Value{"name": relalg.String("alice")})
	require.NoError(t, err)
	rel, err := relalg.New(header(), row)
	require.NoError(t, err)

	require.NoError(t, mgr.Stage("students", catalog.Entry{Header: header(), Data: rel, Constraints: map[string]catalog.Constraint{}}, false))

	catEntry, _ := cat.Snapshot("students")
	require.Equal(t, 0, catEntry.Data.Len(), "catalog must not see an uncommitted frame's overlay")

	viewed, ok := mgr.View("students")
	require.True(t, ok)
	require.Equal(t, 1, viewed.Data.Len(), "the owning manager sees its own pending write")

	require.NoError(t, mgr.Commit())
	catEntry, _ = cat.Snapshot("students")
	require.Equal(t, 1, catEntry.Data.Len())
}

func TestNestedFrameMergesIntoParentWithoutFlushing(t *testing.T) {
	cat, mgr := setup(t)
	mgr.Begin() // outer
	mgr.Begin() // inner

	row, _ := relalg.NewRow(header(), map[string]relalg.Value{"name": relalg.String("bob")})
	rel, _ := relalg.New(header(), row)
	require.NoError(t, mgr.Stage("students", catalog.Entry{Header: header(), Data: rel, Constraints: map[string]catalog.Constraint{}}, false))

	require.NoError(t, mgr.Commit()) // inner merges into outer
	catEntry, _ := cat.Snapshot("students")
	require.Equal(t, 0, catEntry.Data.Len(), "merging into a non-outermost frame must not touch the store")

	viewed, ok := mgr.View("students")
	require.True(t, ok)
	require.Equal(t, 1, viewed.Data.Len())

	require.NoError(t, mgr.Commit()) // outer flushes
	catEntry, _ = cat.Snapshot("students")
	require.Equal(t, 1, catEntry.Data.Len())
}

func TestAbortDiscardsOverlay(t *testing.T) {
	cat, mgr := setup(t)
	mgr.Begin()
	row, _ := relalg.NewRow(header(), map[string]relalg.Value{"name": relalg.String("alice")})
	rel, _ := relalg.New(header(), row)
	require.NoError(t, mgr.Stage("students", catalog.Entry{Header: header(), Data: rel, Constraints: map[string]catalog.Constraint{}}, false))

	mgr.Abort()
	require.False(t, mgr.InTransaction())

	catEntry, _ := cat.Snapshot("students")
	require.Equal(t, 0, catEntry.Data.Len())
}

func TestStageRemoveHidesRelationWithinFrame(t *testing.T) {
	_, mgr := setup(t)
	mgr.Begin()
	require.NoError(t, mgr.StageRemove("students"))

	_, ok := mgr.View("students")
	require.False(t, ok)

	require.NoError(t, mgr.Commit())
	_, ok = mgr.View("students")
	require.False(t, ok)
}

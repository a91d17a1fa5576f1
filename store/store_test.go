package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdancer/reldb/codec"
	"github.com/bitdancer/reldb/relalg"
	"github.com/bitdancer/reldb/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir(), codec.NewRegistry(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func header() relalg.Header { return relalg.Header{"name": "string"} }

func nameRow(t *testing.T, name string) relalg.Row {
	t.Helper()
	r, err := relalg.NewRow(header(), map[string]relalg.Value{"name": relalg.String(name)})
	require.NoError(t, err)
	return r
}

func TestCreateAndLoadRelation(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.CreateRelation("students", header()))

	names, err := st.ListRelations()
	require.NoError(t, err)
	require.Contains(t, names, "students")

	loaded, err := st.LoadHeader("students")
	require.NoError(t, err)
	require.True(t, header().Equal(loaded))
}

func TestBulkReplaceAndLoadRows(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.CreateRelation("students", header()))
	require.NoError(t, st.BulkReplace("students", header(), []relalg.Row{nameRow(t, "alice"), nameRow(t, "bob")}))

	rows, err := st.LoadRows("students", header())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, st.BulkReplace("students", header(), []relalg.Row{nameRow(t, "carol")}))
	rows, err = st.LoadRows("students", header())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "carol", string(rows[0].MustGet("name").(relalg.String)))
}

func TestInsertAndDeleteRows(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.CreateRelation("students", header()))
	require.NoError(t, st.InsertRows("students", header(), []relalg.Row{nameRow(t, "alice")}))
	require.NoError(t, st.InsertRows("students", header(), []relalg.Row{nameRow(t, "bob")}))

	rows, err := st.LoadRows("students", header())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, st.DeleteRows("students", header(), []relalg.Row{nameRow(t, "alice")}))
	rows, err = st.LoadRows("students", header())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "bob", string(rows[0].MustGet("name").(relalg.String)))
}

func TestConstraintsAndKeyPersistence(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.CreateRelation("students", header()))
	require.NoError(t, st.SaveConstraint("students", "nonempty", `name != ""`))

	loaded, err := st.LoadConstraints("students")
	require.NoError(t, err)
	require.Equal(t, `name != ""`, loaded["nonempty"])

	require.NoError(t, st.SaveKey("students", []string{"name"}))
	attrs, ok, err := st.LoadKey("students")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"name"}, attrs)
}

func TestDropRelationRemovesEverything(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.CreateRelation("students", header()))
	require.NoError(t, st.InsertRows("students", header(), []relalg.Row{nameRow(t, "alice")}))
	require.NoError(t, st.SaveKey("students", []string{"name"}))

	require.NoError(t, st.SaveConstraint("students", "nonempty", `name != ""`))

	require.NoError(t, st.DropRelation("students"))
	names, err := st.ListRelations()
	require.NoError(t, err)
	require.NotContains(t, names, "students")

	rows, err := st.LoadRows("students", header())
	require.NoError(t, err)
	require.Len(t, rows, 0)
	_, ok, err := st.LoadKey("students")
	require.NoError(t, err)
	require.False(t, ok)
	cons, err := st.LoadConstraints("students")
	require.NoError(t, err)
	require.Len(t, cons, 0)
}

func TestTransactionCommit(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.CreateRelation("students", header()))

	tx, err := st.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.InsertRows("students", header(), []relalg.Row{nameRow(t, "alice")}))
	require.NoError(t, tx.Commit())

	rows, err := st.LoadRows("students", header())
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestTransactionRollback(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.CreateRelation("students", header()))

	tx, err := st.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.InsertRows("students", header(), []relalg.Row{nameRow(t, "alice")}))
	require.NoError(t, tx.Rollback())

	rows, err := st.LoadRows("students", header())
	require.NoError(t, err)
	require.Len(t, rows, 0)
}

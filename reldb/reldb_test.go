package reldb_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdancer/reldb/errs"
	"github.com/bitdancer/reldb/relalg"
	"github.com/bitdancer/reldb/reldb"
	"github.com/bitdancer/reldb/txn"
)

func header() relalg.Header { return relalg.Header{"name": "string", "mark": "int"} }

func newRow(t *testing.T, name string, mark int64) relalg.Row {
	t.Helper()
	r, err := relalg.NewRow(header(), map[string]relalg.Value{
		"name": relalg.String(name), "mark": relalg.Int(mark),
	})
	require.NoError(t, err)
	return r
}

func newDB(t *testing.T) *reldb.Database {
	t.Helper()
	db, err := reldb.Open(t.TempDir(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSetGetHasRemove(t *testing.T) {
	db := newDB(t)
	rel, err := relalg.New(header(), newRow(t, "alice", 90))
	require.NoError(t, err)

	require.NoError(t, db.Set("students", rel))
	require.True(t, db.Has("students"))

	got, err := db.Get("students")
	require.NoError(t, err)
	require.True(t, got.Equal(rel))

	require.NoError(t, db.Remove("students"))
	require.False(t, db.Has("students"))
}

func TestSetRejectsUnderscoreName(t *testing.T) {
	db := newDB(t)
	err := db.Set("_hidden", header())
	require.ErrorIs(t, err, errs.Sentinel(errs.NameInvalid))
}

func TestInsertEnforcesRowConstraint(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Set("students", header()))
	require.NoError(t, db.ConstrainRows("students", map[string]string{"mark_range": "0 <= mark <= 100"}))

	require.NoError(t, db.Insert("students", newRow(t, "alice", 90)))
	err := db.Insert("students", newRow(t, "bob", 150))
	require.Error(t, err)
	var re *errs.Error
	require.ErrorAs(t, err, &re)
	require.Equal(t, errs.RowConstraintViolated, re.Kind)

	rel, err := db.Get("students")
	require.NoError(t, err)
	require.Equal(t, 1, rel.Len(), "failed insert must not partially apply")
}

func TestSetKeyEnforcesUniqueness(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Set("students", header()))
	require.NoError(t, db.Insert("students", newRow(t, "alice", 90)))
	require.NoError(t, db.SetKey("students", []string{"name"}))

	err := db.Insert("students", newRow(t, "alice", 70))
	require.Error(t, err)
	var re *errs.Error
	require.ErrorAs(t, err, &re)
	require.Equal(t, errs.KeyViolated, re.Kind)
}

func TestUpdateAndDelete(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Set("students", header()))
	require.NoError(t, db.Insert("students", newRow(t, "alice", 50)))
	require.NoError(t, db.Insert("students", newRow(t, "bob", 90)))

	require.NoError(t, db.Update("students", "mark < 60", map[string]string{"mark": "mark + 10"}))
	rel, err := db.Get("students")
	require.NoError(t, err)
	for _, r := range rel.Rows() {
		if string(r.MustGet("name").(relalg.String)) == "alice" {
			require.Equal(t, relalg.Int(60), r.MustGet("mark"))
		}
	}

	require.NoError(t, db.Delete("students", "mark >= 90"))
	rel, err = db.Get("students")
	require.NoError(t, err)
	require.Equal(t, 1, rel.Len())
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Set("students", header()))

	err := db.Transaction(func(s *reldb.Session) error {
		return s.Insert("students", newRow(t, "alice", 90))
	})
	require.NoError(t, err)

	rel, err := db.Get("students")
	require.NoError(t, err)
	require.Equal(t, 1, rel.Len())
}

func TestTransactionRollbackSignalStopsPropagation(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Set("students", header()))

	outerErr := db.Transaction(func(s *reldb.Session) error {
		require.NoError(t, s.Insert("students", newRow(t, "alice", 90)))
		return s.Transaction(func(inner *reldb.Session) error {
			require.NoError(t, inner.Insert("students", newRow(t, "bob", 70)))
			return txn.NewRollback(nil)
		})
	})
	require.NoError(t, outerErr, "an inner Rollback must not propagate to the outer frame")

	rel, err := db.Get("students")
	require.NoError(t, err)
	require.Equal(t, 1, rel.Len(), "only alice's insert, from the outer frame, should have committed")
	require.Equal(t, "alice", string(rel.Rows()[0].MustGet("name").(relalg.String)))
}

func TestTransactionOtherErrorRollsBackWholeChain(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Set("students", header()))

	outerErr := db.Transaction(func(s *reldb.Session) error {
		require.NoError(t, s.Insert("students", newRow(t, "alice", 90)))
		return s.Transaction(func(inner *reldb.Session) error {
			require.NoError(t, inner.Insert("students", newRow(t, "bob", 70)))
			return errs.RowConstraintViolatedf("students", "manual", "n/a", "n/a")
		})
	})
	require.Error(t, outerErr, "a plain error from the inner frame must roll back the whole chain")

	rel, err := db.Get("students")
	require.NoError(t, err)
	require.Equal(t, 0, rel.Len())
}

func TestCloseAndReopenRoundTripsRelationConstraintsAndKey(t *testing.T) {
	dir := t.TempDir()

	db, err := reldb.Open(dir, nil, nil)
	require.NoError(t, err)

	require.NoError(t, db.Set("is_called", header()))
	require.NoError(t, db.ConstrainRows("is_called", map[string]string{"mark_range": "0 <= mark <= 100"}))
	require.NoError(t, db.SetKey("is_called", []string{"name"}))
	for _, r := range []relalg.Row{
		newRow(t, "alice", 90),
		newRow(t, "bob", 70),
		newRow(t, "carol", 60),
		newRow(t, "dave", 85),
		newRow(t, "erin", 55),
	} {
		require.NoError(t, db.Insert("is_called", r))
	}
	before, err := db.Get("is_called")
	require.NoError(t, err)
	require.Equal(t, 5, before.Len())

	require.NoError(t, db.Close())

	reopened, err := reldb.Open(dir, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	after, err := reopened.Get("is_called")
	require.NoError(t, err)
	require.Equal(t, 5, after.Len(), "get(is_called) must return a 5-row relation equal to the input")
	require.Equal(t, before.Header(), after.Header())
	require.True(t, after.Equal(before))

	preds, err := reopened.RowConstraints("is_called")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"mark_range": "0 <= mark <= 100"}, preds)

	key, err := reopened.Key("is_called")
	require.NoError(t, err)
	require.Equal(t, []string{"name"}, key)

	err = reopened.Insert("is_called", newRow(t, "frank", 150))
	require.Error(t, err, "the reloaded row constraint must still be enforced")

	err = reopened.Insert("is_called", newRow(t, "alice", 10))
	require.Error(t, err, "the reloaded key must still be enforced")
}

func TestSessionsAreIsolatedUntilCommit(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Set("students", header()))

	a := db.NewSession()
	require.NoError(t, a.Transaction(func(s *reldb.Session) error {
		if err := s.Insert("students", newRow(t, "alice", 90)); err != nil {
			return err
		}
		pending, err := db.Get("students")
		require.NoError(t, err)
		require.Equal(t, 0, pending.Len(), "another session must not see an uncommitted frame's write")
		return nil
	}))

	rel, err := db.Get("students")
	require.NoError(t, err)
	require.Equal(t, 1, rel.Len(), "commit through one session must be visible to a fresh read")
}

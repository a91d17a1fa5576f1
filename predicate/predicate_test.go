package predicate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdancer/reldb/predicate"
	"github.com/bitdancer/reldb/relalg"
)

func markRow(t *testing.T, mark int64) relalg.Row {
	t.Helper()
	h := relalg.Header{"mark": "int"}
	r, err := relalg.NewRow(h, map[string]relalg.Value{"mark": relalg.Int(mark)})
	require.NoError(t, err)
	return r
}

func TestChainedComparison(t *testing.T) {
	pred, err := predicate.Compile("0 <= mark <= 100")
	require.NoError(t, err)

	ok, err := pred.Eval(markRow(t, 55), nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = pred.Eval(markRow(t, 150), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBooleanLogicAndArithmetic(t *testing.T) {
	pred, err := predicate.Compile("mark > 50 and mark + 1 <= 101")
	require.NoError(t, err)
	ok, err := pred.Eval(markRow(t, 90), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInOperator(t *testing.T) {
	pred, err := predicate.Compile("mark in (60, 70, 80)")
	require.NoError(t, err)
	ok, err := pred.Eval(markRow(t, 70), nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = pred.Eval(markRow(t, 71), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNamespaceFallback(t *testing.T) {
	pred, err := predicate.Compile("mark >= passing_mark")
	require.NoError(t, err)
	ns := predicate.Namespace{"passing_mark": relalg.Int(60)}
	ok, err := pred.Eval(markRow(t, 60), ns)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUndefinedNameSurfacesError(t *testing.T) {
	pred, err := predicate.Compile("mark == unknown_name")
	require.NoError(t, err)
	_, err = pred.Eval(markRow(t, 1), nil)
	require.Error(t, err)
}

type cidType struct{ id string }

func (c cidType) TypeTag() string   { return "CID" }
func (c cidType) Equal(o relalg.Value) bool { ov, ok := o.(cidType); return ok && ov.id == c.id }
func (c cidType) String() string    { return c.id }

type cidConstructor struct{}

func (cidConstructor) TypeTag() string            { return "func" }
func (cidConstructor) Equal(relalg.Value) bool    { return false }
func (cidConstructor) String() string             { return "CID" }
func (cidConstructor) Call(args []interface{}) (relalg.Value, error) {
	return cidType{id: args[0].(string)}, nil
}

func TestRegisteredConstructorCallable(t *testing.T) {
	expr, err := predicate.CompileExpression(`CID("C1")`)
	require.NoError(t, err)
	ns := predicate.Namespace{"CID": cidConstructor{}}
	v, err := expr.Eval(markRow(t, 0), ns)
	require.NoError(t, err)
	require.Equal(t, "C1", v.(cidType).id)
}

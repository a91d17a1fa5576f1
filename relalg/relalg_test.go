package relalg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdancer/reldb/relalg"
)

func header() relalg.Header {
	return relalg.Header{"name": "string", "mark": "int"}
}

func row(t *testing.T, name string, mark int64) relalg.Row {
	t.Helper()
	r, err := relalg.NewRow(header(), map[string]relalg.Value{
		"name": relalg.String(name),
		"mark": relalg.Int(mark),
	})
	require.NoError(t, err)
	return r
}

func TestRelationSetSemantics(t *testing.T) {
	rel, err := relalg.New(header(), row(t, "alice", 90), row(t, "alice", 90), row(t, "bob", 70))
	require.NoError(t, err)
	require.Equal(t, 2, rel.Len(), "duplicate rows must collapse to one")
}

func TestUnionAndMinus(t *testing.T) {
	a, _ := relalg.New(header(), row(t, "alice", 90))
	b, _ := relalg.New(header(), row(t, "bob", 70))

	u, err := relalg.Union(a, b)
	require.NoError(t, err)
	require.Equal(t, 2, u.Len())

	m, err := relalg.Minus(u, a)
	require.NoError(t, err)
	require.True(t, m.Equal(b))
}

func TestIntersect(t *testing.T) {
	a, _ := relalg.New(header(), row(t, "alice", 90), row(t, "bob", 70))
	b, _ := relalg.New(header(), row(t, "bob", 70), row(t, "carol", 60))

	i, err := relalg.Intersect(a, b)
	require.NoError(t, err)
	require.Equal(t, 1, i.Len())
	require.True(t, i.Contains(row(t, "bob", 70)))
}

func TestProjectAndAllBut(t *testing.T) {
	rel, _ := relalg.New(header(), row(t, "alice", 90), row(t, "bob", 70))

	names, err := relalg.Project(rel, []string{"name"})
	require.NoError(t, err)
	require.Equal(t, relalg.Header{"name": "string"}, names.Header())
	require.Equal(t, 2, names.Len())

	marks, err := relalg.AllBut(rel, []string{"name"})
	require.NoError(t, err)
	require.Equal(t, relalg.Header{"mark": "int"}, marks.Header())
}

func TestRename(t *testing.T) {
	rel, _ := relalg.New(header(), row(t, "alice", 90))
	renamed, err := relalg.Rename(rel, map[string]string{"mark": "score"})
	require.NoError(t, err)
	require.Equal(t, relalg.Header{"name": "string", "score": "int"}, renamed.Header())
}

func TestWhere(t *testing.T) {
	rel, _ := relalg.New(header(), row(t, "alice", 90), row(t, "bob", 70))
	passed, err := relalg.Where(rel, func(r relalg.Row) (bool, error) {
		return int64(r.MustGet("mark").(relalg.Int)) >= 80, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, passed.Len())
	require.True(t, passed.Contains(row(t, "alice", 90)))
}

func TestExtend(t *testing.T) {
	rel, _ := relalg.New(header(), row(t, "alice", 90))
	extended, err := relalg.Extend(rel, "passed", "bool", func(r relalg.Row) (relalg.Value, error) {
		return relalg.Bool(int64(r.MustGet("mark").(relalg.Int)) >= 60), nil
	})
	require.NoError(t, err)
	for _, r := range extended.Rows() {
		require.Equal(t, relalg.Bool(true), r.MustGet("passed"))
	}
}

func TestJoinOnCommonAttribute(t *testing.T) {
	students, _ := relalg.New(header(), row(t, "alice", 90))
	gradesHeader := relalg.Header{"mark": "int", "grade": "string"}
	gradeRow, err := relalg.NewRow(gradesHeader, map[string]relalg.Value{
		"mark": relalg.Int(90), "grade": relalg.String("A"),
	})
	require.NoError(t, err)
	grades, err := relalg.New(gradesHeader, gradeRow)
	require.NoError(t, err)

	joined, err := relalg.Join(students, grades)
	require.NoError(t, err)
	require.Equal(t, 1, joined.Len())
	for _, r := range joined.Rows() {
		require.Equal(t, relalg.String("A"), r.MustGet("grade"))
	}
}

func TestMatchingAndNotMatching(t *testing.T) {
	students, _ := relalg.New(header(), row(t, "alice", 90), row(t, "bob", 70))
	gradesHeader := relalg.Header{"mark": "int", "grade": "string"}
	gradeRow, _ := relalg.NewRow(gradesHeader, map[string]relalg.Value{
		"mark": relalg.Int(90), "grade": relalg.String("A"),
	})
	grades, _ := relalg.New(gradesHeader, gradeRow)

	matching, err := relalg.Matching(students, grades)
	require.NoError(t, err)
	require.Equal(t, 1, matching.Len())

	notMatching, err := relalg.NotMatching(students, grades)
	require.NoError(t, err)
	require.Equal(t, 1, notMatching.Len())
	require.True(t, notMatching.Contains(row(t, "bob", 70)))
}

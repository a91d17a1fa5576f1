package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdancer/reldb/errs"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := errs.UnknownRelationf("students")
	require.ErrorIs(t, err, errs.Sentinel(errs.UnknownRelation))
	require.NotErrorIs(t, err, errs.Sentinel(errs.KeyViolated))
}

func TestCommitFailedUnwraps(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := errs.CommitFailedf(cause)
	require.ErrorIs(t, err, cause)
	require.True(t, errors.Is(err, cause))
}

func TestRowConstraintViolatedMessage(t *testing.T) {
	err := errs.RowConstraintViolatedf("students", "mark_range", "0 <= mark <= 100", "name=bob;mark=150")
	require.Contains(t, err.Error(), "mark_range")
	require.Contains(t, err.Error(), "bob")
}

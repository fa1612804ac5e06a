package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAfterCommitRunsOnlyOnSuccess(t *testing.T) {
	var fired int
	err := NopRunner{}.RunInTx(context.Background(), func(ctx context.Context) error {
		AfterCommit(ctx, func() { fired++ })
		require.Zero(t, fired)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, fired)
}

func TestAfterCommitSkippedWhenFnFails(t *testing.T) {
	boom := errors.New("boom")
	var fired int
	err := NopRunner{}.RunInTx(context.Background(), func(ctx context.Context) error {
		AfterCommit(ctx, func() { fired++ })
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, fired)
}

func TestAfterCommitOutsideBoundaryRunsImmediately(t *testing.T) {
	var fired int
	AfterCommit(context.Background(), func() { fired++ })
	require.Equal(t, 1, fired)
}

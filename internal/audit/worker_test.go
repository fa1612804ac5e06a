package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerMirrorsPublishedEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbox := make(chan Entry, 8)
	publisher := NewChannelPublisher(inbox)
	replica := NewInMemoryStore()

	done := make(chan error, 1)
	go func() {
		done <- NewWorker(replica, inbox).Run(ctx)
	}()

	for seq := uint64(1); seq <= 3; seq++ {
		err := publisher.Emit(ctx, Entry{
			Subject:      "subject-1",
			Sequence:     seq,
			SystemType:   "core",
			ActionTypeID: ActionIdentityCreated,
			DataHash:     "hash",
			CreatedAt:    time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		count, err := replica.CountBySubject(ctx, "subject-1")
		return err == nil && count == 3
	}, time.Second, 10*time.Millisecond)

	// Redelivery of an already-mirrored entry must not kill the worker.
	require.NoError(t, publisher.Emit(ctx, Entry{
		Subject:      "subject-1",
		Sequence:     2,
		SystemType:   "core",
		ActionTypeID: ActionIdentityCreated,
		DataHash:     "hash",
		CreatedAt:    time.Now().UTC(),
	}))

	require.Eventually(t, func() bool { return len(inbox) == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

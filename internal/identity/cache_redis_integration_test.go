//go:build integration

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"custodia/internal/identity"
	"custodia/pkg/testutil/containers"
)

func TestProfileCacheRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	cache := identity.NewProfileCache(rc.Client, time.Minute)

	// Miss before any write.
	got, err := cache.Get(ctx, "subject-1")
	require.NoError(t, err)
	require.Nil(t, got)

	ident := &identity.Identity{
		Principal:   "subject-1",
		Status:      identity.StatusActive,
		DataPointer: "enc://vault/1",
		Nonce:       3,
	}
	require.NoError(t, cache.Set(ctx, ident))

	got, err = cache.Get(ctx, "subject-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, ident.Principal, got.Principal)
	require.Equal(t, uint64(3), got.Nonce)

	require.NoError(t, cache.Invalidate(ctx, "subject-1"))
	got, err = cache.Get(ctx, "subject-1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestProfileCacheExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	cache := identity.NewProfileCache(rc.Client, 50*time.Millisecond)

	require.NoError(t, cache.Set(ctx, &identity.Identity{Principal: "subject-1"}))
	time.Sleep(100 * time.Millisecond)

	got, err := cache.Get(ctx, "subject-1")
	require.NoError(t, err)
	require.Nil(t, got)
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocklist_RoundTrip(t *testing.T) {
	bl := NewBlocklist()
	ctx := context.Background()

	blocked, err := bl.IsBlocked(ctx, 42)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, bl.Block(ctx, 42))

	blocked, err = bl.IsBlocked(ctx, 42)
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, bl.Unblock(ctx, 42))

	blocked, err = bl.IsBlocked(ctx, 42)
	require.NoError(t, err)
	assert.False(t, blocked)

	snapshot, err := bl.Blocked(ctx)
	require.NoError(t, err)
	assert.NotContains(t, snapshot, int64(42))
}

func TestBlocklist_Idempotent(t *testing.T) {
	bl := NewBlocklist()
	ctx := context.Background()

	require.NoError(t, bl.Block(ctx, 7))
	require.NoError(t, bl.Block(ctx, 7))

	snapshot, err := bl.Blocked(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot, 1)

	require.NoError(t, bl.Unblock(ctx, 7))
	require.NoError(t, bl.Unblock(ctx, 7))

	blocked, err := bl.IsBlocked(ctx, 7)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlocklist_SnapshotIsACopy(t *testing.T) {
	bl := NewBlocklist()
	ctx := context.Background()

	require.NoError(t, bl.Block(ctx, 1))

	snapshot, err := bl.Blocked(ctx)
	require.NoError(t, err)

	// Mutating the snapshot must not leak into the backend.
	delete(snapshot, 1)

	blocked, err := bl.IsBlocked(ctx, 1)
	require.NoError(t, err)
	assert.True(t, blocked)
}

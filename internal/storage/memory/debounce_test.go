package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-orlov/tgsentinel/internal/keys"
)

func TestDebouncer_FirstSightingThenDuplicate(t *testing.T) {
	d := NewDebouncer()
	ctx := context.Background()
	fp := keys.Fingerprint("hello")

	dup, err := d.Seen(ctx, "k", time.Minute, fp)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = d.Seen(ctx, "k", time.Minute, fp)
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestDebouncer_ExpiresAfterWindow(t *testing.T) {
	d := NewDebouncer()
	ctx := context.Background()
	fp := keys.Fingerprint("hello")

	dup, err := d.Seen(ctx, "k", 100*time.Millisecond, fp)
	require.NoError(t, err)
	require.False(t, dup)

	time.Sleep(150 * time.Millisecond)

	dup, err = d.Seen(ctx, "k", 100*time.Millisecond, fp)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestDebouncer_DuplicateDoesNotRefreshWindow(t *testing.T) {
	d := NewDebouncer()
	ctx := context.Background()
	fp := keys.Fingerprint("hello")
	window := 200 * time.Millisecond

	dup, err := d.Seen(ctx, "k", window, fp)
	require.NoError(t, err)
	require.False(t, dup)

	time.Sleep(120 * time.Millisecond)

	// Duplicate sighting; must not extend the original record.
	dup, err = d.Seen(ctx, "k", window, fp)
	require.NoError(t, err)
	require.True(t, dup)

	time.Sleep(120 * time.Millisecond)

	// 240ms since the first sighting: the record has expired even though
	// the duplicate arrived 120ms ago.
	dup, err = d.Seen(ctx, "k", window, fp)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestDebouncer_DistinctFingerprints(t *testing.T) {
	d := NewDebouncer()
	ctx := context.Background()

	dup, err := d.Seen(ctx, "k", time.Minute, keys.Fingerprint("one"))
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = d.Seen(ctx, "k", time.Minute, keys.Fingerprint("two"))
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestDebouncer_Clear(t *testing.T) {
	d := NewDebouncer()
	ctx := context.Background()
	fp := keys.Fingerprint("hello")

	_, err := d.Seen(ctx, "k", time.Minute, fp)
	require.NoError(t, err)

	require.NoError(t, d.Clear(ctx, "k"))

	dup, err := d.Seen(ctx, "k", time.Minute, fp)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestDebouncer_Cleanup(t *testing.T) {
	d := NewDebouncer()
	ctx := context.Background()

	_, err := d.Seen(ctx, "k", 50*time.Millisecond, keys.Fingerprint("old"))
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)
	d.Cleanup(50 * time.Millisecond)

	d.mu.Lock()
	size := len(d.seen)
	d.mu.Unlock()
	assert.Zero(t, size)
}

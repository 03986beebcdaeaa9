package usercache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-orlov/tgsentinel/internal/storage"
	"github.com/m-orlov/tgsentinel/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

// countingRepo tracks how often the delegate is actually consulted.
type countingRepo struct {
	storage.UserRepo
	gets int
}

func (r *countingRepo) Get(ctx context.Context, userID int64) (*storage.UserRecord, error) {
	r.gets++
	return r.UserRepo.Get(ctx, userID)
}

func TestCachedUserRepo_ReadThrough(t *testing.T) {
	client, _ := setupTestRedis(t)
	delegate := &countingRepo{UserRepo: memory.NewUserRepo()}
	repo := New(client, delegate, "s:", time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, repo.Register(ctx, 1, map[string]string{"username": "alice"}))

	first, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, delegate.gets)

	// Second read comes from the cache.
	second, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 1, delegate.gets)
	assert.Equal(t, "alice", second.Attributes["username"])
}

func TestCachedUserRepo_UpdateInvalidates(t *testing.T) {
	client, _ := setupTestRedis(t)
	delegate := &countingRepo{UserRepo: memory.NewUserRepo()}
	repo := New(client, delegate, "s:", time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, repo.Register(ctx, 1, map[string]string{"username": "alice"}))

	_, err := repo.Get(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, 1, map[string]string{"username": "eve"}))

	rec, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "eve", rec.Attributes["username"])
	assert.Equal(t, 2, delegate.gets)
}

func TestCachedUserRepo_IsRegisteredUsesCache(t *testing.T) {
	client, _ := setupTestRedis(t)
	delegate := memory.NewUserRepo()
	repo := New(client, delegate, "s:", time.Minute, testLogger())
	ctx := context.Background()

	registered, err := repo.IsRegistered(ctx, 1)
	require.NoError(t, err)
	assert.False(t, registered)

	require.NoError(t, repo.Register(ctx, 1, nil))

	_, err = repo.Get(ctx, 1)
	require.NoError(t, err)

	registered, err = repo.IsRegistered(ctx, 1)
	require.NoError(t, err)
	assert.True(t, registered)
}

func TestCachedUserRepo_CacheOutageFallsBack(t *testing.T) {
	client, mr := setupTestRedis(t)
	delegate := memory.NewUserRepo()
	repo := New(client, delegate, "s:", time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, repo.Register(ctx, 1, map[string]string{"username": "alice"}))

	mr.Close()

	rec, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.Attributes["username"])
}

func TestCachedUserRepo_ExpiredEntryRefetches(t *testing.T) {
	client, mr := setupTestRedis(t)
	delegate := &countingRepo{UserRepo: memory.NewUserRepo()}
	repo := New(client, delegate, "s:", time.Second, testLogger())
	ctx := context.Background()

	require.NoError(t, repo.Register(ctx, 1, nil))

	_, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, delegate.gets)

	mr.FastForward(2 * time.Second)

	_, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, delegate.gets)
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepo_RegisterAndGet(t *testing.T) {
	repo := NewUserRepo()
	ctx := context.Background()

	registered, err := repo.IsRegistered(ctx, 1)
	require.NoError(t, err)
	assert.False(t, registered)

	require.NoError(t, repo.Register(ctx, 1, map[string]string{"username": "alice"}))

	registered, err = repo.IsRegistered(ctx, 1)
	require.NoError(t, err)
	assert.True(t, registered)

	rec, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.UserID)
	assert.Equal(t, "alice", rec.Attributes["username"])
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestUserRepo_RegisterIsCreateOnly(t *testing.T) {
	repo := NewUserRepo()
	ctx := context.Background()

	require.NoError(t, repo.Register(ctx, 1, map[string]string{"username": "alice"}))
	require.NoError(t, repo.Register(ctx, 1, map[string]string{"username": "eve"}))

	rec, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.Attributes["username"])
}

func TestUserRepo_UpdateMergesAttributes(t *testing.T) {
	repo := NewUserRepo()
	ctx := context.Background()

	require.NoError(t, repo.Register(ctx, 1, map[string]string{"username": "alice"}))
	require.NoError(t, repo.Update(ctx, 1, map[string]string{"lang": "en"}))

	rec, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.Attributes["username"])
	assert.Equal(t, "en", rec.Attributes["lang"])
}

func TestUserRepo_UpdateUnknownIDIsNoop(t *testing.T) {
	repo := NewUserRepo()
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, 99, map[string]string{"lang": "en"}))

	rec, err := repo.Get(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUserRepo_GetReturnsCopy(t *testing.T) {
	repo := NewUserRepo()
	ctx := context.Background()

	require.NoError(t, repo.Register(ctx, 1, map[string]string{"username": "alice"}))

	rec, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	rec.Attributes["username"] = "mallory"

	fresh, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", fresh.Attributes["username"])
}

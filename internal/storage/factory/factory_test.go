package factory

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-orlov/tgsentinel/pkg/config"
)

func sentinelCfg(backend string) config.SentinelConfig {
	return config.SentinelConfig{
		Backend:    backend,
		Prefix:     "s:",
		RateLimit:  10,
		RateWindow: time.Minute,
	}
}

func TestBuild_Memory(t *testing.T) {
	backends, err := Build(sentinelCfg("memory"), Options{})
	require.NoError(t, err)

	assert.NotNil(t, backends.Rate)
	assert.NotNil(t, backends.Debounce)
	assert.NotNil(t, backends.Blocklist)
	assert.NotNil(t, backends.Users)
}

func TestBuild_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backends, err := Build(sentinelCfg("redis"), Options{Redis: client})
	require.NoError(t, err)
	assert.NotNil(t, backends.Rate)
	assert.NotNil(t, backends.Users)
}

func TestBuild_NormalizesPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := sentinelCfg("redis")
	cfg.Prefix = "myapp"

	backends, err := Build(cfg, Options{Redis: client})
	require.NoError(t, err)

	require.NoError(t, backends.Blocklist.Block(t.Context(), 42))
	assert.True(t, mr.Exists("myapp:blocklist"))
}

func TestBuild_RedisWithoutClient(t *testing.T) {
	_, err := Build(sentinelCfg("redis"), Options{})
	assert.Error(t, err)
}

func TestBuild_UnknownBackend(t *testing.T) {
	_, err := Build(sentinelCfg("etcd"), Options{})
	assert.Error(t, err)
}

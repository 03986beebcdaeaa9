package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-orlov/tgsentinel/pkg/config"
)

func TestNew(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		log, err := New(config.LogConfig{Level: "debug", Format: "text"}, "test")
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.True(t, log.Enabled(t.Context(), slog.LevelDebug))
	})

	t.Run("json format", func(t *testing.T) {
		log, err := New(config.LogConfig{Level: "warn", Format: "json"}, "test")
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.False(t, log.Enabled(t.Context(), slog.LevelInfo))
		assert.True(t, log.Enabled(t.Context(), slog.LevelWarn))
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

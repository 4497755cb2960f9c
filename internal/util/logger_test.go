package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"citypulse/internal/config"
)

func TestServiceLogger_Uninitialized(t *testing.T) {
	var l ServiceLogger
	assert.ErrorIs(t, l.Log(LOG_LEVEL_INFO, "dropped"), ErrLogNotInitialized)
	l.Info("also dropped")
	l.DeInit()

	var nilLogger *ServiceLogger
	assert.ErrorIs(t, nilLogger.Log(LOG_LEVEL_ERROR, "nil"), ErrLogNotInitialized)
}

func TestServiceLogger_WritesToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	var l ServiceLogger
	require.NoError(t, l.Init(config.LogConfig{Dir: dir, File: "test.log", Level: "info"}))

	assert.NoError(t, l.Log(LOG_LEVEL_INFO, "service started", zap.String("addr", ":8080")))
	l.Debug("below threshold")
	l.Error("store failure", zap.Int("code", 303001))
	l.DeInit()

	body, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "INFO")
	assert.Contains(t, text, "service started")
	assert.Contains(t, text, `"addr": ":8080"`)
	assert.Contains(t, text, "ERROR")
	assert.NotContains(t, text, "below threshold")

	assert.ErrorIs(t, l.Log(LOG_LEVEL_INFO, "after shutdown"), ErrLogNotInitialized)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]int{
		"error": LOG_LEVEL_ERROR,
		"WARN":  LOG_LEVEL_WARN,
		"":      LOG_LEVEL_INFO,
		"debug": LOG_LEVEL_DEBUG,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	id := NewRequestID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, NewRequestID())
	assert.Equal(t, id, RequestID(WithRequestID(ctx, id)))
}

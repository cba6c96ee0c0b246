package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busnode/host/config"
)

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.log")

	log, err := New(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		File:   config.LumberjackConfig{Filename: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	NodeDebugWriter(log)("[BUS] discarded frame")
	log.Info("node up")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"[BUS] discarded frame"`)
	assert.Contains(t, string(data), `"level":"debug"`)
	assert.Contains(t, string(data), `"msg":"node up"`)
}

func TestNewLevel(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "WARN"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1))
	assert.True(t, log.Core().Enabled(1))

	log, err = New(config.LoggingConfig{Level: "bogus"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(0), "falls back to info")
	assert.False(t, log.Core().Enabled(-1))
}

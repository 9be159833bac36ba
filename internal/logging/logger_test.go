package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	logger, err := New("debug", false)
	require.NoError(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(zap.DebugLevel))

	logger, err = New("warn", true)
	require.NoError(t, err)
	assert.False(t, logger.Desugar().Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Desugar().Core().Enabled(zap.WarnLevel))

	logger, err = New("chatty", false)
	require.NoError(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Desugar().Core().Enabled(zap.DebugLevel))
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "console.log")

	w := RotatingFile(path, 1, 2, 1)
	_, err := w.Write([]byte("[12:00:00] [Server thread/INFO]: Done\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[12:00:00] [Server thread/INFO]: Done\n", string(data))
}

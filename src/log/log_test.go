package log

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "crawler.log")

	logger, closer, err := New("info", path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("poll", zap.Int("attempt", 1))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "poll", entry["msg"])
	assert.Equal(t, 1.0, entry["attempt"])
	assert.Contains(t, entry, "caller")
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_Stderr(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	stderr := os.Stderr
	os.Stderr = w
	logger, closer, err := New("warn", "")
	os.Stderr = stderr
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("store failed")
	require.NoError(t, closer.Close())
	require.NoError(t, w.Close())

	data, err := io.ReadAll(r)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "store failed", entry["msg"])
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New("verbose", "")
	assert.Error(t, err)
}

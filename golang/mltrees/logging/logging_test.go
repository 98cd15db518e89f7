package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileLoggerWritesJSON(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "train.log")
	logger, err := New(Config{Level: "debug", File: filename, JSON: true})
	require.NoError(t, err)
	logger.Debug("tree number", zap.Int("stage", 3))
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry))
	assert.Equal(t, "tree number", entry["msg"])
	assert.Equal(t, 3.0, entry["stage"])
}

func TestLevelFilters(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "train.log")
	logger, err := New(Config{Level: "warn", File: filename})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hidden")
	assert.Contains(t, string(content), "shown")
}

func TestUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

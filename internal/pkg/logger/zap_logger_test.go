package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLogger_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.log")
	log := NewIsolatedLogger(path)

	log.Debug("Hub", "dropped below level", nil)
	log.Info("Hub", "client registered", map[string]interface{}{"job_id": "j1"})
	log.Error("Hub", "redis publish failed", map[string]interface{}{"error": "timeout"})
	_ = log.Sync()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "client registered", lines[0]["message"])
	assert.Equal(t, "Hub", lines[0]["module"])
	assert.Equal(t, "j1", lines[0]["details"].(map[string]interface{})["job_id"])
	assert.Contains(t, lines[0], "timestamp")

	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "timeout", lines[1]["error_ref"])
}

func TestNopLogger(t *testing.T) {
	var log ILogger = NewNopLogger()
	assert.NotPanics(t, func() {
		log.Info("X", "ignored", nil)
		log.Error("X", "ignored", map[string]interface{}{"error": "e"})
	})
}

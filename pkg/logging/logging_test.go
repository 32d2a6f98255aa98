package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adomirror/adomirror/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		err  bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStderrOnly(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(config.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer l.Close()

	l.Info("hidden")
	l.Warn("shown", "jobID", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "jobID=abc")
}

func TestSetLevelAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(config.LogConfig{Level: "info"}, &buf)
	require.NoError(t, err)

	l.Debug("before")
	require.NoError(t, l.SetLevel("debug"))
	l.Debug("after")

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")

	assert.Error(t, l.SetLevel("loud"))
	assert.Equal(t, slog.LevelDebug, l.Level.Level())
}

func TestFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adomirror.log")
	var stderr bytes.Buffer
	l, err := newWithWriter(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1}, &stderr)
	require.NoError(t, err)

	l.Info("extraction completed", "artifactType", "workitems")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "extraction completed", rec["msg"])
	assert.Equal(t, "workitems", rec["artifactType"])
	assert.Contains(t, stderr.String(), "extraction completed")
}

func TestUnknownLevelRejected(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"})
	assert.ErrorContains(t, err, "unknown log level")
}

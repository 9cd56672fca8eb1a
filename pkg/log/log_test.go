package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"stderr only with defaults", Config{}, false},
		{"file output", Config{Path: "/tmp/logs", RotationTime: "24h", MaxAge: "168h", Level: "debug", Format: "json"}, false},
		{"file output without rotation", Config{Path: "/tmp/logs", MaxAge: "168h"}, true},
		{"file output without max age", Config{Path: "/tmp/logs", RotationTime: "24h"}, true},
		{"bad level", Config{Level: "verbose"}, true},
		{"bad format", Config{Format: "xml"}, true},
		{"level is case insensitive", Config{Level: "WARN"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewHandler(t *testing.T) {
	t.Run("json format honours level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewHandler(Config{Level: "warn", Format: "json"}, &buf))

		logger.Info("dropped")
		logger.Warn("kept", "module", "test")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "kept", entry["msg"])
		assert.Equal(t, "test", entry["module"])
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{6}$`, entry["time"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewHandler(Config{Level: "debug", Format: "text"}, &buf))

		logger.Debug("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}

func TestMapLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, mapLevel("debug"))
	assert.Equal(t, slog.LevelInfo, mapLevel("info"))
	assert.Equal(t, slog.LevelWarn, mapLevel("Warn"))
	assert.Equal(t, slog.LevelError, mapLevel("error"))
	assert.Equal(t, slog.LevelInfo, mapLevel("unknown"))
}

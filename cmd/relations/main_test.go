package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefault(t *testing.T) {
	t.Setenv("RELATIONS_CONFIG", "")
	assert.Equal(t, defaultConfig, configDefault())

	t.Setenv("RELATIONS_CONFIG", "/etc/relations.toml")
	assert.Equal(t, "/etc/relations.toml", configDefault())
}

func TestRunReportsConfigPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	err := run([]string{"-config", missing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	assert.Error(t, run([]string{"-port", "1"}))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"", log.InfoLevel},
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{" warn ", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestConfigure_InvalidFormat(t *testing.T) {
	err := Configure(Options{Format: "xml"})
	assert.ErrorContains(t, err, "invalid log format")
}

func TestConfigure_EnvOverridesLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	require.NoError(t, Configure(Options{Level: "debug", Quiet: true}))
	t.Cleanup(func() { _ = Configure(Options{}) })

	assert.Equal(t, log.ErrorLevel, Default().GetLevel())
}

func TestConfigure_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planthealth.log")
	require.NoError(t, Configure(Options{Level: "info", Format: FormatJSON, File: path, Quiet: true}))
	t.Cleanup(func() { _ = Configure(Options{}) })

	For("test").Info("GATE_FAULT", "reason", "short buffer")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"GATE_FAULT"`)
	assert.Contains(t, string(data), `"reason":"short buffer"`)
}

func TestNew_WritesLogfmt(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, log.DebugLevel)
	logger.Debug("ROUTE", "intent", "disease")
	assert.Contains(t, buf.String(), "intent=disease")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("ignored")
}

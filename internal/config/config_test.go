// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears every variable Load consults.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, key := range []string{
		"PLANTHEALTH_ENV", "PLANTHEALTH_HOST", "PLANTHEALTH_PORT", "PORT",
		"PLANTHEALTH_ALLOWED_ORIGINS", "PLANTHEALTH_PRIMARY_MODEL", "PLANTHEALTH_SECONDARY_MODEL",
		"PLANTHEALTH_REMOTE_BASE_URL", "PLANTHEALTH_REMOTE_MODEL", "PLANTHEALTH_REMOTE_API_KEY",
		"LOVABLE_API_KEY", "PLANTHEALTH_SESSION_DRIVER", "PLANTHEALTH_REDIS_ADDR",
		"PLANTHEALTH_KB_PATH", "LOG_LEVEL", "PLANTHEALTH_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	// .env is resolved relative to the working directory.
	t.Chdir(home)
	return home
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, int64(10*1024*1024), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 0.6, cfg.Inference.PrimaryWeight)
	assert.Equal(t, 0.4, cfg.Inference.SecondaryWeight)
	assert.Equal(t, "efficientnet", cfg.Inference.Primary)
	assert.Equal(t, "vit", cfg.Inference.Secondary)
	assert.Equal(t, GateConfig{SampleSize: 1000, GreenThreshold: 200, MinPixels: 100}, cfg.Gate)
	assert.Equal(t, 30*time.Second, cfg.Inference.Timeout())
	assert.Contains(t, cfg.Server.AllowedOrigins, "*")
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults_PartialConfig(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 8080}}
	cfg.SetDefaults()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Session.Driver)
	assert.Equal(t, 1000, cfg.Gate.SampleSize)
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults_ProductionOrigins(t *testing.T) {
	cfg := &Config{Environment: EnvProduction}
	cfg.SetDefaults()
	assert.Equal(t, []string{ProductionOrigin}, cfg.Server.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"weights not summing to one", func(c *Config) { c.Inference.PrimaryWeight = 0.7 }, "inference.weights"},
		{"negative weight", func(c *Config) { c.Inference.PrimaryWeight = -0.2; c.Inference.SecondaryWeight = 1.2 }, "inference.weights"},
		{"unknown adapter", func(c *Config) { c.Inference.Secondary = "resnet" }, "inference.secondary"},
		{"unknown session driver", func(c *Config) { c.Session.Driver = "sqlite" }, "session.driver"},
		{"watch without path", func(c *Config) { c.Knowledge.Watch = true }, "knowledge.watch"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"remote without model", func(c *Config) { c.Inference.Primary = "remote"; c.Inference.Remote.Model = "" }, "inference.remote.model"},
		{"bad environment", func(c *Config) { c.Environment = "staging" }, "environment"},
		{"zero sample", func(c *Config) { c.Gate.SampleSize = 0 }, "gate.sample_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			fields := make([]string, len(verrs))
			for i, v := range verrs {
				fields[i] = v.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidate_EqualWeights(t *testing.T) {
	cfg := Default()
	cfg.Inference.PrimaryWeight = 0.5
	cfg.Inference.SecondaryWeight = 0.5
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".planthealth")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
environment = "production"

[server]
port = 8088

[inference]
primary = "vit"
secondary = "efficientnet"
primary_weight = 0.5
secondary_weight = 0.5

[session]
driver = "redis"
redis_addr = "redis:6379"
ttl_seconds = 3600
`), 0600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, []string{ProductionOrigin}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "vit", cfg.Inference.Primary)
	assert.Equal(t, "redis", cfg.Session.Driver)
	assert.Equal(t, time.Hour, cfg.Session.TTL())
	assert.Equal(t, 1000, cfg.Gate.SampleSize)
}

func TestLoad_JSONFallback(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".planthealth")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"server":{"port":9000},"logging":{"level":"debug"}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nprot = 1\n"), 0600))

	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "unknown config keys")
}

func TestLoadFromPath_InvalidValues(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "weights.toml")
	require.NoError(t, os.WriteFile(path, []byte("[inference]\nprimary_weight = 0.9\nsecondary_weight = 0.4\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	var verrs ValidateErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "7000")
	t.Setenv("PLANTHEALTH_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOVABLE_API_KEY", "lovable")
	t.Setenv("PLANTHEALTH_SECONDARY_MODEL", "REMOTE")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "lovable", cfg.Inference.Remote.APIKey)
	assert.Equal(t, "remote", cfg.Inference.Secondary)
	assert.Equal(t, "debug", cfg.Logging.Level)

	t.Setenv("PLANTHEALTH_REMOTE_API_KEY", "explicit")
	t.Setenv("PLANTHEALTH_PORT", "7100")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "explicit", cfg.Inference.Remote.APIKey)
	assert.Equal(t, 7100, cfg.Server.Port)
}

func TestLoad_DotEnv(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".env"), []byte("PLANTHEALTH_PORT=6123\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("PLANTHEALTH_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6123, cfg.Server.Port)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	want := Default()
	want.Server.Port = 5050
	want.Knowledge.OverridePath = "/etc/planthealth/kb.yaml"
	require.NoError(t, SaveTOML(want, path))

	got, err := LoadFromPath(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGlobal(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	cfg := Default()
	cfg.Server.Port = 1234
	SetGlobal(cfg)
	assert.Equal(t, 1234, Global().Server.Port)

	ResetGlobalForTesting()
	assert.Equal(t, DefaultPort, Global().Server.Port)
}

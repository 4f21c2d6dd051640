// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/planthealth/internal/util"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the root configuration.
type Config struct {
	// Environment selects a profile: development, production or testing.
	Environment string `toml:"environment" json:"environment"`

	Server    ServerConfig    `toml:"server" json:"server"`
	Gate      GateConfig      `toml:"gate" json:"gate"`
	Inference InferenceConfig `toml:"inference" json:"inference"`
	Knowledge KnowledgeConfig `toml:"knowledge" json:"knowledge"`
	Session   SessionConfig   `toml:"session" json:"session"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string   `toml:"host" json:"host"`
	Port           int      `toml:"port" json:"port"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`

	// MaxUploadBytes caps the decoded image size.
	MaxUploadBytes int64 `toml:"max_upload_bytes" json:"max_upload_bytes"`

	// MaxConcurrentAnalyses bounds CPU-heavy analyze requests in flight.
	MaxConcurrentAnalyses int `toml:"max_concurrent_analyses" json:"max_concurrent_analyses"`

	// RateLimit is requests per second per client IP; RateBurst is the bucket size.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`

	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds"`
}

// GateConfig holds the plant-content gate thresholds.
type GateConfig struct {
	SampleSize     int `toml:"sample_size" json:"sample_size"`
	GreenThreshold int `toml:"green_threshold" json:"green_threshold"`
	MinPixels      int `toml:"min_pixels" json:"min_pixels"`
}

// InferenceConfig selects and weights the two classification adapters.
type InferenceConfig struct {
	Primary         string       `toml:"primary" json:"primary"`
	Secondary       string       `toml:"secondary" json:"secondary"`
	PrimaryWeight   float64      `toml:"primary_weight" json:"primary_weight"`
	SecondaryWeight float64      `toml:"secondary_weight" json:"secondary_weight"`
	TimeoutSeconds  int          `toml:"timeout_seconds" json:"timeout_seconds"`
	Remote          RemoteConfig `toml:"remote" json:"remote"`
}

// RemoteConfig configures the OpenAI-compatible vision adapter.
type RemoteConfig struct {
	BaseURL   string `toml:"base_url" json:"base_url"`
	APIKey    string `toml:"api_key" json:"api_key,omitempty"`
	Model     string `toml:"model" json:"model"`
	MaxTokens int    `toml:"max_tokens" json:"max_tokens"`
}

// KnowledgeConfig configures the advice knowledge base.
type KnowledgeConfig struct {
	// OverridePath points to a YAML file replacing the embedded knowledge base.
	OverridePath string `toml:"override_path" json:"override_path"`
	// Watch reloads OverridePath when it changes on disk.
	Watch bool `toml:"watch" json:"watch"`
}

// SessionConfig selects the chat session store.
type SessionConfig struct {
	Driver        string `toml:"driver" json:"driver"`
	RedisAddr     string `toml:"redis_addr" json:"redis_addr"`
	RedisPassword string `toml:"redis_password" json:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db" json:"redis_db"`
	KeyPrefix     string `toml:"key_prefix" json:"key_prefix"`
	// TTLSeconds expires idle redis sessions; 0 keeps them indefinitely.
	TTLSeconds int `toml:"ttl_seconds" json:"ttl_seconds"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"

	DefaultPort           = 5000
	DefaultMaxUploadBytes = 10 * 1024 * 1024
	DefaultRemoteBaseURL  = "https://ai.gateway.lovable.dev/v1"
	DefaultRemoteModel    = "google/gemini-2.5-flash"
	ProductionOrigin      = "https://planthealth123.lovable.app"
)

// DevelopmentOrigins are the CORS origins allowed outside production.
var DevelopmentOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	ProductionOrigin,
	"*",
}

// Default returns the development profile defaults.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   DefaultPort,
			AllowedOrigins:         append([]string(nil), DevelopmentOrigins...),
			MaxUploadBytes:         DefaultMaxUploadBytes,
			MaxConcurrentAnalyses:  4,
			RateLimit:              5,
			RateBurst:              20,
			ShutdownTimeoutSeconds: 10,
		},
		Gate: GateConfig{
			SampleSize:     1000,
			GreenThreshold: 200,
			MinPixels:      100,
		},
		Inference: InferenceConfig{
			Primary:         "efficientnet",
			Secondary:       "vit",
			PrimaryWeight:   0.6,
			SecondaryWeight: 0.4,
			TimeoutSeconds:  30,
			Remote: RemoteConfig{
				BaseURL:   DefaultRemoteBaseURL,
				Model:     DefaultRemoteModel,
				MaxTokens: 1024,
			},
		},
		Session: SessionConfig{
			Driver:    "memory",
			RedisAddr: "localhost:6379",
			KeyPrefix: "planthealth:session:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Environment == "" {
		c.Environment = d.Environment
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.AllowedOrigins == nil {
		c.Server.AllowedOrigins = originsFor(c.Environment)
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = d.Server.MaxUploadBytes
	}
	if c.Server.MaxConcurrentAnalyses == 0 {
		c.Server.MaxConcurrentAnalyses = d.Server.MaxConcurrentAnalyses
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = d.Server.RateLimit
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = d.Server.ShutdownTimeoutSeconds
	}
	if c.Gate.SampleSize == 0 {
		c.Gate.SampleSize = d.Gate.SampleSize
	}
	if c.Gate.GreenThreshold == 0 {
		c.Gate.GreenThreshold = d.Gate.GreenThreshold
	}
	if c.Gate.MinPixels == 0 {
		c.Gate.MinPixels = d.Gate.MinPixels
	}
	if c.Inference.Primary == "" {
		c.Inference.Primary = d.Inference.Primary
	}
	if c.Inference.Secondary == "" {
		c.Inference.Secondary = d.Inference.Secondary
	}
	if c.Inference.PrimaryWeight == 0 && c.Inference.SecondaryWeight == 0 {
		c.Inference.PrimaryWeight = d.Inference.PrimaryWeight
		c.Inference.SecondaryWeight = d.Inference.SecondaryWeight
	}
	if c.Inference.TimeoutSeconds == 0 {
		c.Inference.TimeoutSeconds = d.Inference.TimeoutSeconds
	}
	if c.Inference.Remote.BaseURL == "" {
		c.Inference.Remote.BaseURL = d.Inference.Remote.BaseURL
	}
	if c.Inference.Remote.Model == "" {
		c.Inference.Remote.Model = d.Inference.Remote.Model
	}
	if c.Inference.Remote.MaxTokens == 0 {
		c.Inference.Remote.MaxTokens = d.Inference.Remote.MaxTokens
	}
	if c.Session.Driver == "" {
		c.Session.Driver = d.Session.Driver
	}
	if c.Session.RedisAddr == "" {
		c.Session.RedisAddr = d.Session.RedisAddr
	}
	if c.Session.KeyPrefix == "" {
		c.Session.KeyPrefix = d.Session.KeyPrefix
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// originsFor returns the CORS origins for a profile. Production only admits
// the deployed frontend.
func originsFor(env string) []string {
	if env == EnvProduction {
		return []string{ProductionOrigin}
	}
	return append([]string(nil), DevelopmentOrigins...)
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// Timeout returns the per-analysis inference deadline.
func (i InferenceConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// TTL returns the redis session expiry.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.planthealth.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".planthealth"), nil
}

// ConfigPathTOML returns the TOML config path.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the JSON fallback config path.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads .env, then the TOML config, then the JSON config, then falls back
// to defaults. Environment overrides, defaults and validation apply in every
// case.
func Load() (*Config, error) {
	loadDotEnv(".env")

	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		return LoadFromPath(path)
	}

	return finish(Default())
}

// LoadFromPath loads a specific file. Files ending in .json are decoded as
// JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	loadDotEnv(".env")

	cfg := &Config{}
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding the real environment.
// A missing file is not an error.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not parse %s: %v\n", path, err)
	}
}

// =============================================================================
// SAVING
// =============================================================================

// SaveTOML writes cfg to path atomically with owner-only permissions, since
// the file may carry an API key.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# planthealth configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// AdapterKinds lists the accepted inference adapter names.
var AdapterKinds = []string{"efficientnet", "vit", "remote"}

// Validate checks every section and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		add("environment", "must be development, production or testing, got %q", c.Environment)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes < 100 {
		add("server.max_upload_bytes", "must be at least 100 bytes")
	}
	if c.Server.MaxConcurrentAnalyses < 1 {
		add("server.max_concurrent_analyses", "must be at least 1")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1")
	}

	if c.Gate.SampleSize < 1 {
		add("gate.sample_size", "must be at least 1")
	}
	if c.Gate.GreenThreshold < 0 {
		add("gate.green_threshold", "must not be negative")
	}
	if c.Gate.MinPixels < 0 {
		add("gate.min_pixels", "must not be negative")
	}

	if !isAdapterKind(c.Inference.Primary) {
		add("inference.primary", "unknown adapter %q (valid: %s)", c.Inference.Primary, strings.Join(AdapterKinds, ", "))
	}
	if !isAdapterKind(c.Inference.Secondary) {
		add("inference.secondary", "unknown adapter %q (valid: %s)", c.Inference.Secondary, strings.Join(AdapterKinds, ", "))
	}
	w1, w2 := c.Inference.PrimaryWeight, c.Inference.SecondaryWeight
	if w1 < 0 || w1 > 1 || w2 < 0 || w2 > 1 {
		add("inference.weights", "each weight must be within [0, 1]")
	} else if math.Abs(w1+w2-1) > 1e-9 {
		add("inference.weights", "primary_weight + secondary_weight must equal 1, got %g", w1+w2)
	}
	if c.Inference.TimeoutSeconds < 1 {
		add("inference.timeout_seconds", "must be at least 1")
	}
	if c.Inference.Primary == "remote" || c.Inference.Secondary == "remote" {
		if c.Inference.Remote.BaseURL == "" {
			add("inference.remote.base_url", "required when a remote adapter is selected")
		}
		if c.Inference.Remote.Model == "" {
			add("inference.remote.model", "required when a remote adapter is selected")
		}
	}

	if c.Knowledge.Watch && c.Knowledge.OverridePath == "" {
		add("knowledge.watch", "requires knowledge.override_path")
	}

	switch c.Session.Driver {
	case "memory":
	case "redis":
		if c.Session.RedisAddr == "" {
			add("session.redis_addr", "required for the redis driver")
		}
	default:
		add("session.driver", "must be memory or redis, got %q", c.Session.Driver)
	}
	if c.Session.TTLSeconds < 0 {
		add("session.ttl_seconds", "must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", "must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json", "logfmt":
	default:
		add("logging.format", "must be text, json or logfmt, got %q", c.Logging.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isAdapterKind(kind string) bool {
	for _, k := range AdapterKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies PLANTHEALTH_* variables on top of file values.
func (c *Config) ApplyEnvOverrides() {
	if env := os.Getenv("PLANTHEALTH_ENV"); env != "" {
		c.Environment = strings.ToLower(env)
		c.Server.AllowedOrigins = originsFor(c.Environment)
	}

	if host := os.Getenv("PLANTHEALTH_HOST"); host != "" {
		c.Server.Host = host
	}
	for _, key := range []string{"PORT", "PLANTHEALTH_PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				c.Server.Port = port
			}
		}
	}
	if origins := os.Getenv("PLANTHEALTH_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	if v := os.Getenv("PLANTHEALTH_PRIMARY_MODEL"); v != "" {
		c.Inference.Primary = strings.ToLower(v)
	}
	if v := os.Getenv("PLANTHEALTH_SECONDARY_MODEL"); v != "" {
		c.Inference.Secondary = strings.ToLower(v)
	}
	if v := os.Getenv("PLANTHEALTH_REMOTE_BASE_URL"); v != "" {
		c.Inference.Remote.BaseURL = v
	}
	if v := os.Getenv("PLANTHEALTH_REMOTE_MODEL"); v != "" {
		c.Inference.Remote.Model = v
	}
	if v := os.Getenv("LOVABLE_API_KEY"); v != "" {
		c.Inference.Remote.APIKey = v
	}
	if v := os.Getenv("PLANTHEALTH_REMOTE_API_KEY"); v != "" {
		c.Inference.Remote.APIKey = v
	}

	if v := os.Getenv("PLANTHEALTH_SESSION_DRIVER"); v != "" {
		c.Session.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("PLANTHEALTH_REDIS_ADDR"); v != "" {
		c.Session.RedisAddr = v
	}

	if v := os.Getenv("PLANTHEALTH_KB_PATH"); v != "" {
		c.Knowledge.OverridePath = v
	}

	for _, key := range []string{"LOG_LEVEL", "PLANTHEALTH_LOG_LEVEL"} {
		if v := os.Getenv(key); v != "" {
			c.Logging.Level = strings.ToLower(v)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalConfig *Config
	globalOnce   sync.Once
	globalMu     sync.RWMutex
)

// Global returns the process-wide config, loading it on first use. Load
// failures fall back to defaults.
func Global() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v; using defaults\n", err)
			cfg = Default()
		}
		globalMu.Lock()
		globalConfig = cfg
		globalMu.Unlock()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide config.
func SetGlobal(cfg *Config) {
	globalOnce.Do(func() {})
	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
}

// ResetGlobalForTesting clears the process-wide config.
func ResetGlobalForTesting() {
	globalMu.Lock()
	globalConfig = nil
	globalOnce = sync.Once{}
	globalMu.Unlock()
}

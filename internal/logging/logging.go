// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// FormatText is the human-readable console format.
	FormatText = "text"

	// FormatJSON emits one JSON object per line.
	FormatJSON = "json"

	// FormatLogfmt emits logfmt key=value lines.
	FormatLogfmt = "logfmt"

	// EnvLogLevel overrides the configured level when set.
	EnvLogLevel = "PLANTHEALTH_LOG_LEVEL"
)

// Options controls logger construction.
type Options struct {
	Level  string
	Format string
	// File appends log output to the named file instead of stderr.
	File string
	// Quiet disables timestamps, used by tests and the CLI.
	Quiet bool
}

var (
	mu      sync.RWMutex
	root    = newLogger(os.Stderr, log.InfoLevel, FormatText, false)
	logFile *os.File
)

// ============================================================================
// CONFIGURATION
// ============================================================================

// Configure replaces the root logger. The environment level wins over
// opts.Level so operators can raise verbosity without editing config files.
func Configure(opts Options) error {
	levelName := opts.Level
	if env := strings.TrimSpace(os.Getenv(EnvLogLevel)); env != "" {
		levelName = env
	}
	level, err := ParseLevel(levelName)
	if err != nil {
		return err
	}

	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	var f *os.File
	if opts.File != "" {
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	root = newLogger(out, level, format, opts.Quiet)
	return nil
}

// ParseLevel maps a level name to a log level. An empty name means info.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return log.InfoLevel, nil
	case "warning":
		return log.WarnLevel, nil
	}
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", name)
	}
	return level, nil
}

func normalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatLogfmt:
		return FormatLogfmt, nil
	default:
		return "", fmt.Errorf("invalid log format %q: must be text, json or logfmt", format)
	}
}

func newLogger(w io.Writer, level log.Level, format string, quiet bool) *log.Logger {
	opts := log.Options{
		Level:           level,
		ReportTimestamp: !quiet,
		TimeFormat:      time.RFC3339,
	}
	switch format {
	case FormatJSON:
		opts.Formatter = log.JSONFormatter
	case FormatLogfmt:
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}
	return log.NewWithOptions(w, opts)
}

// ============================================================================
// ACCESSORS
// ============================================================================

// Default returns the root logger.
func Default() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// For returns a child of the root logger tagged with a component prefix.
func For(component string) *log.Logger {
	return Default().WithPrefix(component)
}

// New builds a standalone logger writing to w. Tests use it to capture output.
func New(w io.Writer, level log.Level) *log.Logger {
	return newLogger(w, level, FormatLogfmt, true)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return newLogger(io.Discard, log.FatalLevel+1, FormatText, true)
}

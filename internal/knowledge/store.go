// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Store holds the active knowledge base. Readers call Current for every
// request; reloads swap the pointer atomically.
type Store struct {
	current  atomic.Pointer[Base]
	reloads  atomic.Int64
	logger   *log.Logger
	debounce time.Duration
}

// NewStore wraps an initial knowledge base.
func NewStore(initial *Base, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Store{logger: logger, debounce: DefaultDebounce}
	s.current.Store(initial)
	return s
}

// Open loads path when set, otherwise the embedded knowledge base.
func Open(path string, logger *log.Logger) (*Store, error) {
	var (
		base *Base
		err  error
	)
	if path != "" {
		base, err = LoadFile(path)
	} else {
		base, err = Embedded()
	}
	if err != nil {
		return nil, err
	}
	return NewStore(base, logger), nil
}

// Current returns the active knowledge base.
func (s *Store) Current() *Base { return s.current.Load() }

// Swap installs a new knowledge base.
func (s *Store) Swap(b *Base) { s.current.Store(b) }

// Reloads counts successful reloads from disk.
func (s *Store) Reloads() int64 { return s.reloads.Load() }

// Reload re-reads path and swaps it in. The previous base stays active when
// the file is missing or invalid.
func (s *Store) Reload(path string) error {
	b, err := LoadFile(path)
	if err != nil {
		s.logger.Warn("KB_RELOAD_FAILED", "path", path, "error", err)
		return err
	}
	s.Swap(b)
	s.reloads.Add(1)
	s.logger.Info("KB_RELOADED", "path", path, "crops", len(b.Crops()))
	return nil
}

// Watch reloads path whenever it changes until ctx is cancelled. The parent
// directory is watched so atomic replace-by-rename saves are seen.
func (s *Store) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve knowledge base path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	s.logger.Info("KB_WATCH_START", "path", abs)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("KB_WATCH_STOP", "path", abs)
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(s.debounce)
			}

		case <-timer.C:
			_ = s.Reload(abs)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("KB_WATCH_ERROR", "error", err)
		}
	}
}

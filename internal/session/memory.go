// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
)

// sessionLog is one session's history with its own lock, so writers to different
// sessions never contend.
type sessionLog struct {
	mu       sync.Mutex
	messages []Message
}

// MemoryStore keeps sessions in process memory. Logs have no size cap and no
// expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	closed   bool
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*sessionLog)}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if sessionID == "" || len(msgs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l, err := s.logFor(sessionID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.messages = append(l.messages, msgs...)
	l.mu.Unlock()
	return nil
}

// History implements Store.
func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	l, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return []Message{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message{}, l.messages...), nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = nil
	return nil
}

func (s *MemoryStore) logFor(id string) (*sessionLog, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	l, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return l, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if l, ok = s.sessions[id]; !ok {
		l = &sessionLog{}
		s.sessions[id] = l
	}
	return l, nil
}

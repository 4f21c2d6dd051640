// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the append/read contract for session logs.
type Store interface {
	// Append adds msgs to the end of the session log in order. The whole
	// batch lands contiguously. An empty sessionID is a no-op.
	Append(ctx context.Context, sessionID string, msgs ...Message) error

	// History returns a copy of the session log, or an empty slice for an
	// unknown or empty id.
	History(ctx context.Context, sessionID string) ([]Message, error)

	// Close releases driver resources.
	Close() error
}

// StoreType selects a driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// DefaultKeyPrefix namespaces redis keys.
const DefaultKeyPrefix = "planthealth:session:"

var (
	// ErrInvalidStoreType is returned for an unknown driver name.
	ErrInvalidStoreType = errors.New("invalid session store type")
	// ErrInvalidConfig is returned when a driver lacks a required option.
	ErrInvalidConfig = errors.New("invalid session store configuration")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("session store is closed")
)

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient redis.UniversalClient
	redisOpts   *redis.Options
	keyPrefix   string
	ttl         time.Duration
}

// WithRedisClient supplies an existing client. The store takes ownership
// and closes it on Close.
func WithRedisClient(client redis.UniversalClient) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisAddr builds a client for addr.
func WithRedisAddr(addr, password string, db int) StoreOption {
	return func(c *storeConfig) {
		c.redisOpts = &redis.Options{Addr: addr, Password: password, DB: db}
	}
}

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) { c.keyPrefix = prefix }
}

// WithTTL expires idle redis sessions. The TTL is refreshed on every append;
// zero disables expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.ttl = ttl }
}

// NewStore creates a Store for storeType.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{keyPrefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil

	case StoreTypeRedis:
		client := cfg.redisClient
		if client == nil && cfg.redisOpts != nil {
			if cfg.redisOpts.Addr == "" {
				return nil, fmt.Errorf("%w: redis address is empty", ErrInvalidConfig)
			}
			client = redis.NewClient(cfg.redisOpts)
		}
		if client == nil {
			return nil, fmt.Errorf("%w: redis client or address required", ErrInvalidConfig)
		}
		if cfg.ttl < 0 {
			return nil, fmt.Errorf("%w: negative ttl %s", ErrInvalidConfig, cfg.ttl)
		}
		return NewRedisStore(client, cfg.keyPrefix, cfg.ttl), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, storeType)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss is returned when no live entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored entry cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager keeps revalidatable catalog responses in redis. Each entry lives
// as long as the catalog's Expires header allows.
type Manager struct {
	redis  redis.Cmdable
	logger zerolog.Logger
}

// NewManager creates a manager on top of an existing redis connection.
func NewManager(rdb redis.Cmdable) *Manager {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:  rdb,
		logger: logging.NewLogger(logging.ComponentCache),
	}
}

// Get returns the live entry for key. A stored entry past its Expires time
// counts as a miss and is dropped from redis.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	k := key.String()

	raw, err := m.redis.Get(ctx, k).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", k, err)
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		m.drop(ctx, k)
		return nil, err
	}
	if entry.IsExpired() {
		CacheMisses.Inc()
		m.drop(ctx, k)
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return entry, nil
}

// Set stores entry until its Expires time. Entries that are already
// expired or carry no ETag or Last-Modified are not stored, since the
// client could never revalidate them.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if !entry.Validatable() {
		return nil
	}
	return m.store(ctx, key.String(), entry)
}

// Delete removes the entry for key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	k := key.String()
	if err := m.redis.Del(ctx, k).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", k, err)
	}
	return nil
}

// UpdateTTL moves the expiry of a live entry to expires, as announced by a
// 304 response. It returns ErrCacheMiss when the entry is gone.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, expires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	entry.Expires = expires
	return m.store(ctx, key.String(), entry)
}

func (m *Manager) store(ctx context.Context, k string, entry *CacheEntry) error {
	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := m.redis.Set(ctx, k, raw, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", k, err)
	}

	CacheSize.WithLabelValues("redis").Set(float64(len(raw)))
	m.logger.Debug().Str("key", k).Dur("ttl", ttl).Int("bytes", len(raw)).Msg("Cached catalog response")
	return nil
}

// drop removes an unusable entry. Failures are logged only, the caller
// already treats the key as a miss.
func (m *Manager) drop(ctx context.Context, k string) {
	if err := m.redis.Del(ctx, k).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		m.logger.Warn().Err(err).Str("key", k).Msg("Failed to drop cache entry")
	}
}

func decodeEntry(raw []byte) (*CacheEntry, error) {
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

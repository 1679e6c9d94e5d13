package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a cached catalog response.
type CacheEntry struct {
	// Body is the raw response body.
	Body []byte `json:"body"`

	// ETag is replayed as If-None-Match.
	ETag string `json:"etag,omitempty"`

	// Expires bounds how long the entry is kept in redis.
	Expires time.Time `json:"expires"`

	// LastModified is replayed as If-Modified-Since when no ETag exists.
	LastModified time.Time `json:"last_modified,omitempty"`

	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers,omitempty"`
	CachedAt   time.Time   `json:"cached_at"`
}

// IsExpired returns true once Expires has passed.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 when already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Validatable reports whether the entry carries a validator the catalog can
// answer a conditional request against.
func (e *CacheEntry) Validatable() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}

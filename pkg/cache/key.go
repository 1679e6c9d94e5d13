package cache

import (
	"net/url"
	"strings"
)

// KeyPrefix namespaces every cache key in redis.
const KeyPrefix = "catalog"

// CacheKey identifies one cached catalog GET.
type CacheKey struct {
	// Resource is the catalog resource name, e.g. "persons".
	Resource string

	// ID is set for single-record fetches and empty for collection reads.
	ID string

	// Version is the normalized media type sent in the Accept header.
	Version string

	// Query is the already-encoded query string without the leading "?".
	Query string
}

// String generates a deterministic cache key string.
// Format: catalog:<resource>[:id=<id>]:v=<version>[:q=<query>]
// The ID is query-escaped so it cannot contain the ":" separator.
//
// Example:
//
//	catalog:persons:id=p-1:v=application/vnd.hedtech.integration.v12+json
func (k CacheKey) String() string {
	parts := []string{KeyPrefix, strings.ToLower(strings.Trim(k.Resource, "/"))}

	if k.ID != "" {
		parts = append(parts, "id="+url.QueryEscape(k.ID))
	}
	parts = append(parts, "v="+k.Version)
	if k.Query != "" {
		parts = append(parts, "q="+k.Query)
	}

	return strings.Join(parts, ":")
}

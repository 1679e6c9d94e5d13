package client

import (
	"net/http"
	"strconv"
	"strings"
)

// Response headers understood by the catalog client.
const (
	HeaderTotalCount         = "X-Total-Count"
	HeaderMaxPageSize        = "X-Max-Page-Size"
	HeaderServedVersion      = "X-Hedtech-Media-Type"
	HeaderContentRestriction = "X-Content-Restricted"
	HeaderRemaining          = "X-Remaining"
	HeaderRequestID          = "X-Request-ID"
)

// Request describes one GET against a catalog resource.
type Request struct {
	// Resource is the resource name, e.g. "persons". Required.
	Resource string

	// ID selects a single record. Empty reads the collection.
	ID string

	// Version is the representation to request. Abbreviated tokens are
	// normalized; blank requests resource.DefaultVersion.
	Version string

	// Query is the already-encoded query string, without the leading "?".
	Query string
}

// Response is a fully read 2xx catalog response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// TotalCount returns the server-reported number of matching rows.
func (r *Response) TotalCount() (int, bool) {
	return headerInt(r.Header, HeaderTotalCount)
}

// MaxPageSize returns the server-declared maximum page size.
func (r *Response) MaxPageSize() (int, bool) {
	n, ok := headerInt(r.Header, HeaderMaxPageSize)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// ServedVersion returns the representation version the server actually
// served, which may differ from the one requested.
func (r *Response) ServedVersion() string {
	return strings.TrimSpace(r.Header.Get(HeaderServedVersion))
}

// ContentRestriction returns the content restriction reported by the
// server, empty when the full representation was returned.
func (r *Response) ContentRestriction() string {
	return strings.TrimSpace(r.Header.Get(HeaderContentRestriction))
}

func headerInt(h http.Header, name string) (int, bool) {
	if h == nil {
		return 0, false
	}
	raw := strings.TrimSpace(h.Get(name))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Package testutil provides testing utilities for the catalog client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock catalog endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is what the mock saw for one request.
type RecordedRequest struct {
	Path     string
	RawQuery string
	Header   http.Header
}

// Query returns the parsed query parameters.
func (r RecordedRequest) Query() url.Values {
	q, _ := url.ParseQuery(r.RawQuery)
	return q
}

// MockCatalog is a configurable mock catalog API for testing.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	requests []RecordedRequest

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
}

// NewMockCatalog creates and starts a mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.requests = append(mock.requests, RecordedRequest{
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
		})
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"errors":[{"code":"Global.NotFound","message":"no handler for %s"}]}`, r.URL.Path)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and recorded requests.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// Requests returns a copy of every request seen so far, in arrival order.
func (m *MockCatalog) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockCatalog) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewErrorResponse creates an error response in the catalog's error shape.
func NewErrorResponse(status int, message string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"errors":[{"code":"Global.Error","message":%q}]}`, message),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// Rows builds n JSON objects {"id":"<prefix>-<i>"} for collection handlers.
func Rows(prefix string, n int) []string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf(`{"id":"%s-%d"}`, prefix, i)
	}
	return rows
}

// NewCollectionHandler serves rows honoring offset and limit query
// parameters. Without a limit it returns naturalPageSize rows. It reports
// x-total-count, and x-max-page-size when maxPageSize > 0.
func NewCollectionHandler(rows []string, naturalPageSize, maxPageSize int) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil || limit <= 0 {
			limit = naturalPageSize
		}
		if maxPageSize > 0 && limit > maxPageSize {
			limit = maxPageSize
		}

		start := min(max(offset, 0), len(rows))
		end := min(start+limit, len(rows))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Total-Count", strconv.Itoa(len(rows)))
		if maxPageSize > 0 {
			w.Header().Set("X-Max-Page-Size", strconv.Itoa(maxPageSize))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("[" + strings.Join(rows[start:end], ",") + "]"))
	}
}

// NewFeedHandler serves the given notification batches (JSON arrays) one
// per request, then empty batches. x-remaining counts the notifications in
// the batches not yet served.
func NewFeedHandler(batches ...string) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	next := 0

	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		body := "[]"
		if next < len(batches) {
			body = batches[next]
			next++
		}
		remaining := 0
		for _, b := range batches[next:] {
			var items []json.RawMessage
			if err := json.Unmarshal([]byte(b), &items); err == nil {
				remaining += len(items)
			}
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Remaining", strconv.Itoa(remaining))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}

// NewConditionalHandler answers 304 when If-None-Match matches etag.
func NewConditionalHandler(etag string, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}

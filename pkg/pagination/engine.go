package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/filter"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/Sternrassler/catalog-client/pkg/resource"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for paging.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pages_fetched_total",
		Help: "Total pages fetched by the pagination engine, including discovery requests",
	}, []string{"resource"})

	pagingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_paging_duration_seconds",
		Help:    "Duration of complete paging calls in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60},
	}, []string{"resource"})
)

// ErrTotalCountUnknown is returned by TotalCount when the catalog did not
// report x-total-count.
var ErrTotalCountUnknown = errors.New("total count not reported")

// Fetcher issues single catalog requests. *client.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, r client.Request) (*client.Response, error)
}

// Config holds the engine configuration.
type Config struct {
	// DefaultVersion is used when a request names no version.
	DefaultVersion string

	// MinPageSize is the threshold at or below which a requested page size
	// is treated as absent and resolved from the catalog.
	MinPageSize int

	// MaxPageSize is the last-resort page size when nothing else is known.
	MaxPageSize int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultVersion: resource.DefaultVersion,
		MinPageSize:    0,
		MaxPageSize:    500,
	}
}

// Request describes one paging call.
type Request struct {
	Resource string
	Version  string
	Filter   filter.Filter

	// PageSize is the desired rows per page. Values at or below the
	// configured minimum are resolved from the catalog.
	PageSize int

	// Offset is the first row to return. Negative values count as zero.
	Offset int

	// MaxPages caps the number of page requests after discovery (0 = no cap).
	MaxPages int
}

// Page is one fetched slice of a collection.
type Page struct {
	Offset   int
	Response *client.Response
}

// Rows splits the page body into individual rows.
func (p Page) Rows() ([]json.RawMessage, error) {
	if p.Response == nil {
		return nil, nil
	}
	return splitRows(p.Response.Body)
}

// Engine pages through catalog collections one request at a time.
type Engine struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewEngine creates an engine. Zero config fields take their defaults.
func NewEngine(fetcher Fetcher, config Config) *Engine {
	defaults := DefaultConfig()
	if config.DefaultVersion == "" {
		config.DefaultVersion = defaults.DefaultVersion
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = defaults.MaxPageSize
	}
	if config.MinPageSize < 0 {
		config.MinPageSize = 0
	}

	return &Engine{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentPagination),
	}
}

// pager carries the state of a single paging call.
type pager struct {
	id         string
	resource   string
	version    string
	query      string
	pageSize   int
	offset     int
	maxPages   int
	totalCount int
	totalKnown bool
	sample     *client.Response
}

func (e *Engine) newPager(req Request) (*pager, error) {
	if strings.TrimSpace(req.Resource) == "" {
		return nil, fmt.Errorf("resource name is required")
	}

	query, err := req.Filter.Encode()
	if err != nil {
		return nil, err
	}

	version := req.Version
	if strings.TrimSpace(version) == "" {
		version = e.config.DefaultVersion
	}

	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	return &pager{
		id:       uuid.NewString(),
		resource: req.Resource,
		version:  version,
		query:    query,
		pageSize: req.PageSize,
		offset:   offset,
		maxPages: req.MaxPages,
	}, nil
}

// planned reports the offsets still to fetch after discovery. A nil slice
// means the sample is the only page.
func (e *Engine) planned(p *pager) []int {
	if !p.totalKnown {
		return nil
	}

	p.pageSize = ResolvePageSize(p.pageSize, p.sample, e.config.MinPageSize, e.config.MaxPageSize)

	if p.totalCount == 0 {
		return nil
	}
	if p.offset >= p.totalCount {
		return []int{}
	}
	if p.offset == 0 && !ShouldPage(p.totalCount, p.pageSize) {
		return nil
	}

	offsets := Offsets(p.totalCount, p.offset, p.pageSize)
	if p.maxPages > 0 && len(offsets) > p.maxPages {
		offsets = offsets[:p.maxPages]
	}
	return offsets
}

// run discovers the collection and hands each page to visit in offset
// order. visit returns false to stop early.
func (e *Engine) run(ctx context.Context, req Request, visit func(Page) bool) error {
	p, err := e.newPager(req)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		pagingDuration.WithLabelValues(p.resource).Observe(time.Since(start).Seconds())
	}()

	logger := e.logger.With().
		Str("paging_id", p.id).
		Str("resource", p.resource).
		Logger()

	sample, err := e.fetch(ctx, p, p.query)
	if err != nil {
		return fmt.Errorf("discover %s: %w", p.resource, err)
	}
	p.sample = sample
	p.totalCount, p.totalKnown = TotalCount(sample)

	offsets := e.planned(p)
	if offsets == nil {
		logger.Debug().
			Int("total_count", p.totalCount).
			Bool("total_known", p.totalKnown).
			Msg("Single page, paging skipped")
		visit(Page{Offset: 0, Response: sample})
		return nil
	}

	logger.Info().
		Int("total_count", p.totalCount).
		Int("page_size", p.pageSize).
		Int("offset", p.offset).
		Int("pages", len(offsets)).
		Msg("Starting paging")

	for _, off := range offsets {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := e.fetch(ctx, p, pageQuery(p.query, off, p.pageSize))
		if err != nil {
			logger.Warn().Err(err).Int("offset", off).Msg("Page fetch failed, aborting")
			return fmt.Errorf("fetch %s page at offset %d: %w", p.resource, off, err)
		}

		if !visit(Page{Offset: off, Response: resp}) {
			break
		}
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("Paging completed")
	return nil
}

func (e *Engine) fetch(ctx context.Context, p *pager, query string) (*client.Response, error) {
	resp, err := e.fetcher.Get(ctx, client.Request{
		Resource: p.resource,
		Version:  p.version,
		Query:    query,
	})
	if err != nil {
		return nil, err
	}
	pagesFetchedTotal.WithLabelValues(p.resource).Inc()
	return resp, nil
}

// pageQuery appends the offset and limit parameters to an encoded filter.
func pageQuery(filterQuery string, offset, limit int) string {
	paging := "offset=" + strconv.Itoa(offset) + "&limit=" + strconv.Itoa(limit)
	if filterQuery == "" {
		return paging
	}
	return filterQuery + "&" + paging
}

// FetchRange returns every page of the collection from req.Offset onward,
// in ascending offset order. The first error aborts the call and no pages
// are returned.
func (e *Engine) FetchRange(ctx context.Context, req Request) ([]Page, error) {
	pages := []Page{}
	err := e.run(ctx, req, func(p Page) bool {
		pages = append(pages, p)
		return true
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// FetchRows returns the rows of the collection from req.Offset onward,
// stopping once maxRows rows are collected (0 = all rows).
func (e *Engine) FetchRows(ctx context.Context, req Request, maxRows int) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	var decodeErr error

	err := e.run(ctx, req, func(p Page) bool {
		pageRows, err := p.Rows()
		if err != nil {
			decodeErr = fmt.Errorf("decode page at offset %d: %w", p.Offset, err)
			return false
		}
		rows = append(rows, pageRows...)
		return maxRows <= 0 || len(rows) < maxRows
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return rows, nil
}

// TotalCount returns the number of rows matching f with a single request.
func (e *Engine) TotalCount(ctx context.Context, resourceName, version string, f filter.Filter) (int, error) {
	p, err := e.newPager(Request{Resource: resourceName, Version: version, Filter: f})
	if err != nil {
		return 0, err
	}

	resp, err := e.fetch(ctx, p, p.query)
	if err != nil {
		return 0, err
	}

	n, ok := TotalCount(resp)
	if !ok {
		return 0, ErrTotalCountUnknown
	}
	return n, nil
}

// Fetch issues one filtered request without paging.
func (e *Engine) Fetch(ctx context.Context, resourceName, version string, f filter.Filter) (*client.Response, error) {
	p, err := e.newPager(Request{Resource: resourceName, Version: version, Filter: f})
	if err != nil {
		return nil, err
	}
	return e.fetch(ctx, p, p.query)
}

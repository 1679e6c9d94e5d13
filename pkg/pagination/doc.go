// Package pagination retrieves bounded, ordered ranges of catalog rows.
//
// The catalog reports the number of rows matching a filter in the
// x-total-count header and may cap page sizes with x-max-page-size. The
// engine issues one discovery request, resolves a page size, and then walks
// offsets sequentially:
//
//	engine := pagination.NewEngine(catalogClient, pagination.DefaultConfig())
//	pages, err := engine.FetchRange(ctx, pagination.Request{
//		Resource: "persons",
//		Version:  "v12.3.0",
//		Filter:   filter.Criteria(filter.WithSimpleCriteria("lastName", "Smith")),
//		PageSize: 50,
//	})
//
// Requests are never issued concurrently: pages come back in ascending
// offset order and the upstream session is not shared across goroutines.
//
// A result that fits one page is served from the discovery response alone,
// unless a starting offset is set. The discovery response always begins at
// row 0, so a call with a non-zero offset fetches that page explicitly even
// when the whole result fits in one page.
//
// The total count is sampled once per call. Rows written upstream while a
// call is in flight can shift page boundaries, so a page may repeat or miss
// a row near its edge. Callers needing a consistent snapshot must filter on
// a stable key instead. Total counts reported by later pages are ignored.
package pagination

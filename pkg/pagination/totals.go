package pagination

import (
	"bytes"
	"encoding/json"

	"github.com/Sternrassler/catalog-client/pkg/client"
)

// TotalCount returns the total row count reported by a response.
func TotalCount(resp *client.Response) (int, bool) {
	if resp == nil {
		return 0, false
	}
	return resp.TotalCount()
}

// ResolvePageSize picks the page size for a paging call. A requested size
// above minPageSize wins. Otherwise the row count of the sample body is
// used, then the server's x-max-page-size, then maxPageSize. The result is
// never below 1.
func ResolvePageSize(requested int, sample *client.Response, minPageSize, maxPageSize int) int {
	if requested > minPageSize {
		return requested
	}

	size := maxPageSize
	if sample != nil {
		if n, ok := countRows(sample.Body); ok && n > 0 {
			size = n
		} else if n, ok := sample.MaxPageSize(); ok {
			size = n
		}
	}

	if size < 1 {
		size = 1
	}
	return size
}

// ShouldPage reports whether more than one page is needed.
func ShouldPage(totalCount, pageSize int) bool {
	return totalCount > pageSize
}

// PageCount returns ceil((totalCount-offset)/pageSize), or 0 when the
// offset lies at or beyond the end.
func PageCount(totalCount, offset, pageSize int) int {
	if pageSize < 1 || offset >= totalCount {
		return 0
	}
	return (totalCount - offset + pageSize - 1) / pageSize
}

// Offsets lists the offsets of every page from offset up to totalCount.
func Offsets(totalCount, offset, pageSize int) []int {
	n := PageCount(totalCount, offset, pageSize)
	offsets := make([]int, 0, n)
	for i := 0; i < n; i++ {
		offsets = append(offsets, offset+i*pageSize)
	}
	return offsets
}

// countRows measures a JSON array body. Anything else is unmeasurable.
func countRows(body []byte) (int, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return 0, false
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, false
	}
	return len(rows), true
}

// splitRows decodes a page body into rows. A non-array body is a single
// row; an empty body has none.
func splitRows(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] != '[' {
		return []json.RawMessage{append(json.RawMessage(nil), body...)}, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

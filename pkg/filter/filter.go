package filter

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidFilter is returned for filters that cannot be encoded.
var ErrInvalidFilter = errors.New("invalid filter")

// CriteriaPrefix is the query parameter carrying a criteria tree.
const CriteriaPrefix = "criteria"

// Encoding identifies which of the mutually exclusive payload forms a
// Filter carries.
type Encoding int

const (
	// EncodingNone sends no filter at all.
	EncodingNone Encoding = iota

	// EncodingCriteria sends ?criteria=<escaped json>.
	EncodingCriteria

	// EncodingNamedQuery sends ?<label>=<escaped json>.
	EncodingNamedQuery

	// EncodingFlatMap sends ordinary key=value query parameters.
	EncodingFlatMap
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingNone:
		return "none"
	case EncodingCriteria:
		return "criteria"
	case EncodingNamedQuery:
		return "named-query"
	case EncodingFlatMap:
		return "flat-map"
	default:
		return "unknown"
	}
}

// Filter is an immutable query constraint in exactly one encoding.
// The zero value is EncodingNone.
type Filter struct {
	encoding Encoding
	label    string
	tree     Value
	params   map[string]string
}

// None returns an empty filter.
func None() Filter { return Filter{} }

// Criteria returns a criteria filter over tree.
func Criteria(tree Value) Filter {
	return Filter{encoding: EncodingCriteria, tree: tree}
}

// NamedQuery returns a named-query filter: a label plus one nested value.
func NamedQuery(label string, tree Value) Filter {
	return Filter{encoding: EncodingNamedQuery, label: label, tree: tree}
}

// WithNamedQuery returns the named query label={"key": value}.
func WithNamedQuery(label, key string, value any) Filter {
	return NamedQuery(label, WithSimpleCriteria(key, value))
}

// FlatMap returns a filter sent as plain query parameters.
func FlatMap(params map[string]string) Filter {
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return Filter{encoding: EncodingFlatMap, params: cp}
}

// Encoding returns the filter's payload form.
func (f Filter) Encoding() Encoding { return f.encoding }

// Label returns the named-query label, empty for other encodings.
func (f Filter) Label() string { return f.label }

// Validate checks that the filter can be encoded.
func (f Filter) Validate() error {
	switch f.encoding {
	case EncodingNone:
		return nil
	case EncodingCriteria:
		if f.tree.IsEmpty() {
			return fmt.Errorf("%w: criteria tree is empty", ErrInvalidFilter)
		}
	case EncodingNamedQuery:
		if strings.TrimSpace(f.label) == "" {
			return fmt.Errorf("%w: named query label is required", ErrInvalidFilter)
		}
		if f.tree.IsEmpty() {
			return fmt.Errorf("%w: named query %q has no value", ErrInvalidFilter, f.label)
		}
	case EncodingFlatMap:
		for k := range f.params {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("%w: flat map key cannot be blank", ErrInvalidFilter)
			}
		}
	default:
		return fmt.Errorf("%w: unknown encoding %d", ErrInvalidFilter, f.encoding)
	}
	return nil
}

// Encode renders the filter as a query string without the leading "?".
// Criteria and named-query payloads have their JSON percent-encoded while
// the marker before "=" stays literal. Flat maps are joined as k=v&k=v in
// key order.
func (f Filter) Encode() (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	switch f.encoding {
	case EncodingCriteria:
		return encodeTree(CriteriaPrefix, f.tree)
	case EncodingNamedQuery:
		return encodeTree(f.label, f.tree)
	case EncodingFlatMap:
		keys := make([]string, 0, len(f.params))
		for k := range f.params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(f.params[k]))
		}
		return strings.Join(parts, "&"), nil
	default:
		return "", nil
	}
}

func encodeTree(marker string, tree Value) (string, error) {
	data, err := tree.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", marker, err)
	}
	return marker + "=" + url.QueryEscape(string(data)), nil
}

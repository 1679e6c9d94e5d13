package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/catalog-client/pkg/filter"
	"github.com/Sternrassler/catalog-client/pkg/pagination"
	"github.com/spf13/cobra"
)

type pagesOptions struct {
	resource   string
	version    string
	criteria   string
	namedQuery string
	queryLabel string
	params     []string
	pageSize   int
	offset     int
	maxPages   int
	maxRows    int
	countOnly  bool
}

func newPagesCommand(opts *options) *cobra.Command {
	p := &pagesOptions{}

	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Page through a catalog collection and print rows as JSON lines",
		Example: `  catalog-watch pages --resource persons --criteria '{"lastName":"Smith"}' --page-size 50
  catalog-watch pages --resource persons --query-label keywordSearch --named-query '{"keywordSearch":"John"}'
  catalog-watch pages --resource persons --param firstName=John --count`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPages(cmd.Context(), opts, p, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.resource, "resource", "", "resource name, e.g. persons")
	f.StringVar(&p.version, "version", "", "representation version, e.g. v12.3.0 (default: latest)")
	f.StringVar(&p.criteria, "criteria", "", "criteria filter as JSON")
	f.StringVar(&p.namedQuery, "named-query", "", "named query filter as JSON (requires --query-label)")
	f.StringVar(&p.queryLabel, "query-label", "", "named query label")
	f.StringArrayVar(&p.params, "param", nil, "flat filter parameter, key=value (repeatable)")
	f.IntVar(&p.pageSize, "page-size", 0, "rows per page (0 = resolve from the catalog)")
	f.IntVar(&p.offset, "offset", 0, "first row to return")
	f.IntVar(&p.maxPages, "max-pages", 0, "maximum page requests (0 = no limit)")
	f.IntVar(&p.maxRows, "max-rows", 0, "maximum rows to print (0 = no limit)")
	f.BoolVar(&p.countOnly, "count", false, "print only the total row count")
	cmd.MarkFlagRequired("resource")
	return cmd
}

func runPages(ctx context.Context, opts *options, p *pagesOptions, out io.Writer) error {
	f, err := buildFilter(p.criteria, p.namedQuery, p.queryLabel, p.params)
	if err != nil {
		return err
	}

	c, cleanup, err := opts.newClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := pagination.NewEngine(c, pagination.DefaultConfig())

	if p.countOnly {
		n, err := engine.TotalCount(ctx, p.resource, p.version, f)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
		return nil
	}

	rows, err := engine.FetchRows(ctx, pagination.Request{
		Resource: p.resource,
		Version:  p.version,
		Filter:   f,
		PageSize: p.pageSize,
		Offset:   p.offset,
		MaxPages: p.maxPages,
	}, p.maxRows)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if _, err := fmt.Fprintln(out, string(row)); err != nil {
			return err
		}
	}
	return nil
}

// buildFilter turns the filter flags into a filter. At most one style may
// be given.
func buildFilter(criteria, namedQuery, label string, params []string) (filter.Filter, error) {
	styles := 0
	for _, set := range []bool{criteria != "", namedQuery != "", len(params) > 0} {
		if set {
			styles++
		}
	}
	if styles > 1 {
		return filter.None(), fmt.Errorf("only one of --criteria, --named-query and --param may be given")
	}

	switch {
	case criteria != "":
		v, err := filter.ParseValue([]byte(criteria))
		if err != nil {
			return filter.None(), fmt.Errorf("--criteria: %w", err)
		}
		return filter.Criteria(v), nil
	case namedQuery != "":
		if strings.TrimSpace(label) == "" {
			return filter.None(), fmt.Errorf("--named-query requires --query-label")
		}
		v, err := filter.ParseValue([]byte(namedQuery))
		if err != nil {
			return filter.None(), fmt.Errorf("--named-query: %w", err)
		}
		return filter.NamedQuery(label, v), nil
	case len(params) > 0:
		m, err := splitPairs("param", params)
		if err != nil {
			return filter.None(), err
		}
		return filter.FlatMap(m), nil
	default:
		return filter.None(), nil
	}
}

package facet

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/quiverhq/quiver-go/internal/domain"
	domsearch "github.com/quiverhq/quiver-go/internal/domain/search"
	"github.com/quiverhq/quiver-go/internal/domain/search/filter"
)

type mockEngine struct {
	response domsearch.MultiResponse
	err      error
	requests []domsearch.Request
	calls    int
}

func (m *mockEngine) MultipleQueries(_ context.Context, reqs []domsearch.Request) (domsearch.MultiResponse, error) {
	m.calls++
	m.requests = reqs
	return m.response, m.err
}

func decodeParams(t *testing.T, params string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(params)
	if err != nil {
		t.Fatalf("parse params %q: %v", params, err)
	}
	return v
}

func TestSearch_BuildsOneGlobalPlusOnePerFacet(t *testing.T) {
	engine := &mockEngine{response: domsearch.MultiResponse{Results: []domsearch.Response{
		{NbHits: 3},
		{Facets: map[string]domsearch.FacetCounts{"brand": {"acme": 2}}},
		{Facets: map[string]domsearch.FacetCounts{"color": {"red": 1}}},
	}}}
	s := New(engine)

	q := domsearch.NewQuery("shoes").SetHitsPerPage(20)
	refs := filter.Refinements{"brand": {"acme"}, "category": {"footwear"}}

	res, err := s.Search(context.Background(), "products", q, []string{"brand", "color"}, refs)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if engine.calls != 1 {
		t.Fatalf("issued %d batch calls, want 1", engine.calls)
	}
	if len(engine.requests) != 3 {
		t.Fatalf("batch has %d requests, want 3", len(engine.requests))
	}
	if res.NbHits != 3 {
		t.Fatalf("base response not taken from first result: %+v", res)
	}

	// Global query keeps the caller's parameters and carries all
	// refinements.
	global := decodeParams(t, engine.requests[0].Params)
	if global.Get("query") != "shoes" || global.Get("hitsPerPage") != "20" {
		t.Fatalf("global params = %v", global)
	}
	if global.Get("facetFilters") != `[["brand:acme"],"category:footwear"]` {
		t.Fatalf("global facetFilters = %q", global.Get("facetFilters"))
	}

	// The brand sub-query requests zero hits, only brand counts, and its
	// filters exclude brand's own refinement.
	brand := decodeParams(t, engine.requests[1].Params)
	if brand.Get("hitsPerPage") != "0" || brand.Get("page") != "0" {
		t.Fatalf("brand sub-query pagination = %v", brand)
	}
	if brand.Get("attributesToRetrieve") != "[]" ||
		brand.Get("attributesToHighlight") != "[]" ||
		brand.Get("attributesToSnippet") != "[]" {
		t.Fatalf("brand sub-query attributes = %v", brand)
	}
	if brand.Get("analytics") != "false" {
		t.Fatalf("brand sub-query analytics = %q", brand.Get("analytics"))
	}
	if brand.Get("facets") != `["brand"]` {
		t.Fatalf("brand sub-query facets = %q", brand.Get("facets"))
	}
	if brand.Get("facetFilters") != `["category:footwear"]` {
		t.Fatalf("brand sub-query facetFilters = %q", brand.Get("facetFilters"))
	}

	// Per-facet requests follow the caller-supplied facet order.
	color := decodeParams(t, engine.requests[2].Params)
	if color.Get("facets") != `["color"]` {
		t.Fatalf("second sub-query facets = %q", color.Get("facets"))
	}
}

func TestSearch_MergesCountsAndZeroFillsRefinedValues(t *testing.T) {
	// "globex" is refined but absent from the returned counts: it must
	// appear with count 0 instead of vanishing.
	engine := &mockEngine{response: domsearch.MultiResponse{Results: []domsearch.Response{
		{NbHits: 2},
		{Facets: map[string]domsearch.FacetCounts{"brand": {"acme": 2}}},
	}}}
	s := New(engine)

	refs := filter.Refinements{"brand": {"acme", "globex"}}
	res, err := s.Search(context.Background(), "products", domsearch.NewQuery(""), []string{"brand"}, refs)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	brand := res.DisjunctiveFacets["brand"]
	if brand["acme"] != 2 {
		t.Fatalf("acme count = %d, want 2", brand["acme"])
	}
	if n, ok := brand["globex"]; !ok || n != 0 {
		t.Fatalf("globex count = %d (present=%v), want 0", n, ok)
	}
}

func TestSearch_NoDisjunctiveFacets(t *testing.T) {
	engine := &mockEngine{response: domsearch.MultiResponse{Results: []domsearch.Response{{NbHits: 1}}}}
	s := New(engine)

	res, err := s.Search(context.Background(), "products", domsearch.NewQuery("x"), nil, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(engine.requests) != 1 {
		t.Fatalf("batch has %d requests, want 1", len(engine.requests))
	}
	if len(res.DisjunctiveFacets) != 0 {
		t.Fatalf("DisjunctiveFacets = %v, want empty", res.DisjunctiveFacets)
	}
}

func TestSearch_MissingResultsFailsWhole(t *testing.T) {
	engine := &mockEngine{response: domsearch.MultiResponse{}} // no results key
	s := New(engine)

	_, err := s.Search(context.Background(), "products", domsearch.NewQuery(""), []string{"brand"}, nil)
	if !errors.Is(err, domain.ErrNoResults) {
		t.Fatalf("Search err = %v, want ErrNoResults", err)
	}
}

func TestSearch_ShortResultsFailsWhole(t *testing.T) {
	engine := &mockEngine{response: domsearch.MultiResponse{Results: []domsearch.Response{{NbHits: 1}}}}
	s := New(engine)

	_, err := s.Search(context.Background(), "products", domsearch.NewQuery(""), []string{"brand"}, nil)
	if !errors.Is(err, domain.ErrNoResults) {
		t.Fatalf("Search err = %v, want ErrNoResults", err)
	}
}

func TestSearch_MalformedPerFacetResultFailsWhole(t *testing.T) {
	engine := &mockEngine{response: domsearch.MultiResponse{Results: []domsearch.Response{
		{NbHits: 1},
		{Facets: map[string]domsearch.FacetCounts{"brand": {"acme": 1}}},
		{}, // color result has no facets
	}}}
	s := New(engine)

	res, err := s.Search(context.Background(), "products", domsearch.NewQuery(""),
		[]string{"brand", "color"}, nil)
	if !errors.Is(err, domain.ErrNoResults) {
		t.Fatalf("Search err = %v, want ErrNoResults", err)
	}
	if res.DisjunctiveFacets != nil {
		t.Fatal("partial aggregate returned alongside error")
	}
}

func TestSearch_EngineErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	s := New(&mockEngine{err: boom})

	_, err := s.Search(context.Background(), "products", domsearch.NewQuery(""), []string{"brand"}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Search err = %v, want %v", err, boom)
	}
}

func TestSearch_DoesNotMutateCallerQuery(t *testing.T) {
	engine := &mockEngine{response: domsearch.MultiResponse{Results: []domsearch.Response{
		{}, {Facets: map[string]domsearch.FacetCounts{"brand": {}}},
	}}}
	s := New(engine)

	q := domsearch.NewQuery("shoes")
	before := q.Encode()
	if _, err := s.Search(context.Background(), "products", q, []string{"brand"}, nil); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if q.Encode() != before {
		t.Fatalf("caller query mutated: %q -> %q", before, q.Encode())
	}
}

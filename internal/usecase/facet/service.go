// Package facet implements disjunctive faceting on an engine whose facet
// filters are AND-only: the caller's query fans out into one global query
// plus one counts-only query per disjunctive facet, batched into a single
// multi-query call, and the per-facet counts are merged into the global
// result.
package facet

import (
	"context"
	"fmt"

	"github.com/quiverhq/quiver-go/internal/domain"
	domsearch "github.com/quiverhq/quiver-go/internal/domain/search"
	"github.com/quiverhq/quiver-go/internal/domain/search/filter"
)

// Service runs the fan-out/aggregate workflow.
type Service struct {
	engine MultiQuerier
}

// New creates a disjunctive facet search service.
func New(engine MultiQuerier) *Service {
	return &Service{engine: engine}
}

// Search executes q against indexName with OR semantics for the facets named
// in disjunctive. refinements holds the currently selected facet values. The
// returned response is the global query's result with DisjunctiveFacets
// filled in; refined values the engine reported no hits for are present with
// count 0 so a selected value never disappears from the caller's UI.
func (s *Service) Search(
	ctx context.Context, indexName string, q *domsearch.Query,
	disjunctive []string, refinements filter.Refinements,
) (domsearch.Response, error) {
	requests := buildRequests(indexName, q, disjunctive, refinements)

	multi, err := s.engine.MultipleQueries(ctx, requests)
	if err != nil {
		return domsearch.Response{}, err
	}
	return aggregate(multi, disjunctive, refinements)
}

// buildRequests produces the ordered batch: the global query first, then one
// counts-only query per disjunctive facet in caller order.
func buildRequests(
	indexName string, q *domsearch.Query,
	disjunctive []string, refinements filter.Refinements,
) []domsearch.Request {
	requests := make([]domsearch.Request, 0, 1+len(disjunctive))

	global := q.Clone()
	global.SetFacetFilters(filter.Build(disjunctive, refinements, "").Encode())
	requests = append(requests, domsearch.Request{IndexName: indexName, Params: global.Encode()})

	for _, name := range disjunctive {
		sub := q.Clone().
			SetPage(0).
			SetHitsPerPage(0).
			SetAttributesToRetrieve([]string{}).
			SetAttributesToHighlight([]string{}).
			SetAttributesToSnippet([]string{}).
			SetAnalytics(false).
			SetFacets([]string{name})
		// Excluding the facet's own refinement keeps its other values'
		// counts visible while it is selected.
		sub.SetFacetFilters(filter.Build(disjunctive, refinements, name).Encode())
		requests = append(requests, domsearch.Request{IndexName: indexName, Params: sub.Encode()})
	}
	return requests
}

// aggregate merges the batch results. Any shape mismatch fails the whole
// operation; no partial aggregate is ever returned.
func aggregate(
	multi domsearch.MultiResponse,
	disjunctive []string, refinements filter.Refinements,
) (domsearch.Response, error) {
	if multi.Results == nil {
		return domsearch.Response{}, domain.ErrNoResults
	}
	if len(multi.Results) != 1+len(disjunctive) {
		return domsearch.Response{}, fmt.Errorf("%w: got %d results, want %d",
			domain.ErrNoResults, len(multi.Results), 1+len(disjunctive))
	}

	base := multi.Results[0]
	counts := make(map[string]domsearch.FacetCounts, len(disjunctive))
	for i, name := range disjunctive {
		res := multi.Results[i+1]
		if res.Facets == nil {
			return domsearch.Response{}, fmt.Errorf(
				"%w: result %d has no facet counts for %q", domain.ErrNoResults, i+1, name)
		}

		merged := make(domsearch.FacetCounts, len(res.Facets[name]))
		for value, n := range res.Facets[name] {
			merged[value] = n
		}
		for _, value := range refinements[name] {
			if _, ok := merged[value]; !ok {
				merged[value] = 0
			}
		}
		counts[name] = merged
	}
	base.DisjunctiveFacets = counts
	return base, nil
}

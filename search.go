package quiver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quiverhq/quiver-go/internal/async"
	domsearch "github.com/quiverhq/quiver-go/internal/domain/search"
	"github.com/quiverhq/quiver-go/internal/domain/search/filter"
	domtask "github.com/quiverhq/quiver-go/internal/domain/task"
	"github.com/quiverhq/quiver-go/internal/transport/rest"
)

// Query is the search parameter bag. See NewQuery.
type Query = domsearch.Query

// Response is a search or browse response page.
type Response = domsearch.Response

// FacetCounts maps facet value → hit count.
type FacetCounts = domsearch.FacetCounts

// Refinements maps facet name → currently selected values, for disjunctive
// faceting.
type Refinements = filter.Refinements

// TaskStatus is the task-status endpoint response.
type TaskStatus = domtask.Status

// NewQuery creates a query with the given full-text terms.
func NewQuery(text string) *Query { return domsearch.NewQuery(text) }

// Search runs q against the index. With the search cache enabled, an
// identical repeated query is answered from the cache without a network
// round-trip.
func (i *Index) Search(ctx context.Context, q *Query) (res Response, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("search", start, err) }()

	body := map[string]any{"params": q.Clone().Encode()}
	payload, err := i.client.searchCall(ctx, i.path("/query"), body)
	if err != nil {
		return Response{}, err
	}
	if err := json.Unmarshal(payload, &res); err != nil {
		return Response{}, fmt.Errorf("decode search response: %w", err)
	}
	return res, nil
}

// SearchAsync runs Search on the worker pool. The outcome is always
// delivered off the caller's goroutine, cache hit or not.
func (i *Index) SearchAsync(q *Query) *Operation[Response] {
	captured := q.Clone()
	op := async.Run(context.Background(), i.client.pool,
		func(ctx context.Context, tok *async.Token) (any, error) {
			if tok.Cancelled() {
				return nil, async.ErrCancelled
			}
			return i.Search(ctx, captured)
		}, nil)
	return newOperation[Response](op)
}

// SearchDisjunctiveFaceting runs q with OR semantics for the facets named in
// disjunctiveFacets. refinements holds the values currently selected per
// facet; the merged counts land in Response.DisjunctiveFacets, with refined
// values the engine dropped re-inserted at count 0.
func (i *Index) SearchDisjunctiveFaceting(
	ctx context.Context, q *Query, disjunctiveFacets []string, refinements Refinements,
) (res Response, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("search_disjunctive", start, err) }()
	return i.searcher.Search(ctx, i.name, q, disjunctiveFacets, refinements)
}

// SearchDisjunctiveFacetingAsync runs SearchDisjunctiveFaceting on the
// worker pool.
func (i *Index) SearchDisjunctiveFacetingAsync(
	q *Query, disjunctiveFacets []string, refinements Refinements,
) *Operation[Response] {
	captured := q.Clone()
	op := async.Run(context.Background(), i.client.pool,
		func(ctx context.Context, tok *async.Token) (any, error) {
			if tok.Cancelled() {
				return nil, async.ErrCancelled
			}
			return i.SearchDisjunctiveFaceting(ctx, captured, disjunctiveFacets, refinements)
		}, nil)
	return newOperation[Response](op)
}

// Browse fetches the first page of objects matching q. While Response.Cursor
// is non-empty more pages exist; continue with BrowseFrom. Any write to the
// index invalidates outstanding cursors — re-browse from the beginning after
// mutating.
func (i *Index) Browse(ctx context.Context, q *Query) (res Response, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("browse", start, err) }()
	return i.browse(ctx, map[string]any{"params": q.Clone().Encode()})
}

// BrowseFrom continues a browse from a cursor returned by a previous page.
func (i *Index) BrowseFrom(ctx context.Context, cursor string) (res Response, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("browse", start, err) }()
	return i.browse(ctx, map[string]any{"cursor": cursor})
}

func (i *Index) browse(ctx context.Context, body map[string]any) (Response, error) {
	payload, err := i.client.exec.Do(ctx, http.MethodPost, i.path("/browse"), body, rest.Read)
	if err != nil {
		return Response{}, err
	}
	var res Response
	if err := json.Unmarshal(payload, &res); err != nil {
		return Response{}, fmt.Errorf("decode browse response: %w", err)
	}
	return res, nil
}

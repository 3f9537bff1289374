package search

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// Query is the search parameter bag. Setters return the query for chaining.
// A Query is not safe for concurrent mutation; workflows that hold onto one
// clone it first (see Clone) so later caller mutation cannot affect an
// in-flight run.
type Query struct {
	params map[string]string
}

// NewQuery creates a query with the given full-text terms.
func NewQuery(text string) *Query {
	q := &Query{params: make(map[string]string)}
	if text != "" {
		q.params["query"] = text
	}
	return q
}

// Clone returns an independent copy.
func (q *Query) Clone() *Query {
	out := &Query{params: make(map[string]string, len(q.params))}
	for k, v := range q.params {
		out.params[k] = v
	}
	return out
}

// Set stores a raw parameter. Typed setters below are preferred.
func (q *Query) Set(key, value string) *Query {
	q.params[key] = value
	return q
}

// Get returns a raw parameter value.
func (q *Query) Get(key string) (string, bool) {
	v, ok := q.params[key]
	return v, ok
}

// SetQuery sets the full-text search terms.
func (q *Query) SetQuery(text string) *Query { return q.Set("query", text) }

// SetFilters sets the filter expression string.
func (q *Query) SetFilters(filters string) *Query { return q.Set("filters", filters) }

// SetFacets sets the facets to compute counts for.
func (q *Query) SetFacets(names []string) *Query { return q.setJSON("facets", names) }

// SetFacetFilters sets the facet filter clauses: bare "name:value" strings
// and/or OR-group string arrays.
func (q *Query) SetFacetFilters(clauses []any) *Query { return q.setJSON("facetFilters", clauses) }

// SetPage sets the page number (0-based).
func (q *Query) SetPage(page int) *Query { return q.Set("page", strconv.Itoa(page)) }

// SetHitsPerPage sets the page size.
func (q *Query) SetHitsPerPage(n int) *Query { return q.Set("hitsPerPage", strconv.Itoa(n)) }

// SetAttributesToRetrieve sets the attributes returned with each hit. An
// empty (non-nil) slice requests none.
func (q *Query) SetAttributesToRetrieve(attrs []string) *Query {
	return q.setJSON("attributesToRetrieve", attrs)
}

// SetAttributesToHighlight sets the attributes to highlight.
func (q *Query) SetAttributesToHighlight(attrs []string) *Query {
	return q.setJSON("attributesToHighlight", attrs)
}

// SetAttributesToSnippet sets the attributes to snippet.
func (q *Query) SetAttributesToSnippet(attrs []string) *Query {
	return q.setJSON("attributesToSnippet", attrs)
}

// SetAnalytics controls whether the query counts in the engine's analytics.
func (q *Query) SetAnalytics(enabled bool) *Query {
	return q.Set("analytics", strconv.FormatBool(enabled))
}

func (q *Query) setJSON(key string, v any) *Query {
	encoded, err := json.Marshal(v)
	if err != nil {
		// Only slices of strings/any reach here; marshal cannot fail for
		// those, but never store a broken parameter.
		return q
	}
	return q.Set(key, string(encoded))
}

// Encode serializes the parameters as a URL-encoded string. Keys are sorted,
// so equal queries encode identically — the encoding doubles as the cache
// key.
func (q *Query) Encode() string {
	values := make(url.Values, len(q.params))
	for k, v := range q.params {
		values.Set(k, v)
	}
	return values.Encode()
}

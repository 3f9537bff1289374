// Package search holds the wire-level response shapes shared by the search
// orchestration use cases and the public client surface.
package search

// FacetCounts maps facet value → hit count for one facet.
type FacetCounts map[string]int

// Response is a single search (or browse) response page.
type Response struct {
	Hits             []map[string]any       `json:"hits"`
	NbHits           int                    `json:"nbHits"`
	Page             int                    `json:"page"`
	NbPages          int                    `json:"nbPages"`
	HitsPerPage      int                    `json:"hitsPerPage"`
	ProcessingTimeMS int                    `json:"processingTimeMS"`
	Query            string                 `json:"query"`
	Params           string                 `json:"params"`
	Facets           map[string]FacetCounts `json:"facets,omitempty"`
	// DisjunctiveFacets is filled client-side by the disjunctive fan-out
	// aggregation; the engine itself never returns it.
	DisjunctiveFacets map[string]FacetCounts `json:"disjunctiveFacets,omitempty"`
	// Cursor is present on browse responses while more pages exist. It is
	// invalidated by any write to the index.
	Cursor string `json:"cursor,omitempty"`
}

// ObjectIDs extracts the objectID of every hit. Hits without an objectID are
// skipped.
func (r *Response) ObjectIDs() []string {
	ids := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		if id, ok := h["objectID"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// MultiResponse is the body of a multi-query batch call: one result per
// request, in request order.
type MultiResponse struct {
	Results []Response `json:"results"`
}

// Request is one entry of a multi-query batch request.
type Request struct {
	IndexName string `json:"indexName"`
	Params    string `json:"params"`
}

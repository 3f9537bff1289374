// Package quiver provides a Go client for the Quiver hosted search API.
//
// A Client talks to one application; an Index handle scopes operations to a
// single index:
//
//	client, _ := quiver.New("MYAPP", "api-key")
//	idx := client.Index("products")
//	res, _ := idx.SaveObjects(ctx, []quiver.Object{{"objectID": "1", "name": "shoe"}})
//	_, _ = idx.WaitTask(ctx, res.TaskID)
//
//	q := quiver.NewQuery("shoe").SetHitsPerPage(20)
//	hits, _ := idx.Search(ctx, q)
//
// Write operations are asynchronous on the server side: they return a task ID
// that can be awaited with WaitTask. Long-running workflows (WaitTask,
// DeleteByQuery, Search) also come in Async variants returning a cancellable
// *Operation handle:
//
//	op := idx.DeleteByQueryAsync(quiver.NewQuery("").SetFilters("discontinued:true"))
//	// ... later
//	op.Cancel()
//
// # Disjunctive faceting
//
// SearchDisjunctiveFaceting approximates OR semantics for selected facets on
// top of the engine's AND-only facet filters by fanning the query out into one
// batched request per disjunctive facet and merging the facet counts:
//
//	res, _ := idx.SearchDisjunctiveFaceting(ctx, q,
//	    []string{"brand"},
//	    quiver.Refinements{"brand": {"Acme", "Globex"}},
//	)
//
// # Search result cache
//
// Identical repeated search requests can be served from a client-side cache
// with a fixed TTL. The cache is disabled by default; see
// Client.EnableSearchCache. A Redis-backed shared cache is available for
// multi-process deployments via WithSharedSearchCache.
package quiver

package facet

import (
	"context"

	domsearch "github.com/quiverhq/quiver-go/internal/domain/search"
)

// MultiQuerier issues one ordered multi-query batch. The whole batch is a
// single request-response pair: results come back in request order and the
// batch is never partially retried.
type MultiQuerier interface {
	MultipleQueries(ctx context.Context, requests []domsearch.Request) (domsearch.MultiResponse, error)
}

package purge

import (
	"context"

	"github.com/quiverhq/quiver-go/internal/async"
	domsearch "github.com/quiverhq/quiver-go/internal/domain/search"
)

// Browser fetches the first page of objects matching the captured query,
// always from the beginning of the index — never from a stored cursor, since
// the coordinator's own deletes invalidate cursors.
type Browser interface {
	Browse(ctx context.Context, params string) (domsearch.Response, error)
}

// Deleter issues a batched delete and returns the accepted task ID.
type Deleter interface {
	DeleteObjects(ctx context.Context, objectIDs []string) (int64, error)
}

// Waiter blocks until the given task is published.
type Waiter interface {
	Wait(ctx context.Context, tok *async.Token, taskID int64) error
}

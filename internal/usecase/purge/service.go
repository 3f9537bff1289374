// Package purge implements the delete-by-query workflow: browse matching
// objects, delete them in batches, wait for each delete task to publish, and
// repeat until the index has no more matches.
package purge

import (
	"context"
	"fmt"

	"github.com/quiverhq/quiver-go/internal/async"
	"github.com/quiverhq/quiver-go/internal/domain"
)

// Service coordinates the browse → delete → wait loop.
type Service struct {
	browser Browser
	deleter Deleter
	waiter  Waiter
}

// New creates a delete-by-query coordinator.
func New(browser Browser, deleter Deleter, waiter Waiter) *Service {
	return &Service{browser: browser, deleter: deleter, waiter: waiter}
}

// Run deletes every object matching params. params is the immutable encoded
// form of the caller's query, captured before Run starts, so concurrent
// mutation of the original query cannot affect the run.
//
// Deleting invalidates browse cursors, so whenever a page carried a cursor
// the next iteration re-browses from the beginning instead of continuing
// from the stale cursor. Zero matches is success, not an error. Cancellation
// is checked before every step; any transport or protocol error ends the run
// immediately.
func (s *Service) Run(ctx context.Context, tok *async.Token, params string) error {
	for {
		if tok.Cancelled() {
			return async.ErrCancelled
		}
		page, err := s.browser.Browse(ctx, params)
		if err != nil {
			return fmt.Errorf("browse: %w", err)
		}
		if page.Hits == nil {
			return domain.ErrNoHits
		}

		ids := page.ObjectIDs()
		if len(ids) == 0 {
			return nil
		}

		if tok.Cancelled() {
			return async.ErrCancelled
		}
		taskID, err := s.deleter.DeleteObjects(ctx, ids)
		if err != nil {
			return fmt.Errorf("delete objects: %w", err)
		}

		if tok.Cancelled() {
			return async.ErrCancelled
		}
		if err := s.waiter.Wait(ctx, tok, taskID); err != nil {
			return fmt.Errorf("wait task %d: %w", taskID, err)
		}

		if page.Cursor == "" {
			return nil
		}
	}
}

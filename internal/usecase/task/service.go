// Package task implements the task-completion polling loop: poll the status
// endpoint at a fixed interval until the task is published.
package task

import (
	"context"
	"time"

	"github.com/quiverhq/quiver-go/internal/async"
	domtask "github.com/quiverhq/quiver-go/internal/domain/task"
)

// pollInterval is the fixed delay between status polls.
const pollInterval = 100 * time.Millisecond

// Service waits for asynchronous write tasks to publish.
type Service struct {
	statuses StatusReader
	interval time.Duration
}

// New creates a task waiter.
func New(statuses StatusReader) *Service {
	return &Service{statuses: statuses, interval: pollInterval}
}

// Wait polls until the task reports published, a transport error occurs, the
// token is cancelled, or ctx expires.
//
// A transport error is terminal: the status check is a fast-fail probe, not a
// retried call. Any status other than published keeps the loop going — there
// is no failure state in the task model. Without an external timeout the loop
// runs until the engine publishes the task.
func (s *Service) Wait(ctx context.Context, tok *async.Token, taskID int64) (domtask.Status, error) {
	for {
		if tok.Cancelled() {
			return domtask.Status{}, async.ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return domtask.Status{}, err
		}

		status, err := s.statuses.TaskStatus(ctx, taskID)
		if err != nil {
			return domtask.Status{}, err
		}
		if status.Published() {
			return status, nil
		}

		if !tok.Sleep(ctx, s.interval) {
			if tok.Cancelled() {
				return domtask.Status{}, async.ErrCancelled
			}
			return domtask.Status{}, ctx.Err()
		}
	}
}

package task

import (
	"context"

	domtask "github.com/quiverhq/quiver-go/internal/domain/task"
)

// StatusReader fetches the current status of one task. The implementation is
// bound to an index by the caller.
type StatusReader interface {
	TaskStatus(ctx context.Context, taskID int64) (domtask.Status, error)
}

// Package task models the engine's asynchronous write tasks.
package task

// StatusPublished is the terminal task state: the write has been applied and
// is visible to searches.
const StatusPublished = "published"

// Status is the task-status endpoint response.
type Status struct {
	Status      string `json:"status"`
	PendingTask bool   `json:"pendingTask"`
}

// Published reports whether the task reached its terminal state. Any other
// status value means "not yet published"; the model has no failure state —
// failures surface as transport errors.
func (s Status) Published() bool { return s.Status == StatusPublished }

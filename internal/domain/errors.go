// Package domain holds sentinel errors shared across the client's use cases.
package domain

import "errors"

// Protocol-shape errors: the engine answered, but the response is missing a
// field the workflow depends on. Distinct from transport errors, which pass
// through verbatim.
var (
	ErrNoHits    = errors.New("no hits in browse response")
	ErrNoTaskID  = errors.New("no task ID in response")
	ErrNoResults = errors.New("no results in response")
)

// ErrObjectNotFound marks a lookup of an object ID the index does not hold.
// It wraps the transport's 404 so callers can check a stable sentinel instead
// of a status code.
var ErrObjectNotFound = errors.New("object not found")

package quiver

import (
	"github.com/quiverhq/quiver-go/internal/async"
	"github.com/quiverhq/quiver-go/internal/domain"
	"github.com/quiverhq/quiver-go/internal/transport/rest"
)

// Sentinel errors. Use errors.Is() to check.
var (
	// ErrNoHits: a browse response had no hits field.
	ErrNoHits = domain.ErrNoHits
	// ErrNoTaskID: a write was accepted but the response carried no task ID.
	ErrNoTaskID = domain.ErrNoTaskID
	// ErrNoResults: a multi-query response had no results array, or one of
	// its entries was malformed.
	ErrNoResults = domain.ErrNoResults
	// ErrObjectNotFound: GetObject asked for an object ID the index does not
	// hold.
	ErrObjectNotFound = domain.ErrObjectNotFound
	// ErrCancelled: the operation was cancelled before completing.
	ErrCancelled = async.ErrCancelled
	// ErrWaitTimeout: Operation.Wait gave up after the caller's timeout.
	ErrWaitTimeout = async.ErrWaitTimeout
)

// APIError is a non-2xx answer from the engine. Use errors.As() to inspect
// the status code.
type APIError = rest.APIError

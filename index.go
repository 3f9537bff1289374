package quiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quiverhq/quiver-go/internal/async"
	"github.com/quiverhq/quiver-go/internal/domain"
	domsearch "github.com/quiverhq/quiver-go/internal/domain/search"
	domtask "github.com/quiverhq/quiver-go/internal/domain/task"
	"github.com/quiverhq/quiver-go/internal/transport/rest"
	facetuc "github.com/quiverhq/quiver-go/internal/usecase/facet"
	purgeuc "github.com/quiverhq/quiver-go/internal/usecase/purge"
	taskuc "github.com/quiverhq/quiver-go/internal/usecase/task"
)

// Object is an untyped index record. Records are identified by their
// "objectID" attribute.
type Object map[string]any

// BatchRes is the engine's answer to a batch write: the accepted task and
// the object IDs it covers.
type BatchRes struct {
	TaskID    int64
	ObjectIDs []string
}

// UpdateRes is the engine's answer to a single write operation.
type UpdateRes struct {
	TaskID int64
}

// Index is a handle on one index of the application.
type Index struct {
	client *Client
	name   string

	waiter   *taskuc.Service
	purger   *purgeuc.Service
	searcher *facetuc.Service
}

func newIndex(c *Client, name string) *Index {
	idx := &Index{client: c, name: name}
	idx.waiter = taskuc.New(taskReader{idx})
	idx.purger = purgeuc.New(pageBrowser{idx}, batchDeleter{idx}, taskWaiter{idx})
	idx.searcher = facetuc.New(engineQuerier{c})
	return idx
}

// Name returns the index name.
func (i *Index) Name() string { return i.name }

func (i *Index) path(format string, a ...any) string {
	return "/1/indexes/" + url.PathEscape(i.name) + fmt.Sprintf(format, a...)
}

// --- object writes ---

type batchEntry struct {
	Action   string `json:"action"`
	Body     Object `json:"body,omitempty"`
	ObjectID string `json:"objectID,omitempty"`
}

// AddObjects indexes new objects. The engine assigns objectIDs to objects
// lacking one.
func (i *Index) AddObjects(ctx context.Context, objects []Object) (res BatchRes, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("add_objects", start, err) }()
	return i.batch(ctx, objectEntries("addObject", objects))
}

// SaveObjects replaces objects wholesale. Every object must carry an
// objectID.
func (i *Index) SaveObjects(ctx context.Context, objects []Object) (res BatchRes, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("save_objects", start, err) }()
	return i.batch(ctx, objectEntries("updateObject", objects))
}

// PartialUpdateObjects merges the given attributes into existing objects.
func (i *Index) PartialUpdateObjects(ctx context.Context, objects []Object) (res BatchRes, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("partial_update_objects", start, err) }()
	return i.batch(ctx, objectEntries("partialUpdateObject", objects))
}

// DeleteObjects removes objects by ID.
func (i *Index) DeleteObjects(ctx context.Context, objectIDs []string) (res BatchRes, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("delete_objects", start, err) }()

	entries := make([]batchEntry, 0, len(objectIDs))
	for _, id := range objectIDs {
		entries = append(entries, batchEntry{Action: "deleteObject", ObjectID: id})
	}
	return i.batch(ctx, entries)
}

func objectEntries(action string, objects []Object) []batchEntry {
	entries := make([]batchEntry, 0, len(objects))
	for _, o := range objects {
		entries = append(entries, batchEntry{Action: action, Body: o})
	}
	return entries
}

func (i *Index) batch(ctx context.Context, entries []batchEntry) (BatchRes, error) {
	body := map[string]any{"requests": entries}
	payload, err := i.client.exec.Do(ctx, http.MethodPost, i.path("/batch"), body, rest.Write)
	if err != nil {
		return BatchRes{}, err
	}
	var decoded struct {
		TaskID    *int64   `json:"taskID"`
		ObjectIDs []string `json:"objectIDs"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return BatchRes{}, fmt.Errorf("decode batch response: %w", err)
	}
	if decoded.TaskID == nil {
		return BatchRes{}, domain.ErrNoTaskID
	}
	return BatchRes{TaskID: *decoded.TaskID, ObjectIDs: decoded.ObjectIDs}, nil
}

// GetObject fetches one object, optionally restricted to the given
// attributes.
func (i *Index) GetObject(ctx context.Context, objectID string, attributes ...string) (obj Object, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("get_object", start, err) }()

	path := i.path("/%s", url.PathEscape(objectID))
	if len(attributes) > 0 {
		path += "?attributes=" + url.QueryEscape(strings.Join(attributes, ","))
	}
	payload, err := i.client.exec.Do(ctx, http.MethodGet, path, nil, rest.Read)
	if err != nil {
		var apiErr *rest.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", domain.ErrObjectNotFound, err)
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return obj, nil
}

// Clear removes every object from the index, keeping its settings.
func (i *Index) Clear(ctx context.Context) (res UpdateRes, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("clear_index", start, err) }()

	payload, err := i.client.exec.Do(ctx, http.MethodPost, i.path("/clear"), nil, rest.Write)
	if err != nil {
		return UpdateRes{}, err
	}
	return decodeUpdateRes(payload)
}

func decodeUpdateRes(payload []byte) (UpdateRes, error) {
	var decoded struct {
		TaskID *int64 `json:"taskID"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return UpdateRes{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.TaskID == nil {
		return UpdateRes{}, domain.ErrNoTaskID
	}
	return UpdateRes{TaskID: *decoded.TaskID}, nil
}

// --- task waiting ---

// WaitTask blocks until the given task is published. Polling has no built-in
// cap: bound it with ctx or use WaitTaskAsync plus Operation.Wait(timeout).
func (i *Index) WaitTask(ctx context.Context, taskID int64) (status TaskStatus, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("wait_task", start, err) }()
	return i.waiter.Wait(ctx, async.NewToken(), taskID)
}

// WaitTaskAsync starts waiting for the task on the worker pool and returns a
// cancellable handle.
func (i *Index) WaitTaskAsync(taskID int64) *Operation[TaskStatus] {
	op := async.Run(context.Background(), i.client.pool,
		func(ctx context.Context, tok *async.Token) (any, error) {
			start := time.Now()
			status, err := i.waiter.Wait(ctx, tok, taskID)
			i.client.obs.observe("wait_task", start, err)
			return status, err
		}, nil)
	return newOperation[TaskStatus](op)
}

// --- delete by query ---

// DeleteByQuery deletes every object matching q, browsing and batch-deleting
// until the index has no more matches. The query is captured up front:
// mutating q afterwards does not affect the run.
func (i *Index) DeleteByQuery(ctx context.Context, q *Query) (err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("delete_by_query", start, err) }()
	return i.purger.Run(ctx, async.NewToken(), browseParams(q))
}

// DeleteByQueryAsync runs DeleteByQuery on the worker pool. Cancelling the
// returned operation stops the workflow at its next step boundary.
func (i *Index) DeleteByQueryAsync(q *Query) *Operation[struct{}] {
	params := browseParams(q)
	op := async.Run(context.Background(), i.client.pool,
		func(ctx context.Context, tok *async.Token) (any, error) {
			start := time.Now()
			err := i.purger.Run(ctx, tok, params)
			i.client.obs.observe("delete_by_query", start, err)
			return struct{}{}, err
		}, nil)
	return newOperation[struct{}](op)
}

// browseParams captures the query for a delete-by-query run, requesting only
// the attribute the workflow needs.
func browseParams(q *Query) string {
	return q.Clone().
		SetAttributesToRetrieve([]string{"objectID"}).
		Encode()
}

// --- engine adapters for the workflow services ---

type taskReader struct{ idx *Index }

func (r taskReader) TaskStatus(ctx context.Context, taskID int64) (domtask.Status, error) {
	payload, err := r.idx.client.exec.Do(ctx, http.MethodGet,
		r.idx.path("/task/%d", taskID), nil, rest.Read)
	if err != nil {
		return domtask.Status{}, err
	}
	var status domtask.Status
	if err := json.Unmarshal(payload, &status); err != nil {
		return domtask.Status{}, fmt.Errorf("decode task status: %w", err)
	}
	return status, nil
}

type pageBrowser struct{ idx *Index }

func (b pageBrowser) Browse(ctx context.Context, params string) (domsearch.Response, error) {
	return b.idx.browse(ctx, map[string]any{"params": params})
}

type batchDeleter struct{ idx *Index }

func (d batchDeleter) DeleteObjects(ctx context.Context, objectIDs []string) (int64, error) {
	res, err := d.idx.DeleteObjects(ctx, objectIDs)
	if err != nil {
		return 0, err
	}
	return res.TaskID, nil
}

type taskWaiter struct{ idx *Index }

func (w taskWaiter) Wait(ctx context.Context, tok *async.Token, taskID int64) error {
	_, err := w.idx.waiter.Wait(ctx, tok, taskID)
	return err
}

type engineQuerier struct{ c *Client }

func (e engineQuerier) MultipleQueries(ctx context.Context, requests []domsearch.Request) (domsearch.MultiResponse, error) {
	return e.c.multipleQueries(ctx, requests)
}

package quiver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	quiver "github.com/quiverhq/quiver-go"
	"github.com/quiverhq/quiver-go/searchtest"
)

func newTestClient(t *testing.T, srv *searchtest.Server, opts ...quiver.Option) *quiver.Client {
	t.Helper()
	opts = append(opts, quiver.WithHosts([]string{srv.URL()}, []string{srv.URL()}))
	client, err := quiver.New("TESTAPP", "test-key", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

// seedObjects indexes objects and blocks until the write is published.
func seedObjects(t *testing.T, idx *quiver.Index, objects []quiver.Object) {
	t.Helper()
	res, err := idx.AddObjects(context.Background(), objects)
	if err != nil {
		t.Fatalf("AddObjects: %v", err)
	}
	if _, err := idx.WaitTask(context.Background(), res.TaskID); err != nil {
		t.Fatalf("WaitTask: %v", err)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := quiver.New("", "key"); err == nil {
		t.Error("expected error for empty application ID")
	}
	if _, err := quiver.New("APP", ""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestSearchCache_ServesRepeatedQuery(t *testing.T) {
	srv := searchtest.New()
	defer srv.Close()
	client := newTestClient(t, srv)
	idx := client.Index("books")

	seedObjects(t, idx, []quiver.Object{
		{"objectID": "1", "title": "the go programming language"},
		{"objectID": "2", "title": "learning go"},
	})

	client.EnableSearchCache()

	first, err := idx.Search(context.Background(), quiver.NewQuery("go"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := idx.Search(context.Background(), quiver.NewQuery("go"))
	if err != nil {
		t.Fatalf("Search (repeat): %v", err)
	}

	if got := srv.SearchCalls(); got != 1 {
		t.Errorf("search calls = %d, want 1 (second query should hit the cache)", got)
	}
	if first.NbHits != 2 || second.NbHits != 2 {
		t.Errorf("nbHits = %d / %d, want 2 / 2", first.NbHits, second.NbHits)
	}

	// A different query is a different cache key.
	if _, err := idx.Search(context.Background(), quiver.NewQuery("learning")); err != nil {
		t.Fatalf("Search (different): %v", err)
	}
	if got := srv.SearchCalls(); got != 2 {
		t.Errorf("search calls = %d, want 2", got)
	}
}

func TestDisableSearchCache_DropsEntries(t *testing.T) {
	srv := searchtest.New()
	defer srv.Close()
	client := newTestClient(t, srv)
	idx := client.Index("books")

	seedObjects(t, idx, []quiver.Object{{"objectID": "1", "title": "go"}})

	client.EnableSearchCache()
	if _, err := idx.Search(context.Background(), quiver.NewQuery("go")); err != nil {
		t.Fatalf("Search: %v", err)
	}

	client.DisableSearchCache()
	client.EnableSearchCache()

	if _, err := idx.Search(context.Background(), quiver.NewQuery("go")); err != nil {
		t.Fatalf("Search (after disable): %v", err)
	}
	if got := srv.SearchCalls(); got != 2 {
		t.Errorf("search calls = %d, want 2 (disable must drop stored entries)", got)
	}
}

func TestClearSearchCache(t *testing.T) {
	srv := searchtest.New()
	defer srv.Close()
	client := newTestClient(t, srv)
	idx := client.Index("books")

	seedObjects(t, idx, []quiver.Object{{"objectID": "1", "title": "go"}})

	client.EnableSearchCache()
	if _, err := idx.Search(context.Background(), quiver.NewQuery("go")); err != nil {
		t.Fatalf("Search: %v", err)
	}
	client.ClearSearchCache(context.Background())
	if _, err := idx.Search(context.Background(), quiver.NewQuery("go")); err != nil {
		t.Fatalf("Search (after clear): %v", err)
	}
	if got := srv.SearchCalls(); got != 2 {
		t.Errorf("search calls = %d, want 2", got)
	}
}

func TestMultipleQueries_ResultsInQueryOrder(t *testing.T) {
	srv := searchtest.New()
	defer srv.Close()
	client := newTestClient(t, srv)

	seedObjects(t, client.Index("books"), []quiver.Object{
		{"objectID": "b1", "title": "go"},
	})
	seedObjects(t, client.Index("movies"), []quiver.Object{
		{"objectID": "m1", "title": "go"},
		{"objectID": "m2", "title": "go again"},
	})

	results, err := client.MultipleQueries(context.Background(), []quiver.IndexedQuery{
		{IndexName: "books", Query: quiver.NewQuery("go")},
		{IndexName: "movies", Query: quiver.NewQuery("go")},
	})
	if err != nil {
		t.Fatalf("MultipleQueries: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].NbHits != 1 || results[1].NbHits != 2 {
		t.Errorf("nbHits = %d / %d, want 1 / 2", results[0].NbHits, results[1].NbHits)
	}
}

func TestBatch_MissingTaskID(t *testing.T) {
	// An engine answering 200 without a taskID is a protocol violation the
	// client surfaces as ErrNoTaskID.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"objectIDs":["1"]}`))
	}))
	defer srv.Close()

	client, err := quiver.New("TESTAPP", "test-key",
		quiver.WithHosts([]string{srv.URL}, []string{srv.URL}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	_, err = client.Index("books").DeleteObjects(context.Background(), []string{"1"})
	if !errors.Is(err, quiver.ErrNoTaskID) {
		t.Errorf("err = %v, want ErrNoTaskID", err)
	}
}

func TestAPIError_Surfaced(t *testing.T) {
	srv := searchtest.New()
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.Index("books").GetObject(context.Background(), "missing")
	var apiErr *quiver.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if !errors.Is(err, quiver.ErrObjectNotFound) {
		t.Errorf("err = %v, want ErrObjectNotFound in chain", err)
	}
}

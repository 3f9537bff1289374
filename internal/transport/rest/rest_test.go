package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestTransport(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{
		AppID:       "TESTAPP",
		APIKey:      "key",
		SearchHosts: []string{srv.URL},
		WriteHosts:  []string{srv.URL},
	})
	return c, srv
}

func TestDo_Headers(t *testing.T) {
	var gotApp, gotKey string
	c, _ := newTestTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotApp = r.Header.Get("X-Quiver-Application-Id")
		gotKey = r.Header.Get("X-Quiver-API-Key")
		w.Write([]byte(`{}`))
	}))

	if _, err := c.Do(context.Background(), http.MethodGet, "/1/indexes/i/settings", nil, Read); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotApp != "TESTAPP" || gotKey != "key" {
		t.Fatalf("credential headers = %q/%q", gotApp, gotKey)
	}
}

func TestDo_APIError(t *testing.T) {
	c, _ := newTestTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid API key"})
	}))

	_, err := c.Do(context.Background(), http.MethodGet, "/1/indexes/i/settings", nil, Read)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Message != "invalid API key" {
		t.Fatalf("APIError = %+v", apiErr)
	}
}

func TestDo_HTTPErrorDoesNotRotateHosts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(Config{
		AppID:       "TESTAPP",
		APIKey:      "key",
		SearchHosts: []string{srv.URL, srv.URL},
		WriteHosts:  []string{srv.URL, srv.URL},
	})

	_, err := c.Do(context.Background(), http.MethodGet, "/x", nil, Read)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on HTTP status)", calls.Load())
	}
}

func TestDo_TransportErrorRotatesToNextHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	dead := httptest.NewServer(http.HandlerFunc(nil))
	dead.Close() // guaranteed connection failure

	c := New(Config{
		AppID:       "TESTAPP",
		APIKey:      "key",
		SearchHosts: []string{dead.URL, srv.URL},
		WriteHosts:  []string{dead.URL, srv.URL},
	})

	payload, err := c.Do(context.Background(), http.MethodGet, "/x", nil, Read)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(payload) != `{"ok":true}` {
		t.Fatalf("payload = %s", payload)
	}

	// The pool remembers the rotation: the next call goes straight to the
	// live host.
	if _, err := c.Do(context.Background(), http.MethodGet, "/x", nil, Read); err != nil {
		t.Fatalf("second Do: %v", err)
	}
}

func TestDo_AllHostsFailed(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(nil))
	dead.Close()

	c := New(Config{
		AppID:       "TESTAPP",
		APIKey:      "key",
		SearchHosts: []string{dead.URL},
		WriteHosts:  []string{dead.URL},
	})

	if _, err := c.Do(context.Background(), http.MethodGet, "/x", nil, Read); err == nil {
		t.Fatal("expected failure when every host is down")
	}
}

func TestDefaultHosts(t *testing.T) {
	c := New(Config{AppID: "MyApp", APIKey: "k"})
	if got := c.search.current(); got != "https://myapp-dsn.quiver.net" {
		t.Fatalf("search host = %q", got)
	}
	if got := c.write.current(); got != "https://myapp.quiver.net" {
		t.Fatalf("write host = %q", got)
	}
}

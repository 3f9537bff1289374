// Package searchtest provides an in-process fake of the Quiver REST API for
// testing client code without a real deployment.
//
// The fake keeps indexes in memory and mirrors the engine's observable
// behavior where client logic depends on it: writes are asynchronous tasks
// that publish after a configurable delay, browse pages carry cursors, and
// any write invalidates outstanding cursors.
package searchtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultBrowsePageSize = 1000

// Server is the fake service. Create with New, point the client at URL(),
// and Close when done.
type Server struct {
	mu           sync.Mutex
	indexes      map[string]*index
	tasks        map[int64]time.Time // task ID → publish time
	nextTask     int64
	publishDelay time.Duration
	browsePage   int

	searchCalls atomic.Int64

	http *httptest.Server
}

type index struct {
	objects    map[string]map[string]any
	order      []string
	settings   map[string]any
	synonyms   map[string]map[string]any
	generation int64 // bumped on every write; outstanding cursors die with it
	nextID     int64
}

// Option configures the fake.
type Option func(*Server)

// WithPublishDelay makes write tasks publish only after d has elapsed,
// so WaitTask actually has to poll.
func WithPublishDelay(d time.Duration) Option {
	return func(s *Server) { s.publishDelay = d }
}

// WithBrowsePageSize caps browse pages at n objects, forcing cursors on
// larger indexes.
func WithBrowsePageSize(n int) Option {
	return func(s *Server) { s.browsePage = n }
}

// New starts the fake service.
func New(opts ...Option) *Server {
	s := &Server{
		indexes:    make(map[string]*index),
		tasks:      make(map[int64]time.Time),
		browsePage: defaultBrowsePageSize,
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(s.requireCredentials)
	r.Route("/1/indexes", func(r chi.Router) {
		r.Post("/{indexName}/queries", s.handleMultiQuery)
		r.Post("/{indexName}/query", s.handleSearch)
		r.Post("/{indexName}/browse", s.handleBrowse)
		r.Post("/{indexName}/batch", s.handleBatch)
		r.Post("/{indexName}/clear", s.handleClear)
		r.Get("/{indexName}/task/{taskID}", s.handleTaskStatus)
		r.Get("/{indexName}/settings", s.handleGetSettings)
		r.Put("/{indexName}/settings", s.handleSetSettings)
		r.Put("/{indexName}/synonyms/{objectID}", s.handleSaveSynonym)
		r.Delete("/{indexName}/synonyms/{objectID}", s.handleDeleteSynonym)
		r.Post("/{indexName}/synonyms/clear", s.handleClearSynonyms)
		r.Post("/{indexName}/synonyms/search", s.handleSearchSynonyms)
		r.Get("/{indexName}/{objectID}", s.handleGetObject)
	})
	s.http = httptest.NewServer(r)
	return s
}

// URL returns the base URL to hand the client as its host.
func (s *Server) URL() string { return s.http.URL }

// Close shuts the fake down.
func (s *Server) Close() { s.http.Close() }

// SearchCalls reports how many single-index search requests reached the
// fake. Useful for asserting cache behavior.
func (s *Server) SearchCalls() int64 { return s.searchCalls.Load() }

// Objects returns a snapshot of the objects currently stored in an index.
func (s *Server) Objects(indexName string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.objects[id])
	}
	return out
}

func (s *Server) requireCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Quiver-Application-Id") == "" || r.Header.Get("X-Quiver-API-Key") == "" {
			writeError(w, http.StatusForbidden, "missing credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getIndex(name string) *index {
	idx, ok := s.indexes[name]
	if !ok {
		idx = &index{
			objects:  make(map[string]map[string]any),
			settings: make(map[string]any),
			synonyms: make(map[string]map[string]any),
		}
		s.indexes[name] = idx
	}
	return idx
}

func (s *Server) newTask() int64 {
	s.nextTask++
	s.tasks[s.nextTask] = time.Now().Add(s.publishDelay)
	return s.nextTask
}

// --- handlers ---

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	s.mu.Lock()
	publishAt, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "task does not exist")
		return
	}

	status := "notPublished"
	pending := true
	if !time.Now().Before(publishAt) {
		status, pending = "published", false
	}
	writeJSON(w, map[string]any{"status": status, "pendingTask": pending})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []struct {
			Action   string         `json:"action"`
			Body     map[string]any `json:"body"`
			ObjectID string         `json:"objectID"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.getIndex(chi.URLParam(r, "indexName"))

	var objectIDs []string
	for _, req := range body.Requests {
		switch req.Action {
		case "addObject", "updateObject":
			id, _ := req.Body["objectID"].(string)
			if id == "" {
				idx.nextID++
				id = fmt.Sprintf("generated-%d", idx.nextID)
				req.Body["objectID"] = id
			}
			if _, exists := idx.objects[id]; !exists {
				idx.order = append(idx.order, id)
			}
			idx.objects[id] = req.Body
			objectIDs = append(objectIDs, id)
		case "partialUpdateObject":
			id, _ := req.Body["objectID"].(string)
			existing, ok := idx.objects[id]
			if !ok {
				existing = map[string]any{"objectID": id}
				idx.order = append(idx.order, id)
			}
			for k, v := range req.Body {
				existing[k] = v
			}
			idx.objects[id] = existing
			objectIDs = append(objectIDs, id)
		case "deleteObject":
			if _, ok := idx.objects[req.ObjectID]; ok {
				delete(idx.objects, req.ObjectID)
				for n, id := range idx.order {
					if id == req.ObjectID {
						idx.order = append(idx.order[:n], idx.order[n+1:]...)
						break
					}
				}
			}
			objectIDs = append(objectIDs, req.ObjectID)
		default:
			writeError(w, http.StatusBadRequest, "unknown action "+req.Action)
			return
		}
	}

	idx.generation++
	writeJSON(w, map[string]any{"taskID": s.newTask(), "objectIDs": objectIDs})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.getIndex(chi.URLParam(r, "indexName"))
	idx.objects = make(map[string]map[string]any)
	idx.order = nil
	idx.generation++
	writeJSON(w, map[string]any{"taskID": s.newTask()})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.getIndex(chi.URLParam(r, "indexName"))
	obj, ok := idx.objects[chi.URLParam(r, "objectID")]
	if !ok {
		writeError(w, http.StatusNotFound, "object does not exist")
		return
	}
	if attrs := r.URL.Query().Get("attributes"); attrs != "" {
		obj = projectObject(obj, strings.Split(attrs, ","))
	}
	writeJSON(w, obj)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.searchCalls.Add(1)
	var body struct {
		Params string `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid search body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.search(chi.URLParam(r, "indexName"), body.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleMultiQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []struct {
			IndexName string `json:"indexName"`
			Params    string `json:"params"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multi-query body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]map[string]any, 0, len(body.Requests))
	for _, req := range body.Requests {
		res, err := s.search(req.IndexName, req.Params)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		results = append(results, res)
	}
	writeJSON(w, map[string]any{"results": results})
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Params string `json:"params"`
		Cursor string `json:"cursor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid browse body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.getIndex(chi.URLParam(r, "indexName"))

	offset := 0
	params := body.Params
	if body.Cursor != "" {
		gen, off, cursorParams, err := decodeCursor(body.Cursor)
		if err != nil || gen != idx.generation {
			writeError(w, http.StatusBadRequest, "invalid or expired cursor")
			return
		}
		// The cursor carries the original query: continuation pages keep
		// filtering the way the first page did.
		offset, params = off, cursorParams
	}

	matched, err := s.matchObjects(idx, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	end := offset + s.browsePage
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[offset:end]

	values, _ := url.ParseQuery(params)
	hits := make([]map[string]any, 0, len(page))
	for _, obj := range page {
		hits = append(hits, projectParams(obj, values))
	}

	res := map[string]any{"hits": hits, "nbHits": len(matched)}
	if end < len(matched) {
		res["cursor"] = encodeCursor(idx.generation, end, params)
	}
	writeJSON(w, res)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, s.getIndex(chi.URLParam(r, "indexName")).settings)
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var settings map[string]any
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getIndex(chi.URLParam(r, "indexName")).settings = settings
	writeJSON(w, map[string]any{"taskID": s.newTask()})
}

func (s *Server) handleSaveSynonym(w http.ResponseWriter, r *http.Request) {
	var syn map[string]any
	if err := json.NewDecoder(r.Body).Decode(&syn); err != nil {
		writeError(w, http.StatusBadRequest, "invalid synonym body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getIndex(chi.URLParam(r, "indexName")).synonyms[chi.URLParam(r, "objectID")] = syn
	writeJSON(w, map[string]any{"taskID": s.newTask()})
}

func (s *Server) handleDeleteSynonym(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.getIndex(chi.URLParam(r, "indexName")).synonyms, chi.URLParam(r, "objectID"))
	writeJSON(w, map[string]any{"taskID": s.newTask()})
}

func (s *Server) handleClearSynonyms(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getIndex(chi.URLParam(r, "indexName")).synonyms = make(map[string]map[string]any)
	writeJSON(w, map[string]any{"taskID": s.newTask()})
}

func (s *Server) handleSearchSynonyms(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid synonym search body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.getIndex(chi.URLParam(r, "indexName"))

	ids := make([]string, 0, len(idx.synonyms))
	for id := range idx.synonyms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var hits []map[string]any
	for _, id := range ids {
		syn := idx.synonyms[id]
		if body.Query == "" || synonymMatches(syn, body.Query) {
			hits = append(hits, syn)
		}
	}
	writeJSON(w, map[string]any{"hits": hits, "nbHits": len(hits)})
}

func synonymMatches(syn map[string]any, query string) bool {
	q := strings.ToLower(query)
	for _, v := range syn {
		switch val := v.(type) {
		case string:
			if strings.Contains(strings.ToLower(val), q) {
				return true
			}
		case []any:
			for _, item := range val {
				if str, ok := item.(string); ok && strings.Contains(strings.ToLower(str), q) {
					return true
				}
			}
		}
	}
	return false
}

// --- search evaluation ---

// search evaluates one encoded query against an index. Caller holds s.mu.
func (s *Server) search(indexName, params string) (map[string]any, error) {
	idx := s.getIndex(indexName)
	values, err := url.ParseQuery(params)
	if err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	matched, err := s.matchObjects(idx, params)
	if err != nil {
		return nil, err
	}

	res := map[string]any{
		"nbHits": len(matched),
		"query":  values.Get("query"),
		"params": params,
	}

	// Facet counts over the full matched set, before pagination.
	if raw := values.Get("facets"); raw != "" {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, fmt.Errorf("invalid facets: %w", err)
		}
		facets := make(map[string]map[string]int, len(names))
		for _, name := range names {
			counts := make(map[string]int)
			for _, obj := range matched {
				for _, v := range attributeValues(obj, name) {
					counts[v]++
				}
			}
			facets[name] = counts
		}
		res["facets"] = facets
	}

	hitsPerPage := 20
	if v := values.Get("hitsPerPage"); v != "" {
		hitsPerPage, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid hitsPerPage: %w", err)
		}
	}
	page := 0
	if v := values.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid page: %w", err)
		}
	}

	start := page * hitsPerPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + hitsPerPage
	if end > len(matched) {
		end = len(matched)
	}

	hits := make([]map[string]any, 0, end-start)
	for _, obj := range matched[start:end] {
		hits = append(hits, projectParams(obj, values))
	}
	res["hits"] = hits
	res["page"] = page
	res["hitsPerPage"] = hitsPerPage
	if hitsPerPage > 0 {
		res["nbPages"] = (len(matched) + hitsPerPage - 1) / hitsPerPage
	} else {
		res["nbPages"] = 0
	}
	return res, nil
}

// matchObjects returns the objects matching the query text and facet
// filters, in insertion order. Caller holds s.mu.
func (s *Server) matchObjects(idx *index, params string) ([]map[string]any, error) {
	values, err := url.ParseQuery(params)
	if err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	var clauses []any
	if raw := values.Get("facetFilters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &clauses); err != nil {
			return nil, fmt.Errorf("invalid facetFilters: %w", err)
		}
	}
	text := strings.ToLower(values.Get("query"))

	var matched []map[string]any
	for _, id := range idx.order {
		obj := idx.objects[id]
		if text != "" && !objectContains(obj, text) {
			continue
		}
		if !clausesMatch(obj, clauses) {
			continue
		}
		matched = append(matched, obj)
	}
	return matched, nil
}

func objectContains(obj map[string]any, text string) bool {
	for _, v := range obj {
		if str, ok := v.(string); ok && strings.Contains(strings.ToLower(str), text) {
			return true
		}
	}
	return false
}

// clausesMatch applies the engine's facet filter semantics: clauses are
// AND-combined, a group clause matches when any of its atoms does.
func clausesMatch(obj map[string]any, clauses []any) bool {
	for _, clause := range clauses {
		switch c := clause.(type) {
		case string:
			if !atomMatches(obj, c) {
				return false
			}
		case []any:
			hit := false
			for _, atom := range c {
				if str, ok := atom.(string); ok && atomMatches(obj, str) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func atomMatches(obj map[string]any, atom string) bool {
	name, want, ok := strings.Cut(atom, ":")
	if !ok {
		return false
	}
	for _, v := range attributeValues(obj, name) {
		if v == want {
			return true
		}
	}
	return false
}

// attributeValues reads an attribute as a list of facet values: a string
// attribute yields itself, a string array yields each element.
func attributeValues(obj map[string]any, name string) []string {
	switch v := obj[name].(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func projectParams(obj map[string]any, values url.Values) map[string]any {
	raw := values.Get("attributesToRetrieve")
	if raw == "" {
		return obj
	}
	var attrs []string
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return obj
	}
	return projectObject(obj, attrs)
}

func projectObject(obj map[string]any, attrs []string) map[string]any {
	out := map[string]any{}
	for _, attr := range attrs {
		if attr == "*" {
			return obj
		}
		if v, ok := obj[attr]; ok {
			out[attr] = v
		}
	}
	// objectID always travels with a hit.
	if id, ok := obj["objectID"]; ok {
		out["objectID"] = id
	}
	return out
}

// --- cursors ---

func encodeCursor(generation int64, offset int, params string) string {
	return base64.StdEncoding.EncodeToString(
		fmt.Appendf(nil, "%d:%d:%s", generation, offset, params))
}

func decodeCursor(cursor string) (generation int64, offset int, params string, err error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, 0, "", err
	}
	parts := strings.SplitN(string(raw), ":", 3)
	if len(parts) != 3 {
		return 0, 0, "", fmt.Errorf("malformed cursor")
	}
	if generation, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return 0, 0, "", err
	}
	if offset, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, "", err
	}
	return generation, offset, parts[2], nil
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

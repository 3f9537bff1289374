package quiver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/quiverhq/quiver-go/internal/transport/rest"
)

// Settings is the index configuration: ranking, searchable attributes,
// faceting, pagination defaults, and so on. It is kept untyped — the schema
// belongs to the engine and evolves independently of this client.
type Settings map[string]any

// GetSettings fetches the index configuration.
func (i *Index) GetSettings(ctx context.Context) (s Settings, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("get_settings", start, err) }()

	payload, err := i.client.exec.Do(ctx, http.MethodGet, i.path("/settings"), nil, rest.Read)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// SetSettings replaces the index configuration. The change is an
// asynchronous task like any other write.
func (i *Index) SetSettings(ctx context.Context, s Settings) (res UpdateRes, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("set_settings", start, err) }()

	payload, err := i.client.exec.Do(ctx, http.MethodPut, i.path("/settings"), s, rest.Write)
	if err != nil {
		return UpdateRes{}, err
	}
	return decodeUpdateRes(payload)
}

// Synonym declares equivalent terms for matching. Type is one of the
// engine's synonym types ("synonym", "oneWaySynonym", ...).
type Synonym struct {
	ObjectID    string   `json:"objectID"`
	Type        string   `json:"type"`
	Synonyms    []string `json:"synonyms,omitempty"`
	Input       string   `json:"input,omitempty"`
	Word        string   `json:"word,omitempty"`
	Corrections []string `json:"corrections,omitempty"`
}

// SaveSynonym creates or replaces one synonym record.
func (i *Index) SaveSynonym(ctx context.Context, syn Synonym) (res UpdateRes, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("save_synonym", start, err) }()

	payload, err := i.client.exec.Do(ctx, http.MethodPut,
		i.path("/synonyms/%s", url.PathEscape(syn.ObjectID)), syn, rest.Write)
	if err != nil {
		return UpdateRes{}, err
	}
	return decodeUpdateRes(payload)
}

// DeleteSynonym removes one synonym record.
func (i *Index) DeleteSynonym(ctx context.Context, objectID string) (res UpdateRes, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("delete_synonym", start, err) }()

	payload, err := i.client.exec.Do(ctx, http.MethodDelete,
		i.path("/synonyms/%s", url.PathEscape(objectID)), nil, rest.Write)
	if err != nil {
		return UpdateRes{}, err
	}
	return decodeUpdateRes(payload)
}

// ClearSynonyms removes every synonym record of the index.
func (i *Index) ClearSynonyms(ctx context.Context) (res UpdateRes, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("clear_synonyms", start, err) }()

	payload, err := i.client.exec.Do(ctx, http.MethodPost, i.path("/synonyms/clear"), nil, rest.Write)
	if err != nil {
		return UpdateRes{}, err
	}
	return decodeUpdateRes(payload)
}

// SearchSynonyms lists synonym records matching text, paginated.
func (i *Index) SearchSynonyms(ctx context.Context, text string, page, hitsPerPage int) (syns []Synonym, err error) {
	start := time.Now()
	defer func() { i.client.obs.observe("search_synonyms", start, err) }()

	body := map[string]any{
		"query":       text,
		"page":        page,
		"hitsPerPage": hitsPerPage,
	}
	payload, err := i.client.exec.Do(ctx, http.MethodPost, i.path("/synonyms/search"), body, rest.Read)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Hits []Synonym `json:"hits"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode synonyms: %w", err)
	}
	return decoded.Hits, nil
}

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxDrafts  = "lexdraft_drafts"
	idxPrompts = "lexdraft_prompts"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// An unreachable server leaves the client unhealthy; the health loop picks it up later.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		zap.S().Warnw("search: meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

type indexSpec struct {
	uid        string
	rtyp       ResultType
	filterable []string
	searchable []string
	crop       []string
}

var indexSpecs = []indexSpec{
	{
		uid:        idxDrafts,
		rtyp:       ResultDraft,
		filterable: []string{"ownerId"},
		searchable: []string{"title", "content"},
		crop:       []string{"content"},
	},
	{
		uid:        idxPrompts,
		rtyp:       ResultPrompt,
		filterable: []string{"caseType", "docType"},
		searchable: []string{"caseType", "docType", "promptText"},
		crop:       []string{"promptText"},
	},
}

func (m *Meili) configureIndexes() {
	log := zap.S()
	for _, spec := range indexSpecs {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: spec.uid, PrimaryKey: "id"}); err != nil {
			log.Debugw("search: create index skipped", "index", spec.uid, "error", err)
		}
		index := m.client.Index(spec.uid)
		filterable := make([]interface{}, 0, len(spec.filterable))
		for _, attr := range spec.filterable {
			filterable = append(filterable, attr)
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.Warnw("search: filterable attributes not applied", "index", spec.uid, "error", err)
		}
		searchable := spec.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			log.Warnw("search: searchable attributes not applied", "index", spec.uid, "error", err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				zap.S().Info("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	queries := buildQueries(q)
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func buildQueries(q Query) []*meili.SearchRequest {
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	for _, spec := range indexSpecs {
		if q.FilterType != "" && q.FilterType != spec.rtyp {
			continue
		}
		req := &meili.SearchRequest{
			IndexUID:              spec.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			AttributesToCrop:      spec.crop,
			CropLength:            30,
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}
		if spec.rtyp == ResultDraft && q.OwnerID != "" {
			req.Filter = fmt.Sprintf("ownerId = %q", q.OwnerID)
		}
		queries = append(queries, req)
	}
	return queries
}

func indexToResultType(uid string) ResultType {
	for _, spec := range indexSpecs {
		if spec.uid == uid {
			return spec.rtyp
		}
	}
	return ""
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp, ID: decodeString(hit, "id")}

	switch rtyp {
	case ResultDraft:
		r.SessionID = r.ID
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "content"), decodeString(hit, "content"))
	case ResultPrompt:
		r.CaseType = decodeString(hit, "caseType")
		r.DocType = decodeString(hit, "docType")
		r.Title = r.CaseType + " " + r.DocType
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "promptText"), decodeString(hit, "promptText"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexDraft adds or updates a draft in the search index.
func (m *Meili) IndexDraft(d DraftRecord) error {
	_, err := m.client.Index(idxDrafts).AddDocuments([]DraftRecord{d}, nil)
	return err
}

// IndexPrompt adds or updates a document prompt in the search index.
func (m *Meili) IndexPrompt(p PromptRecord) error {
	_, err := m.client.Index(idxPrompts).AddDocuments([]PromptRecord{p}, nil)
	return err
}

// DeletePrompt removes a prompt from the search index.
func (m *Meili) DeletePrompt(id string) error {
	_, err := m.client.Index(idxPrompts).DeleteDocument(id, nil)
	return err
}

// IndexDrafts bulk-indexes drafts.
func (m *Meili) IndexDrafts(drafts []DraftRecord) error {
	if len(drafts) == 0 {
		return nil
	}
	_, err := m.client.Index(idxDrafts).AddDocuments(drafts, nil)
	return err
}

// IndexPrompts bulk-indexes prompts.
func (m *Meili) IndexPrompts(prompts []PromptRecord) error {
	if len(prompts) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPrompts).AddDocuments(prompts, nil)
	return err
}

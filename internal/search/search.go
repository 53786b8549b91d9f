// Package search indexes drafts and document prompts in Meilisearch, falling back to Postgres full-text search.
package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDraft  ResultType = "draft"
	ResultPrompt ResultType = "prompt"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	SessionID string     `json:"sessionId,omitempty"`
	CaseType  string     `json:"caseType,omitempty"`
	DocType   string     `json:"docType,omitempty"`
}

// Query describes a search request. OwnerID restricts draft hits to one user's sessions; empty means all.
type Query struct {
	Text       string
	FilterType ResultType
	OwnerID    string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// DraftRecord is the data we index for a draft. Drafts are keyed by session.
type DraftRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	OwnerID string `json:"ownerId"`
}

// PromptRecord is the data we index for a document prompt.
type PromptRecord struct {
	ID         string `json:"id"`
	CaseType   string `json:"caseType"`
	DocType    string `json:"docType"`
	PromptText string `json:"promptText"`
}

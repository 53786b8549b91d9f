package search

import (
	"context"

	"go.uber.org/zap"
)

type indexBackend interface {
	Searcher
	IndexDraft(d DraftRecord) error
	IndexPrompt(p PromptRecord) error
	DeletePrompt(id string) error
	IndexDrafts(drafts []DraftRecord) error
	IndexPrompts(prompts []PromptRecord) error
}

type fallbackBackend interface {
	Searcher
	LoadAllRecords(ctx context.Context) ([]DraftRecord, []PromptRecord, error)
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili indexBackend
	pgfts fallbackBackend
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{}
	if meili != nil {
		s.meili = meili
	}
	if pgfts != nil {
		s.pgfts = pgfts
	}
	return s
}

func (s *Service) primaryReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS. Failures degrade to an empty result.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primaryReady() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		zap.S().Warnw("search: meilisearch error, falling back to pgfts", "error", err)
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		zap.S().Errorw("search: pgfts error", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDraft indexes a draft (fire-and-forget to Meilisearch).
func (s *Service) IndexDraft(d DraftRecord) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.meili.IndexDraft(d); err != nil {
			zap.S().Warnw("search: index draft", "session_id", d.ID, "error", err)
		}
	}()
}

// IndexPrompt indexes a document prompt (fire-and-forget to Meilisearch).
func (s *Service) IndexPrompt(p PromptRecord) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.meili.IndexPrompt(p); err != nil {
			zap.S().Warnw("search: index prompt", "prompt_id", p.ID, "error", err)
		}
	}()
}

// DeletePrompt removes a prompt from the search index (fire-and-forget).
func (s *Service) DeletePrompt(id string) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.meili.DeletePrompt(id); err != nil {
			zap.S().Warnw("search: delete prompt", "prompt_id", id, "error", err)
		}
	}()
}

// ReindexAllFromPG pushes every draft and prompt from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.primaryReady() || s.pgfts == nil {
		return
	}
	drafts, prompts, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		zap.S().Errorw("search: reindex load failed", "error", err)
		return
	}
	if err := s.meili.IndexDrafts(drafts); err != nil {
		zap.S().Warnw("search: reindex drafts", "error", err)
	}
	if err := s.meili.IndexPrompts(prompts); err != nil {
		zap.S().Warnw("search: reindex prompts", "error", err)
	}
	zap.S().Infow("search: reindexed", "drafts", len(drafts), "prompts", len(prompts))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

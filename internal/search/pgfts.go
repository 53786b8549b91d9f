package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// The 'simple' configuration is used because draft text is mostly Korean.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

// buildSQL returns the count and data statements plus their shared arguments.
func buildSQL(q Query) (string, string, []any) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultDraft {
		where := "d.fts @@ " + tsQuery
		if q.OwnerID != "" {
			where += fmt.Sprintf(" AND cs.user_id = $%d", argN)
			args = append(args, q.OwnerID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'draft'::text AS type, d.session_id AS id, d.title,
				ts_headline('simple', d.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				d.session_id, ''::text AS case_type, ''::text AS doc_type,
				ts_rank(d.fts, %s) AS rank
			FROM drafts d
			LEFT JOIN chat_sessions cs ON cs.id = d.session_id
			WHERE %s`, tsQuery, tsQuery, where))
	}

	if q.FilterType == "" || q.FilterType == ResultPrompt {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'prompt'::text AS type, p.id::text, p.case_type || ' ' || p.doc_type AS title,
				ts_headline('simple', p.prompt_text, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS session_id, p.case_type, p.doc_type,
				ts_rank(p.fts, %s) AS rank
			FROM doc_prompts p
			WHERE p.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, session_id, case_type, doc_type
		FROM (%s) sub
		ORDER BY rank DESC, id
		LIMIT %d OFFSET %d`, union, limit, offset)
	return countSQL, dataSQL, args
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	if q.FilterType != "" && q.FilterType != ResultDraft && q.FilterType != ResultPrompt {
		return nil, 0, nil
	}

	countSQL, dataSQL, args := buildSQL(q)

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.SessionID, &r.CaseType, &r.DocType); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DraftRecord, []PromptRecord, error) {
	draftRows, err := p.db.QueryContext(ctx, `
		SELECT d.session_id, d.title, d.content, COALESCE(cs.user_id::text, '')
		FROM drafts d
		LEFT JOIN chat_sessions cs ON cs.id = d.session_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load drafts: %w", err)
	}
	defer draftRows.Close()

	drafts := make([]DraftRecord, 0)
	for draftRows.Next() {
		var d DraftRecord
		if err := draftRows.Scan(&d.ID, &d.Title, &d.Content, &d.OwnerID); err != nil {
			return nil, nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	if err := draftRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate drafts: %w", err)
	}

	promptRows, err := p.db.QueryContext(ctx, `SELECT id::text, case_type, doc_type, prompt_text FROM doc_prompts`)
	if err != nil {
		return nil, nil, fmt.Errorf("load prompts: %w", err)
	}
	defer promptRows.Close()

	prompts := make([]PromptRecord, 0)
	for promptRows.Next() {
		var pr PromptRecord
		if err := promptRows.Scan(&pr.ID, &pr.CaseType, &pr.DocType, &pr.PromptText); err != nil {
			return nil, nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, pr)
	}
	if err := promptRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate prompts: %w", err)
	}

	return drafts, prompts, nil
}

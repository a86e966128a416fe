package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the generated documents.fts column.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

// The 'simple' configuration matches the generated column and keeps
// non-English analyses searchable.
const ftsQuery = "plainto_tsquery('simple', $2)"

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	var total int
	err := p.db.QueryRowContext(ctx, `
		SELECT count(*) FROM documents d
		WHERE d.owner_id = $1 AND d.fts @@ `+ftsQuery,
		q.OwnerID, q.Text).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.id, d.file_name,
			ts_headline('simple', d.summary, %s, 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>'),
			d.language, COALESCE(d.authenticity, '')
		FROM documents d
		WHERE d.owner_id = $1 AND d.fts @@ %s
		ORDER BY ts_rank(d.fts, %s) DESC, d.created_at DESC
		LIMIT %d OFFSET %d`, ftsQuery, ftsQuery, ftsQuery, q.limit(), q.offset()),
		q.OwnerID, q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.FileName, &r.Snippet, &r.Language, &r.Authenticity); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, owner_id, file_name, summary,
			concat_ws(E'\n',
				(SELECT string_agg(value, E'\n') FROM jsonb_array_elements_text(pros)),
				(SELECT string_agg(value, E'\n') FROM jsonb_array_elements_text(cons)),
				(SELECT string_agg(value, E'\n') FROM jsonb_array_elements_text(potential_loopholes)),
				(SELECT string_agg(value, E'\n') FROM jsonb_array_elements_text(potential_challenges))),
			language, COALESCE(authenticity, ''), EXTRACT(EPOCH FROM created_at)::bigint
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	records := make([]DocumentRecord, 0)
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.FileName, &d.Summary, &d.Findings, &d.Language, &d.Authenticity, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		records = append(records, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return records, nil
}

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PG is the durable fallback for recap listing and search, backed by
// the archives table.
type PG struct {
	db *sql.DB
}

func NewPG(db *sql.DB) *PG {
	return &PG{db: db}
}

func (p *PG) Insert(ctx context.Context, recap Recap) error {
	doc, err := json.Marshal(recap)
	if err != nil {
		return fmt.Errorf("encode recap %s: %w", recap.Code, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO archives(code, mvp, steps, duration_seconds, recap)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE
		SET mvp = EXCLUDED.mvp, steps = EXCLUDED.steps,
		    duration_seconds = EXCLUDED.duration_seconds,
		    recap = EXCLUDED.recap, finished_at = NOW()
	`, recap.Code, recap.MVP, recap.Steps, recap.DurationSeconds, doc)
	if err != nil {
		return fmt.Errorf("insert recap %s: %w", recap.Code, err)
	}
	return nil
}

// Search matches the query against code and MVP; an empty query lists
// the most recent archives.
func (p *PG) Search(ctx context.Context, query string, limit int) ([]Recap, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT recap FROM archives
		WHERE $1 = '' OR code ILIKE '%' || $1 || '%' OR mvp ILIKE '%' || $1 || '%'
		ORDER BY finished_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search archives: %w", err)
	}
	defer rows.Close()

	var recaps []Recap
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan recap: %w", err)
		}
		var recap Recap
		if err := json.Unmarshal(doc, &recap); err != nil {
			return nil, fmt.Errorf("decode recap: %w", err)
		}
		recaps = append(recaps, recap)
	}
	return recaps, rows.Err()
}

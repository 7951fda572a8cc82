package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"blackout/api/internal/game"
)

// PostgresStore keeps one row per game code with an explicit version
// column. CAS is a conditional UPDATE on (code, version).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, code string) (game.State, int64, error) {
	var (
		version int64
		doc     []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, doc FROM sessions WHERE code=$1`, code).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return game.State{}, 0, ErrNotFound
	}
	if err != nil {
		return game.State{}, 0, fmt.Errorf("%w: get %s: %v", ErrUnavailable, code, err)
	}

	var state game.State
	if err := json.Unmarshal(doc, &state); err != nil {
		return game.State{}, 0, fmt.Errorf("decode session %s: %w", code, err)
	}
	return state, version, nil
}

func (s *PostgresStore) Create(ctx context.Context, state game.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.Code, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(code, version, doc) VALUES($1, 1, $2)
		 ON CONFLICT (code) DO NOTHING`, state.Code, doc)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrUnavailable, state.Code, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) CompareAndSet(ctx context.Context, code string, expected int64, state game.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", code, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET doc=$3, version=version+1, updated_at=NOW()
		 WHERE code=$1 AND version=$2`, code, expected, doc)
	if err != nil {
		return fmt.Errorf("%w: cas %s: %v", ErrUnavailable, code, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	// Zero rows: either the version moved on or the session is gone.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE code=$1)`, code).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: cas check %s: %v", ErrUnavailable, code, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *PostgresStore) Delete(ctx context.Context, code string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE code=$1`, code); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, code, err)
	}
	return nil
}

func (s *PostgresStore) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM sessions ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("%w: list codes: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Package archive preserves finished sessions: the full final document
// goes to object storage, a searchable recap goes to the search index
// with a Postgres fallback. The admin console browses past games here.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"blackout/api/internal/game"
)

// Recap is the searchable summary of one finished session.
type Recap struct {
	Code            string         `json:"code"`
	Steps           int            `json:"steps"`
	Players         []string       `json:"players"`
	DurationSeconds int64          `json:"durationSeconds"`
	MVP             string         `json:"mvp,omitempty"`
	SolverCounts    map[string]int `json:"solverCounts"`
	Reason          string         `json:"reason"`
	FinishedAt      int64          `json:"finishedAt"`
}

// Archive end reasons.
const (
	ReasonCompleted = "completed"
	ReasonDeleted   = "deleted"
)

// BuildRecap derives the summary from the final document.
func BuildRecap(state game.State, reason string, now time.Time) Recap {
	players := make([]string, 0, len(state.Players))
	for _, p := range state.Players {
		players = append(players, p.Name)
	}
	recap := Recap{
		Code:            state.Code,
		Steps:           state.Step,
		Players:         players,
		DurationSeconds: game.MissionDuration(state),
		SolverCounts:    game.SolverCounts(state),
		Reason:          reason,
		FinishedAt:      now.UnixMilli(),
	}
	if mvp, ok := game.MVP(state); ok {
		recap.MVP = mvp
	}
	return recap
}

// Service fans a finished session out to every configured sink. Any of
// the sinks may be nil; archiving degrades rather than failing the
// session operation that triggered it.
type Service struct {
	pg    *PG
	meili *Meili
	blobs *BlobStore
}

func NewService(pg *PG, meili *Meili, blobs *BlobStore) *Service {
	return &Service{pg: pg, meili: meili, blobs: blobs}
}

// Archive records the final state of a session. The Postgres write is
// synchronous since it is the fallback of record; blob upload and
// search indexing are fire-and-forget.
func (s *Service) Archive(ctx context.Context, state game.State, reason string) error {
	recap := BuildRecap(state, reason, time.Now())

	if s.pg != nil {
		if err := s.pg.Insert(ctx, recap); err != nil {
			return fmt.Errorf("archive %s: %w", state.Code, err)
		}
	}

	if s.blobs != nil {
		doc, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode final state %s: %w", state.Code, err)
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.blobs.Put(ctx, state.Code, doc); err != nil {
				log.Printf("archive: upload %s: %v", state.Code, err)
			}
		}()
	}

	if s.meili != nil && s.meili.Healthy() {
		go func() {
			if err := s.meili.IndexRecap(recap); err != nil {
				log.Printf("archive: index %s: %v", state.Code, err)
			}
		}()
	}

	return nil
}

// Search tries Meilisearch first and falls back to Postgres.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Recap, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.meili != nil && s.meili.Healthy() {
		recaps, err := s.meili.Search(query, limit)
		if err == nil {
			return recaps, nil
		}
		log.Printf("archive: meilisearch error, falling back to postgres: %v", err)
	}
	if s.pg != nil {
		return s.pg.Search(ctx, query, limit)
	}
	return []Recap{}, nil
}

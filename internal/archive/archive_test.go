package archive

import (
	"context"
	"testing"
	"time"

	"blackout/api/internal/game"
)

func finishedState() game.State {
	s := game.NewState("CAVE", 2, 1000)
	s, _ = game.Join(s, "p1", "P1", 2000)
	s, _ = game.Join(s, "p2", "P2", 3000)
	s, _ = game.Propose(s, "P1", "open door", 10000)
	s, _ = game.Accept(s, 11000)
	s, _ = game.Vote(s, "p1", 12000)
	s, _ = game.Vote(s, "p2", 13000)
	s, _ = game.Propose(s, "P1", "cut wire", 20000)
	s, _ = game.Accept(s, 21000)
	s, _ = game.Vote(s, "p1", 22000)
	s, _ = game.Vote(s, "p2", 23000)
	return s
}

func TestBuildRecap(t *testing.T) {
	s := finishedState()
	if !s.Complete() {
		t.Fatal("fixture must be a finished session")
	}

	recap := BuildRecap(s, ReasonCompleted, time.UnixMilli(30000))
	if recap.Code != "CAVE" || recap.Steps != 2 {
		t.Fatalf("unexpected recap: %+v", recap)
	}
	if recap.MVP != "P1" {
		t.Fatalf("expected MVP P1, got %q", recap.MVP)
	}
	if len(recap.Players) != 2 {
		t.Fatalf("expected 2 players, got %v", recap.Players)
	}
	if recap.SolverCounts["P1"] != 2 {
		t.Fatalf("unexpected solver counts: %v", recap.SolverCounts)
	}
	if recap.Reason != ReasonCompleted {
		t.Fatalf("unexpected reason: %s", recap.Reason)
	}
}

func TestBuildRecapTieHasNoMVP(t *testing.T) {
	s := game.NewState("CAVE", 10, 1000)
	s.History = []game.HistoryEntry{
		{Step: 1, SolverName: "A"},
		{Step: 2, SolverName: "B"},
	}
	s.Step = 2

	recap := BuildRecap(s, ReasonDeleted, time.UnixMilli(5000))
	if recap.MVP != "" {
		t.Fatalf("expected empty MVP on tie, got %q", recap.MVP)
	}
}

// With no sinks configured archiving is a no-op, not an error: a
// redis-only deployment without object storage must keep working.
func TestArchiveWithoutSinks(t *testing.T) {
	svc := NewService(nil, nil, nil)

	if err := svc.Archive(context.Background(), finishedState(), ReasonCompleted); err != nil {
		t.Fatalf("archive: %v", err)
	}

	recaps, err := svc.Search(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(recaps) != 0 {
		t.Fatalf("expected empty result, got %v", recaps)
	}
}

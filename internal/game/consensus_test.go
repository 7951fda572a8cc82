package game

import (
	"errors"
	"testing"
)

func twoPlayerSession(t *testing.T) State {
	t.Helper()
	s := NewState("CAVE", 10, 1000)
	s, err := Join(s, "p1", "P1", 2000)
	if err != nil {
		t.Fatalf("join p1: %v", err)
	}
	s, err = Join(s, "p2", "P2", 3000)
	if err != nil {
		t.Fatalf("join p2: %v", err)
	}
	return s
}

func TestFirstJoinerBecomesGameMaster(t *testing.T) {
	s := twoPlayerSession(t)

	gm, ok := s.GameMaster()
	if !ok {
		t.Fatal("expected a game-master")
	}
	if gm.ID != "p1" {
		t.Fatalf("expected p1 as GM, got %s", gm.ID)
	}
	if s.Players[1].IsGM {
		t.Fatal("second joiner must not be GM")
	}
}

func TestRejoinRefreshesNameWithoutDuplicating(t *testing.T) {
	s := twoPlayerSession(t)

	s, err := Join(s, "p2", "P2 bis", 4000)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(s.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(s.Players))
	}
	if s.Players[1].Name != "P2 bis" {
		t.Fatalf("expected refreshed name, got %q", s.Players[1].Name)
	}
}

// Full happy path from the protocol: propose, accept, everyone votes,
// auto-commit.
func TestProposeAcceptVoteCommit(t *testing.T) {
	s := twoPlayerSession(t)

	s, err := Propose(s, "P1", "open door", 10000)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if s.Proposal == nil || s.Proposal.PlayerName != "P1" || s.Proposal.ActionLabel != "open door" {
		t.Fatalf("unexpected proposal: %+v", s.Proposal)
	}

	s, err = Accept(s, 11000)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if s.Proposal != nil {
		t.Fatal("accept must clear the proposal")
	}
	if s.Validation == nil || len(s.Validation.ReadyPlayers) != 0 {
		t.Fatalf("expected open validation with empty ready set, got %+v", s.Validation)
	}

	s, err = Vote(s, "p1", 12000)
	if err != nil {
		t.Fatalf("vote p1: %v", err)
	}
	if s.Step != 0 {
		t.Fatalf("premature commit at step %d", s.Step)
	}

	s, err = Vote(s, "p2", 13000)
	if err != nil {
		t.Fatalf("vote p2: %v", err)
	}
	if s.Step != 1 {
		t.Fatalf("expected committed step 1, got %d", s.Step)
	}
	if s.Validation != nil {
		t.Fatal("commit must clear the validation")
	}
	if len(s.History) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(s.History))
	}
	entry := s.History[0]
	if entry.Step != 1 || entry.SolverName != "P1" {
		t.Fatalf("unexpected history entry: %+v", entry)
	}
	if entry.DurationSeconds != 12 { // 13000ms solve − 1000ms session start
		t.Fatalf("expected 12s duration, got %d", entry.DurationSeconds)
	}
}

func TestVoteIsIdempotent(t *testing.T) {
	s := twoPlayerSession(t)
	s, _ = Propose(s, "P1", "open door", 10000)
	s, _ = Accept(s, 11000)

	s, err := Vote(s, "p1", 12000)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	s, err = Vote(s, "p1", 12500)
	if err != nil {
		t.Fatalf("revote: %v", err)
	}
	if got := len(s.Validation.ReadyPlayers); got != 1 {
		t.Fatalf("expected 1 ready player after revote, got %d", got)
	}
	if s.Step != 0 {
		t.Fatal("revote must not commit")
	}
}

func TestProposalAndValidationNeverCoexist(t *testing.T) {
	s := twoPlayerSession(t)
	s, _ = Propose(s, "P1", "open door", 10000)

	if _, err := Propose(s, "P2", "smash window", 10500); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for second proposal, got %v", err)
	}

	s, _ = Accept(s, 11000)
	if s.Proposal != nil && s.Validation != nil {
		t.Fatal("proposal and validation must never both be set")
	}
	if _, err := Propose(s, "P2", "smash window", 11500); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition while vote open, got %v", err)
	}
}

func TestRejectReturnsToIdle(t *testing.T) {
	s := twoPlayerSession(t)
	s, _ = Propose(s, "P2", "press button", 10000)

	s, err := Reject(s, 11000)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if s.Proposal != nil || s.Validation != nil {
		t.Fatal("reject must return to idle")
	}
	if s.Message == "" {
		t.Fatal("reject must emit a message")
	}

	// Back to idle: a new proposal is accepted again.
	if _, err := Propose(s, "P1", "press button harder", 12000); err != nil {
		t.Fatalf("propose after reject: %v", err)
	}
}

func TestLeaveDuringVoteShrinksThresholdAndCommits(t *testing.T) {
	s := twoPlayerSession(t)
	s, _ = Join(s, "p3", "P3", 4000)
	s, _ = Propose(s, "P1", "open door", 10000)
	s, _ = Accept(s, 11000)
	s, _ = Vote(s, "p1", 12000)
	s, _ = Vote(s, "p2", 13000)

	if s.Step != 0 {
		t.Fatal("commit requires all three players")
	}

	// The missing voter disconnects: the remaining ready set now covers
	// the roster, so the step commits.
	s, err := Leave(s, "p3", 14000)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if s.Step != 1 {
		t.Fatalf("expected commit after leave, got step %d", s.Step)
	}
}

func TestLeavePrunesReadySet(t *testing.T) {
	s := twoPlayerSession(t)
	s, _ = Join(s, "p3", "P3", 4000)
	s, _ = Propose(s, "P1", "open door", 10000)
	s, _ = Accept(s, 11000)
	s, _ = Vote(s, "p3", 12000)

	s, err := Leave(s, "p3", 13000)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if len(s.Validation.ReadyPlayers) != 0 {
		t.Fatalf("expected pruned ready set, got %v", s.Validation.ReadyPlayers)
	}
	if s.Step != 0 {
		t.Fatal("vote must not commit with an empty ready set")
	}
}

func TestForceCommitBeforeFullCoverage(t *testing.T) {
	s := twoPlayerSession(t)
	s, _ = Propose(s, "P2", "decode glyphs", 10000)
	s, _ = Accept(s, 11000)
	s, _ = Vote(s, "p2", 12000)

	s, err := ForceCommit(s, 13000)
	if err != nil {
		t.Fatalf("force commit: %v", err)
	}
	if s.Step != 1 {
		t.Fatalf("expected step 1, got %d", s.Step)
	}
	if s.History[0].SolverName != "P2" {
		t.Fatalf("expected P2 as solver, got %s", s.History[0].SolverName)
	}
}

func TestStaleOperationsAreInvalidTransitions(t *testing.T) {
	s := twoPlayerSession(t)

	if _, err := Vote(s, "p1", 10000); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("vote without validation: got %v", err)
	}
	if _, err := Accept(s, 10000); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("accept without proposal: got %v", err)
	}
	if _, err := Reject(s, 10000); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reject without proposal: got %v", err)
	}
	if _, err := ForceCommit(s, 10000); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("force commit without validation: got %v", err)
	}
}

func TestVoteByUnknownPlayer(t *testing.T) {
	s := twoPlayerSession(t)
	s, _ = Propose(s, "P1", "open door", 10000)
	s, _ = Accept(s, 11000)

	if _, err := Vote(s, "ghost", 12000); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestStepIsMonotonicAcrossProtocol(t *testing.T) {
	s := twoPlayerSession(t)
	last := s.Step
	now := int64(10000)

	for i := 0; i < 3; i++ {
		s, _ = Propose(s, "P1", "act", now)
		s, _ = Accept(s, now+1)
		s, _ = Vote(s, "p1", now+2)
		s, _ = Vote(s, "p2", now+3)
		if s.Step != last+1 {
			t.Fatalf("commit %d: expected step %d, got %d", i, last+1, s.Step)
		}
		if len(s.History) != s.Step {
			t.Fatalf("history length %d exceeds step %d", len(s.History), s.Step)
		}
		last = s.Step
		now += 10000
	}
}

func TestLastUpdateStrictlyIncreases(t *testing.T) {
	s := twoPlayerSession(t)
	prev := s.LastUpdate

	// Same wall-clock instant for both writes: LastUpdate must still
	// advance.
	s, _ = Propose(s, "P1", "open door", prev)
	if s.LastUpdate <= prev {
		t.Fatalf("LastUpdate did not advance: %d -> %d", prev, s.LastUpdate)
	}
	prev = s.LastUpdate
	s, _ = Accept(s, prev)
	if s.LastUpdate <= prev {
		t.Fatalf("LastUpdate did not advance: %d -> %d", prev, s.LastUpdate)
	}
}

func TestProposeOnCompleteSession(t *testing.T) {
	s := NewState("CAVE", 1, 1000)
	s, _ = Join(s, "p1", "P1", 2000)
	s, _ = Propose(s, "P1", "open door", 3000)
	s, _ = Accept(s, 4000)
	s, _ = Vote(s, "p1", 5000)

	if !s.Complete() {
		t.Fatal("expected complete session")
	}
	if _, err := Propose(s, "P1", "again", 6000); !errors.Is(err, ErrSessionComplete) {
		t.Fatalf("expected ErrSessionComplete, got %v", err)
	}
}

func TestTransitionsDoNotAliasInput(t *testing.T) {
	s := twoPlayerSession(t)

	next, _ := Propose(s, "P1", "open door", 10000)
	next.Players[0].Name = "mutated"
	next.Proposal.PlayerName = "mutated"

	if s.Players[0].Name != "P1" {
		t.Fatalf("input roster mutated through result: %q", s.Players[0].Name)
	}
	if s.Proposal != nil {
		t.Fatal("input proposal mutated through result")
	}
}

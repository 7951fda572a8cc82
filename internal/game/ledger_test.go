package game

import "testing"

func stateWithHistory(solvers ...string) State {
	s := NewState("CAVE", 10, 0)
	for i, name := range solvers {
		s.History = append(s.History, HistoryEntry{
			Step:       i + 1,
			SolverName: name,
			SolvedAt:   int64(i+1) * 1000,
		})
		s.Step = i + 1
	}
	return s
}

func TestMVPStrictMaximum(t *testing.T) {
	s := stateWithHistory("A", "A", "B")

	mvp, ok := MVP(s)
	if !ok {
		t.Fatal("expected an MVP")
	}
	if mvp != "A" {
		t.Fatalf("expected A, got %s", mvp)
	}
}

func TestMVPTieYieldsNone(t *testing.T) {
	s := stateWithHistory("A", "A", "B", "B")

	if mvp, ok := MVP(s); ok {
		t.Fatalf("expected no MVP on tie, got %s", mvp)
	}
}

func TestMVPExcludesAdminSkips(t *testing.T) {
	s := stateWithHistory(AdminSolverName, AdminSolverName, AdminSolverName, "A")

	mvp, ok := MVP(s)
	if !ok {
		t.Fatal("expected an MVP despite admin skips")
	}
	if mvp != "A" {
		t.Fatalf("expected A, got %s", mvp)
	}
}

func TestMVPEmptyHistory(t *testing.T) {
	s := stateWithHistory()

	if mvp, ok := MVP(s); ok {
		t.Fatalf("expected no MVP for empty history, got %s", mvp)
	}
}

func TestMVPAdminOnlyHistory(t *testing.T) {
	s := stateWithHistory(AdminSolverName, AdminSolverName)

	if mvp, ok := MVP(s); ok {
		t.Fatalf("forced skips must never win the game, got %s", mvp)
	}
}

func TestSolverCounts(t *testing.T) {
	s := stateWithHistory("A", "B", "A", AdminSolverName)

	counts := SolverCounts(s)
	if counts["A"] != 2 || counts["B"] != 1 || counts[AdminSolverName] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestMissionDuration(t *testing.T) {
	s := NewState("CAVE", 10, 5000)
	s.LastUpdate = 65000

	if d := MissionDuration(s); d != 60 {
		t.Fatalf("expected 60s, got %d", d)
	}
}

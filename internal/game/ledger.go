package game

// Ledger derivations over the append-only history. Pure functions, no
// I/O; the history itself is only ever mutated by commit and AdminSkip.

// MissionDuration returns the elapsed play time in seconds, from session
// start to the last accepted write.
func MissionDuration(s State) int64 {
	return durationSince(s.StartTime, s.LastUpdate)
}

// SolverCounts tallies committed steps per solver. Admin skips are
// counted under AdminSolverName like any other entry; MVP filtering
// happens in MVP.
func SolverCounts(s State) map[string]int {
	counts := make(map[string]int, len(s.Players))
	for _, e := range s.History {
		counts[e.SolverName]++
	}
	return counts
}

// MVP returns the solver with strictly the most committed steps. A tie
// yields ok=false rather than an arbitrary pick, and forced admin skips
// never count.
func MVP(s State) (string, bool) {
	var best string
	bestCount := 0
	tied := false
	for name, count := range SolverCounts(s) {
		if name == AdminSolverName {
			continue
		}
		switch {
		case count > bestCount:
			best, bestCount, tied = name, count, false
		case count == bestCount:
			tied = true
		}
	}
	if bestCount == 0 || tied {
		return "", false
	}
	return best, true
}

package game

import (
	"fmt"
	"strconv"
)

// Join adds a player to the roster, or refreshes the name of a returning
// player. The first joiner becomes game-master.
func Join(s State, id, name string, now int64) (State, error) {
	if id == "" || name == "" {
		return s, fmt.Errorf("%w: empty id or name", ErrInvalidTransition)
	}
	out := s.clone()
	for i, p := range out.Players {
		if p.ID == id {
			out.Players[i].Name = name
			out.touch(now)
			return out, nil
		}
	}
	out.Players = append(out.Players, Player{
		ID:   id,
		Name: name,
		IsGM: len(out.Players) == 0,
	})
	out.touch(now)
	return out, nil
}

// Leave removes a player from the roster and prunes them from any open
// vote. Shrinking the roster can only ever complete a vote, never block
// it, so the threshold is re-evaluated afterwards.
func Leave(s State, id string, now int64) (State, error) {
	if !s.HasPlayer(id) {
		return s, ErrUnknownPlayer
	}
	out := s.clone()
	kept := out.Players[:0]
	for _, p := range out.Players {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	out.Players = kept
	out = pruneReady(out)
	out = maybeCommit(out, now)
	out.touch(now)
	return out, nil
}

// Propose registers a player's claim to have solved the current step.
// Only valid while no proposal and no vote are in flight.
func Propose(s State, playerName, actionLabel string, now int64) (State, error) {
	if s.Complete() {
		return s, ErrSessionComplete
	}
	if s.Proposal != nil || s.Validation != nil {
		return s, fmt.Errorf("%w: proposal or vote already open", ErrInvalidTransition)
	}
	out := s.clone()
	out.Proposal = &Proposal{PlayerName: playerName, ActionLabel: actionLabel}
	out.Message = playerName + " claims: " + actionLabel
	out.touch(now)
	return out, nil
}

// Accept lets the game-master turn the pending proposal into an open
// vote with an empty ready set.
func Accept(s State, now int64) (State, error) {
	if s.Proposal == nil {
		return s, fmt.Errorf("%w: no pending proposal", ErrInvalidTransition)
	}
	out := s.clone()
	out.Validation = &Validation{
		SolverName:   out.Proposal.PlayerName,
		ActionLabel:  out.Proposal.ActionLabel,
		ReadyPlayers: []string{},
	}
	out.Proposal = nil
	out.Message = "Validation open: " + out.Validation.ActionLabel
	out.touch(now)
	return out, nil
}

// Reject discards the pending proposal.
func Reject(s State, now int64) (State, error) {
	if s.Proposal == nil {
		return s, fmt.Errorf("%w: no pending proposal", ErrInvalidTransition)
	}
	out := s.clone()
	out.Message = "Proposal by " + out.Proposal.PlayerName + " rejected"
	out.Proposal = nil
	out.touch(now)
	return out, nil
}

// Vote marks a player ready during an open validation. Re-voting is a
// no-op. When the ready set covers the whole current roster the step
// commits automatically.
func Vote(s State, playerID string, now int64) (State, error) {
	if s.Validation == nil {
		return s, fmt.Errorf("%w: no open validation", ErrInvalidTransition)
	}
	if !s.HasPlayer(playerID) {
		return s, ErrUnknownPlayer
	}
	out := s.clone()
	if !contains(out.Validation.ReadyPlayers, playerID) {
		out.Validation.ReadyPlayers = append(out.Validation.ReadyPlayers, playerID)
	}
	out = pruneReady(out)
	out = maybeCommit(out, now)
	out.touch(now)
	return out, nil
}

// ForceCommit lets the game-master commit the open validation before
// full coverage. This is the manual resolution for votes stalled by
// disconnected players.
func ForceCommit(s State, now int64) (State, error) {
	if s.Validation == nil {
		return s, fmt.Errorf("%w: no open validation", ErrInvalidTransition)
	}
	out := s.clone()
	out = commit(out, now)
	out.touch(now)
	return out, nil
}

// pruneReady drops ids from the ready set that are no longer on the
// roster, so the threshold is always evaluated against the current
// player set.
func pruneReady(s State) State {
	if s.Validation == nil {
		return s
	}
	kept := s.Validation.ReadyPlayers[:0]
	for _, id := range s.Validation.ReadyPlayers {
		if s.HasPlayer(id) {
			kept = append(kept, id)
		}
	}
	s.Validation.ReadyPlayers = kept
	return s
}

// maybeCommit commits the open validation once every rostered player is
// ready. An empty roster can never auto-commit; only an admin skip can
// advance such a session.
func maybeCommit(s State, now int64) State {
	if s.Validation == nil || len(s.Players) == 0 {
		return s
	}
	for _, p := range s.Players {
		if !contains(s.Validation.ReadyPlayers, p.ID) {
			return s
		}
	}
	return commit(s, now)
}

// commit advances the step by exactly one and appends the history entry
// attributed to the accepted proposer. Callers must hold an open
// validation.
func commit(s State, now int64) State {
	solver := s.Validation.SolverName
	s.Validation = nil
	s.Step++
	s.History = append(s.History, HistoryEntry{
		Step:            s.Step,
		SolverName:      solver,
		SolvedAt:        now,
		DurationSeconds: durationSince(stepStart(s), now),
	})
	s.Message = "Step " + strconv.Itoa(s.Step) + " solved by " + solver
	return s
}

// stepStart is the reference instant for the duration of the entry about
// to be appended: the previous solve, or session start for the first
// step. Called before the new entry lands in History.
func stepStart(s State) int64 {
	if n := len(s.History); n > 0 {
		return s.History[n-1].SolvedAt
	}
	return s.StartTime
}

func durationSince(start, now int64) int64 {
	if now <= start {
		return 0
	}
	return (now - start) / 1000
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Package game holds the synchronized session document and the pure
// transition logic that mutates it. Every mutation is expressed as a
// function of (current state, intent) so that a writer losing a CAS race
// can re-derive its intent against the winner's state.
package game

import "errors"

// AdminSolverName is recorded in history entries produced by a forced
// admin skip. Entries under this name never count toward the MVP.
const AdminSolverName = "ADMIN (Skip)"

// DefaultFinalStep is used when a session is created without an explicit
// scenario length.
const DefaultFinalStep = 10

var (
	// ErrInvalidTransition is returned when an operation does not apply to
	// the current phase (e.g. voting while no validation is open). Callers
	// reached only via stale UI treat it as a no-op; the next poll corrects
	// the view.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrSessionComplete is returned for operations on a session whose
	// scenario already reached its final step.
	ErrSessionComplete = errors.New("session complete")

	// ErrUnknownPlayer is returned when an operation references a player id
	// absent from the roster.
	ErrUnknownPlayer = errors.New("unknown player")
)

// Player is one participant of a session. Exactly one player carries
// IsGM at steady state (the session creator), though the document must
// tolerate GM absence after a disconnect.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IsGM bool   `json:"isGM"`
}

// HistoryEntry records one committed step. The sequence is append-only.
type HistoryEntry struct {
	Step            int    `json:"step"`
	SolverName      string `json:"solverName"`
	SolvedAt        int64  `json:"solvedAt"`
	DurationSeconds int64  `json:"duration"`
}

// Proposal is a player's claim to have solved the current step, awaiting
// game-master acceptance.
type Proposal struct {
	PlayerName  string `json:"playerName"`
	ActionLabel string `json:"actionLabel"`
}

// Validation is the open voting period before a step commits. SolverName
// and ActionLabel carry the accepted proposal forward so the eventual
// commit can attribute the step.
type Validation struct {
	SolverName   string   `json:"solverName"`
	ActionLabel  string   `json:"actionLabel"`
	ReadyPlayers []string `json:"readyPlayers"`
}

// AdminCommand is the last privileged out-of-band command. IDs are
// monotonic within a session; clients apply each id at most once.
type AdminCommand struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// Admin command types understood by clients.
const (
	AdminMessage = "MESSAGE"
	AdminGlitch  = "GLITCH"
)

// State is the single synchronized document for one game code. All
// timestamps are epoch milliseconds. LastUpdate strictly increases with
// every accepted write and doubles as the stale-write marker.
type State struct {
	Code       string         `json:"code"`
	Step       int            `json:"step"`
	FinalStep  int            `json:"finalStep"`
	Players    []Player       `json:"players"`
	History    []HistoryEntry `json:"history"`
	Message    string         `json:"message,omitempty"`
	Proposal   *Proposal      `json:"pendingProposal,omitempty"`
	Validation *Validation    `json:"validationRequest,omitempty"`
	Admin      *AdminCommand  `json:"admin_command,omitempty"`
	StartTime  int64          `json:"startTime"`
	LastUpdate int64          `json:"lastUpdate"`
}

// NewState creates the document for a freshly opened game code.
func NewState(code string, finalStep int, now int64) State {
	if finalStep <= 0 {
		finalStep = DefaultFinalStep
	}
	return State{
		Code:       code,
		FinalStep:  finalStep,
		Players:    []Player{},
		History:    []HistoryEntry{},
		StartTime:  now,
		LastUpdate: now,
	}
}

// Complete reports whether the scenario reached its terminal step.
func (s State) Complete() bool {
	return s.Step >= s.FinalStep
}

// GameMaster returns the current GM, if any.
func (s State) GameMaster() (Player, bool) {
	for _, p := range s.Players {
		if p.IsGM {
			return p, true
		}
	}
	return Player{}, false
}

// HasPlayer reports whether id is on the roster.
func (s State) HasPlayer(id string) bool {
	for _, p := range s.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// clone returns a copy that shares no mutable memory with s, so that
// transition functions never alias the caller's document.
func (s State) clone() State {
	out := s
	out.Players = append([]Player(nil), s.Players...)
	out.History = append([]HistoryEntry(nil), s.History...)
	if s.Proposal != nil {
		p := *s.Proposal
		out.Proposal = &p
	}
	if s.Validation != nil {
		v := *s.Validation
		v.ReadyPlayers = append([]string(nil), s.Validation.ReadyPlayers...)
		out.Validation = &v
	}
	if s.Admin != nil {
		a := *s.Admin
		out.Admin = &a
	}
	return out
}

// touch advances LastUpdate, keeping it strictly monotonic even if the
// wall clock stalls between two writes.
func (s *State) touch(now int64) {
	if now <= s.LastUpdate {
		now = s.LastUpdate + 1
	}
	s.LastUpdate = now
}

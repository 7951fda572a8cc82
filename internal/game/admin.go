package game

import "fmt"

// Admin intents bypass the voting protocol entirely but still flow
// through the same CAS write path as player operations, so they can
// never silently race an in-flight commit.

// AdminSend records a privileged command for clients to consume. The id
// is monotonic within the session; clients remember the last id they
// applied so duplicate polls never re-trigger a one-shot effect.
func AdminSend(s State, cmdType, payload string, now int64) (State, error) {
	switch cmdType {
	case AdminMessage, AdminGlitch:
	default:
		return s, fmt.Errorf("%w: unknown admin command %q", ErrInvalidTransition, cmdType)
	}
	out := s.clone()
	var next int64 = 1
	if out.Admin != nil {
		next = out.Admin.ID + 1
	}
	out.Admin = &AdminCommand{ID: next, Type: cmdType, Payload: payload}
	if cmdType == AdminMessage {
		out.Message = payload
	}
	out.touch(now)
	return out, nil
}

// AdminSkip commits a step unconditionally, discarding any in-flight
// proposal or vote. The history entry is attributed to AdminSolverName
// and therefore excluded from MVP counting.
func AdminSkip(s State, now int64) (State, error) {
	if s.Complete() {
		return s, ErrSessionComplete
	}
	out := s.clone()
	out.Proposal = nil
	out.Validation = &Validation{SolverName: AdminSolverName, ReadyPlayers: []string{}}
	out = commit(out, now)
	out.touch(now)
	return out, nil
}

// AdminReset rewinds the scenario to its start, keeping the roster. The
// only sanctioned way Step ever decreases.
func AdminReset(s State, now int64) State {
	out := s.clone()
	out.Step = 0
	out.History = []HistoryEntry{}
	out.Proposal = nil
	out.Validation = nil
	out.Message = "Session reset"
	out.StartTime = now
	out.touch(now)
	return out
}

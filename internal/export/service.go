package export

import (
	"context"
	"encoding/json"
	"fmt"

	"blackout/api/internal/game"
)

// SessionSource defines the read access the exporter needs
type SessionSource interface {
	Get(ctx context.Context, code string) (game.State, int64, error)
}

// Service renders mission debriefs from stored session documents
type Service struct {
	store SessionSource
}

// NewService creates a new debrief export service
func NewService(store SessionSource) *Service {
	return &Service{store: store}
}

// Export generates a debrief in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	state, _, err := s.store.Get(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	switch req.Format {
	case FormatPDF:
		html, err := RenderDebriefHTML(BuildTemplateData(state))
		if err != nil {
			return nil, fmt.Errorf("render debrief: %w", err)
		}
		return renderPDF(html, state.Code)
	case FormatJSON:
		return renderTranscript(state)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
}

// BuildTemplateData maps a session document onto the debrief template
func BuildTemplateData(state game.State) TemplateData {
	data := TemplateData{
		Code:            state.Code,
		Completed:       state.Complete(),
		Step:            state.Step,
		FinalStep:       state.FinalStep,
		DurationSeconds: game.MissionDuration(state),
		StartedAt:       state.StartTime,
	}
	if mvp, ok := game.MVP(state); ok {
		data.MVP = mvp
	}
	for _, p := range state.Players {
		name := p.Name
		if p.IsGM {
			name += " (GM)"
		}
		data.Players = append(data.Players, name)
	}
	for _, h := range state.History {
		data.Steps = append(data.Steps, TemplateStep{
			Step:            h.Step,
			SolverName:      h.SolverName,
			SolvedAt:        h.SolvedAt,
			DurationSeconds: h.DurationSeconds,
			AdminSkip:       h.SolverName == game.AdminSolverName,
		})
	}
	return data
}

// transcript is the JSON export shape. It is the raw session history
// plus the derived ledger numbers, so downstream tooling does not have
// to re-implement the MVP rules.
type transcript struct {
	Code            string              `json:"code"`
	Completed       bool                `json:"completed"`
	Step            int                 `json:"step"`
	FinalStep       int                 `json:"finalStep"`
	StartTime       int64               `json:"startTime"`
	DurationSeconds int64               `json:"durationSeconds"`
	MVP             string              `json:"mvp,omitempty"`
	SolverCounts    map[string]int      `json:"solverCounts"`
	Players         []game.Player       `json:"players"`
	History         []game.HistoryEntry `json:"history"`
}

func renderTranscript(state game.State) (*Result, error) {
	t := transcript{
		Code:            state.Code,
		Completed:       state.Complete(),
		Step:            state.Step,
		FinalStep:       state.FinalStep,
		StartTime:       state.StartTime,
		DurationSeconds: game.MissionDuration(state),
		SolverCounts:    game.SolverCounts(state),
		Players:         state.Players,
		History:         state.History,
	}
	if mvp, ok := game.MVP(state); ok {
		t.MVP = mvp
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return &Result{
		Data:     data,
		Filename: sanitizeFilename("debrief-"+state.Code) + ".json",
		MimeType: "application/json",
	}, nil
}

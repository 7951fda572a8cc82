package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"blackout/api/internal/archive"
	"blackout/api/internal/auth"
	"blackout/api/internal/config"
	"blackout/api/internal/export"
	"blackout/api/internal/game"
	"blackout/api/internal/joincode"
	"blackout/api/internal/rbac"
	"blackout/api/internal/store"
	"blackout/api/internal/util"
)

// Session identifies an authenticated participant. It is reconstructed
// from the bearer token on every request; the server keeps no session
// table.
type Session struct {
	Token      string
	PlayerID   string
	PlayerName string
	Role       rbac.Role
	Code       string
	JTI        string
	ExpiresAt  time.Time
}

// SessionView is the poll payload: the whole document plus the store
// version clients echo back for conflict detection.
type SessionView struct {
	State   game.State `json:"state"`
	Version int64      `json:"version"`
}

// SessionSummary is one row of the admin console's session list.
type SessionSummary struct {
	Code       string `json:"code"`
	Step       int    `json:"step"`
	FinalStep  int    `json:"finalStep"`
	Players    int    `json:"players"`
	Completed  bool   `json:"completed"`
	LastUpdate int64  `json:"lastUpdate"`
}

const defaultWriteRetries = 5

type Service struct {
	cfg      config.Config
	store    store.SessionStore
	archive  *archive.Service
	exporter *export.Service

	// Overridable in tests.
	now func() time.Time
}

func NewService(cfg config.Config, st store.SessionStore, arch *archive.Service, exp *export.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		archive:  arch,
		exporter: exp,
		now:      time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

func (s *Service) nowMillis() int64 {
	return s.now().UnixMilli()
}

// update runs one intent through the read-apply-replace loop. On a
// version conflict it re-reads and re-derives the intent against the
// fresh document, up to a bounded attempt count. The caller's apply
// function must be pure.
func (s *Service) update(ctx context.Context, code string, apply func(game.State, int64) (game.State, error)) (game.State, int64, error) {
	retries := s.cfg.WriteRetries
	if retries <= 0 {
		retries = defaultWriteRetries
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		state, version, err := s.store.Get(ctx, code)
		if err != nil {
			return game.State{}, 0, err
		}
		wasComplete := state.Complete()

		next, err := apply(state, s.nowMillis())
		if err != nil {
			return game.State{}, 0, err
		}

		if err := s.store.CompareAndSet(ctx, code, version, next); err != nil {
			if errors.Is(err, store.ErrConflict) {
				lastErr = err
				continue
			}
			return game.State{}, 0, err
		}

		if !wasComplete && next.Complete() {
			s.archiveAsync(next, archive.ReasonCompleted)
		}
		return next, version + 1, nil
	}
	return game.State{}, 0, lastErr
}

func (s *Service) archiveAsync(state game.State, reason string) {
	if s.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.archive.Archive(ctx, state, reason); err != nil {
			log.Printf("archive %s: %v", state.Code, err)
		}
	}()
}

// Join adds a player to the session identified by code, creating the
// session when code is empty. The first player to create a session
// becomes its game master.
func (s *Service) Join(ctx context.Context, code, name string) (Session, SessionView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, SessionView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	playerID := uuid.NewString()

	if code == "" {
		// Fresh session under a generated code. Collisions are
		// possible, just retry with a new draw.
		for attempt := 0; attempt < 5; attempt++ {
			sess, view, err := s.createSession(ctx, joincode.Generate(), playerID, name)
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return sess, view, err
		}
		return Session{}, SessionView{}, domainError(http.StatusServiceUnavailable, "CODE_EXHAUSTED", "could not allocate a game code", nil)
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if !joincode.Valid(code) {
		return Session{}, SessionView{}, domainError(http.StatusUnprocessableEntity, "INVALID_CODE", "malformed game code", nil)
	}

	next, version, err := s.update(ctx, code, func(st game.State, now int64) (game.State, error) {
		return game.Join(st, playerID, name, now)
	})
	if errors.Is(err, store.ErrNotFound) {
		// Join-or-create: an unknown code opens the session, and the
		// opener becomes its game master. Losing the create race means
		// someone else opened it first, so join normally.
		sess, view, cerr := s.createSession(ctx, code, playerID, name)
		if !errors.Is(cerr, store.ErrConflict) {
			return sess, view, cerr
		}
		next, version, err = s.update(ctx, code, func(st game.State, now int64) (game.State, error) {
			return game.Join(st, playerID, name, now)
		})
	}
	if err != nil {
		return Session{}, SessionView{}, err
	}

	return s.sessionFor(next, version, playerID, name)
}

func (s *Service) createSession(ctx context.Context, code, playerID, name string) (Session, SessionView, error) {
	state := game.NewState(code, s.cfg.DefaultFinalStep, s.nowMillis())
	state, err := game.Join(state, playerID, name, s.nowMillis())
	if err != nil {
		return Session{}, SessionView{}, err
	}
	if err := s.store.Create(ctx, state); err != nil {
		return Session{}, SessionView{}, err
	}
	return s.sessionFor(state, 1, playerID, name)
}

func (s *Service) sessionFor(state game.State, version int64, playerID, name string) (Session, SessionView, error) {
	role := rbac.RolePlayer
	for _, p := range state.Players {
		if p.ID == playerID && p.IsGM {
			role = rbac.RoleGameMaster
		}
	}

	jti := util.NewID("jti")
	expires := s.now().Add(s.tokenTTL())
	token, err := auth.IssueToken(s.tokenSecret(), auth.Claims{
		Sub:  playerID,
		Name: name,
		Role: string(role),
		Code: state.Code,
		JTI:  jti,
		Exp:  expires.Unix(),
	})
	if err != nil {
		return Session{}, SessionView{}, fmt.Errorf("issue token: %w", err)
	}

	return Session{
		Token:      token,
		PlayerID:   playerID,
		PlayerName: name,
		Role:       role,
		Code:       state.Code,
		JTI:        jti,
		ExpiresAt:  expires,
	}, SessionView{State: state, Version: version}, nil
}

func (s *Service) tokenSecret() []byte {
	return []byte(s.cfg.TokenSecret)
}

func (s *Service) tokenTTL() time.Duration {
	if s.cfg.TokenTTL <= 0 {
		return 12 * time.Hour
	}
	return s.cfg.TokenTTL
}

func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken(s.tokenSecret(), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:      token,
		PlayerID:   claims.Sub,
		PlayerName: claims.Name,
		Role:       rbac.Normalize(claims.Role),
		Code:       claims.Code,
		JTI:        claims.JTI,
		ExpiresAt:  time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) VerifyAdminKey(key string) error {
	return auth.VerifyAdminKey(s.cfg.AdminKeyHash, key)
}

// View is the poll endpoint's read path.
func (s *Service) View(ctx context.Context, code string) (SessionView, error) {
	state, version, err := s.store.Get(ctx, code)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{State: state, Version: version}, nil
}

func (s *Service) Propose(ctx context.Context, sess Session, actionLabel string) (SessionView, error) {
	actionLabel = strings.TrimSpace(actionLabel)
	if actionLabel == "" {
		return SessionView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "actionLabel is required", nil)
	}
	return s.applySession(ctx, sess, func(st game.State, now int64) (game.State, error) {
		return game.Propose(st, sess.PlayerName, actionLabel, now)
	})
}

func (s *Service) Accept(ctx context.Context, sess Session) (SessionView, error) {
	return s.applySession(ctx, sess, game.Accept)
}

func (s *Service) Reject(ctx context.Context, sess Session) (SessionView, error) {
	return s.applySession(ctx, sess, game.Reject)
}

func (s *Service) Ready(ctx context.Context, sess Session) (SessionView, error) {
	return s.applySession(ctx, sess, func(st game.State, now int64) (game.State, error) {
		return game.Vote(st, sess.PlayerID, now)
	})
}

func (s *Service) Confirm(ctx context.Context, sess Session) (SessionView, error) {
	return s.applySession(ctx, sess, game.ForceCommit)
}

func (s *Service) Leave(ctx context.Context, sess Session) (SessionView, error) {
	return s.applySession(ctx, sess, func(st game.State, now int64) (game.State, error) {
		return game.Leave(st, sess.PlayerID, now)
	})
}

func (s *Service) applySession(ctx context.Context, sess Session, apply func(game.State, int64) (game.State, error)) (SessionView, error) {
	state, version, err := s.update(ctx, sess.Code, apply)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{State: state, Version: version}, nil
}

// Admin channel. These bypass the consensus protocol but ride the same
// compare-and-set path as every player write.

func (s *Service) AdminCommand(ctx context.Context, code, cmdType, payload string) (SessionView, error) {
	state, version, err := s.update(ctx, code, func(st game.State, now int64) (game.State, error) {
		return game.AdminSend(st, cmdType, payload, now)
	})
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{State: state, Version: version}, nil
}

func (s *Service) AdminSkip(ctx context.Context, code string) (SessionView, error) {
	state, version, err := s.update(ctx, code, game.AdminSkip)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{State: state, Version: version}, nil
}

func (s *Service) AdminReset(ctx context.Context, code string) (SessionView, error) {
	state, version, err := s.update(ctx, code, func(st game.State, now int64) (game.State, error) {
		return game.AdminReset(st, now), nil
	})
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{State: state, Version: version}, nil
}

// Delete archives the final document, then removes it from the store.
func (s *Service) Delete(ctx context.Context, code string) error {
	state, _, err := s.store.Get(ctx, code)
	if err != nil {
		return err
	}
	s.archiveAsync(state, archive.ReasonDeleted)
	return s.store.Delete(ctx, code)
}

func (s *Service) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	codes, err := s.store.ListCodes(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]SessionSummary, 0, len(codes))
	for _, code := range codes {
		state, _, err := s.store.Get(ctx, code)
		if err != nil {
			// Expiry between list and read is normal under TTL stores.
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		summaries = append(summaries, SessionSummary{
			Code:       state.Code,
			Step:       state.Step,
			FinalStep:  state.FinalStep,
			Players:    len(state.Players),
			Completed:  state.Complete(),
			LastUpdate: state.LastUpdate,
		})
	}
	return summaries, nil
}

func (s *Service) SearchArchive(ctx context.Context, query string, limit int) ([]archive.Recap, error) {
	if s.archive == nil {
		return []archive.Recap{}, nil
	}
	return s.archive.Search(ctx, query, limit)
}

func (s *Service) Debrief(ctx context.Context, code string, format export.Format) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Debrief export not configured", nil)
	}
	return s.exporter.Export(ctx, export.Request{Code: code, Format: format})
}

func (s *Service) JoinQR(code string) ([]byte, error) {
	return joincode.PNG(s.cfg.PublicBaseURL, code)
}

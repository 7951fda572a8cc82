package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blackout/api/internal/auth"
	"blackout/api/internal/export"
	"blackout/api/internal/game"
	"blackout/api/internal/rbac"
	"blackout/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Join is the only unauthenticated write; it is what hands out
	// tokens in the first place.
	if r.Method == http.MethodPost && r.URL.Path == "/api/sessions/join" {
		s.handleJoin(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	// QR code for the join URL, shown on the lobby screen before
	// anyone is authenticated.
	if r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "sessions" && parts[3] == "qr" {
		png, err := s.service.JoinQR(strings.ToUpper(parts[2]))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "admin" {
		s.handleAdmin(w, r, parts)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "sessions" {
		code := strings.ToUpper(parts[2])
		if session.Code != code {
			writeError(w, http.StatusForbidden, "CODE_MISMATCH", "Token is scoped to another session", nil)
			return
		}
		if r.Method == http.MethodGet {
			view, err := s.service.View(r.Context(), code)
			if err != nil {
				status, errCode, message, details := mapError(err)
				writeError(w, status, errCode, message, details)
				return
			}
			writeJSON(w, http.StatusOK, view)
			return
		}
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "sessions" {
		code := strings.ToUpper(parts[2])
		if session.Code != code {
			writeError(w, http.StatusForbidden, "CODE_MISMATCH", "Token is scoped to another session", nil)
			return
		}
		s.handleSessionOp(w, r, session, parts[3])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	session, view, err := s.service.Join(r.Context(), body.Code, body.Name)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      session.Token,
		"playerId":   session.PlayerID,
		"playerName": session.PlayerName,
		"role":       session.Role,
		"code":       session.Code,
		"state":      view.State,
		"version":    view.Version,
	})
}

func (s *HTTPServer) handleSessionOp(w http.ResponseWriter, r *http.Request, session Session, op string) {
	var (
		view SessionView
		err  error
	)

	switch op {
	case "propose":
		if !s.service.Can(session.Role, rbac.ActionPropose) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			ActionLabel string `json:"actionLabel"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err = s.service.Propose(r.Context(), session, body.ActionLabel)
	case "accept":
		if !s.service.Can(session.Role, rbac.ActionAccept) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		view, err = s.service.Accept(r.Context(), session)
	case "reject":
		if !s.service.Can(session.Role, rbac.ActionReject) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		view, err = s.service.Reject(r.Context(), session)
	case "ready":
		if !s.service.Can(session.Role, rbac.ActionVote) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		view, err = s.service.Ready(r.Context(), session)
	case "confirm":
		if !s.service.Can(session.Role, rbac.ActionForce) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		view, err = s.service.Confirm(r.Context(), session)
	case "leave":
		view, err = s.service.Leave(r.Context(), session)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleAdmin serves the operator console. Every route under
// /api/admin requires the shared admin key; there is no per-admin
// identity.
func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, parts []string) {
	key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
	if err := s.service.VerifyAdminKey(key); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "sessions" {
		summaries, err := s.service.ListSessions(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "archive" {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		recaps, err := s.service.SearchArchive(r.Context(), r.URL.Query().Get("query"), limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": recaps})
		return
	}

	if len(parts) == 4 && parts[2] == "sessions" && r.Method == http.MethodDelete {
		code := strings.ToUpper(parts[3])
		if err := s.service.Delete(r.Context(), code); err != nil {
			status, errCode, message, details := mapError(err)
			writeError(w, status, errCode, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 5 && parts[2] == "sessions" {
		code := strings.ToUpper(parts[3])
		switch {
		case r.Method == http.MethodPost && parts[4] == "command":
			var body struct {
				Type    string `json:"type"`
				Payload string `json:"payload"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			view, err := s.service.AdminCommand(r.Context(), code, body.Type, body.Payload)
			s.writeAdminResult(w, view, err)
			return
		case r.Method == http.MethodPost && parts[4] == "skip":
			view, err := s.service.AdminSkip(r.Context(), code)
			s.writeAdminResult(w, view, err)
			return
		case r.Method == http.MethodPost && parts[4] == "reset":
			view, err := s.service.AdminReset(r.Context(), code)
			s.writeAdminResult(w, view, err)
			return
		case r.Method == http.MethodGet && parts[4] == "debrief":
			format := export.Format(r.URL.Query().Get("format"))
			if format == "" {
				format = export.FormatPDF
			}
			result, err := s.service.Debrief(r.Context(), code, format)
			if err != nil {
				status, errCode, message, details := mapError(err)
				writeError(w, status, errCode, message, details)
				return
			}
			w.Header().Set("Content-Type", result.MimeType)
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(result.Data)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) writeAdminResult(w http.ResponseWriter, view SessionView, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Admin-Key")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "STALE_WRITE", "Write lost to a concurrent update", nil
	}
	if errors.Is(err, store.ErrUnavailable) {
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Session store unavailable", nil
	}
	if errors.Is(err, game.ErrSessionComplete) {
		return http.StatusConflict, "SESSION_COMPLETE", "Session already complete", nil
	}
	if errors.Is(err, game.ErrInvalidTransition) {
		return http.StatusConflict, "INVALID_TRANSITION", "Operation not valid in current state", nil
	}
	if errors.Is(err, game.ErrUnknownPlayer) {
		return http.StatusForbidden, "UNKNOWN_PLAYER", "Player is not part of this session", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF renderer unavailable", nil
	}
	if errors.Is(err, export.ErrSessionUnavailable) {
		return http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return http.StatusBadRequest, "INVALID_FORMAT", "Unsupported debrief format", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

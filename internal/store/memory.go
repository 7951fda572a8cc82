package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"blackout/api/internal/game"
)

type memoryEntry struct {
	doc     []byte
	version int64
}

// MemoryStore is a mutex-guarded map backend for tests and single-node
// development. Documents round-trip through JSON so callers never share
// memory with the store, matching the durable backends.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, code string) (game.State, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[code]
	if !ok {
		return game.State{}, 0, ErrNotFound
	}
	var state game.State
	if err := json.Unmarshal(entry.doc, &state); err != nil {
		return game.State{}, 0, fmt.Errorf("decode session %s: %w", code, err)
	}
	return state, entry.version, nil
}

func (s *MemoryStore) Create(_ context.Context, state game.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.Code, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[state.Code]; ok {
		return ErrConflict
	}
	s.sessions[state.Code] = memoryEntry{doc: doc, version: 1}
	return nil
}

func (s *MemoryStore) CompareAndSet(_ context.Context, code string, expected int64, state game.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", code, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[code]
	if !ok {
		return ErrNotFound
	}
	if entry.version != expected {
		return ErrConflict
	}
	s.sessions[code] = memoryEntry{doc: doc, version: entry.version + 1}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
	return nil
}

func (s *MemoryStore) ListCodes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0, len(s.sessions))
	for code := range s.sessions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

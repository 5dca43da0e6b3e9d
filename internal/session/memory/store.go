// Package memory is an in-process session store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"topicrag/internal/domain"
)

// Store keeps sessions in a map guarded by a mutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

var _ domain.SessionStore = (*Store)(nil)

func New() *Store {
	return &Store{sessions: make(map[string]domain.Session)}
}

func (s *Store) Save(_ context.Context, sess domain.Session) error {
	if sess.SessionID == "" {
		return fmt.Errorf("%w: empty session id", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = clone(sess)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return clone(sess), nil
}

// List returns up to limit sessions, newest first. limit <= 0 means all.
func (s *Store) List(_ context.Context, limit int) ([]domain.Session, error) {
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, clone(sess))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].SessionID > out[j].SessionID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

func clone(s domain.Session) domain.Session {
	s.VideoSummaries = append([]domain.VideoSummary(nil), s.VideoSummaries...)
	s.MissingSources = append([]domain.MissingSource(nil), s.MissingSources...)
	return s
}

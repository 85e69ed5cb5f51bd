package memory

import (
	"context"
	"sort"
	"time"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

// SessionRepository implements port.SessionRepository in memory.
type SessionRepository struct {
	st *state
}

// Create stores a session.
func (r *SessionRepository) Create(_ context.Context, session domain.Session) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.users[session.UserID]; !ok {
		return repository.ErrNotFound
	}
	r.st.sessions[session.ID] = session
	return nil
}

// GetByID fetches a session by digest.
func (r *SessionRepository) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	session, ok := r.st.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

// Touch moves last activity forward; missing sessions are ignored.
func (r *SessionRepository) Touch(_ context.Context, sessionID string, at time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	session, ok := r.st.sessions[sessionID]
	if !ok {
		return nil
	}
	if at.After(session.LastActivity) {
		session.LastActivity = at
		r.st.sessions[sessionID] = session
	}
	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(_ context.Context, sessionID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	delete(r.st.sessions, sessionID)
	return nil
}

// DeleteAllForUser removes every session of the user.
func (r *SessionRepository) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	return r.st.deleteSessionsLocked(userID), nil
}

// ListByUser returns the user's sessions, newest first.
func (r *SessionRepository) ListByUser(_ context.Context, userID string) ([]domain.Session, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	sessions := make([]domain.Session, 0)
	for _, session := range r.st.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// DeleteExpired removes sessions past absolute expiry or idle for at least idleTimeout.
func (r *SessionRepository) DeleteExpired(_ context.Context, at time.Time, idleTimeout time.Duration) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	removed := 0
	for id, session := range r.st.sessions {
		if session.ExpiredAt(at) || session.IdleAt(at, idleTimeout) {
			delete(r.st.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *state) deleteSessionsLocked(userID string) int {
	removed := 0
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

var _ port.SessionRepository = (*SessionRepository)(nil)

package repository

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/sma-jadwal-mapel/internal/jadwal"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
)

// SessionRepository keeps open form sessions in memory. Stored values are
// copied in and out so callers never share a session struct.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*jadwal.Session
	now      func() time.Time
}

// NewSessionRepository constructs an empty store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*jadwal.Session), now: time.Now}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *jadwal.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID]; exists {
		return appErrors.Clone(appErrors.ErrConflict, "form session already exists")
	}
	r.sessions[session.ID] = session.Clone()
	return nil
}

// Get returns a copy of the session. Expired sessions report ErrSessionExpired.
func (r *SessionRepository) Get(ctx context.Context, id string) (*jadwal.Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "form session not found")
	}
	if session.Expired(r.now()) {
		return nil, appErrors.ErrSessionExpired
	}
	return session.Clone(), nil
}

// Update replaces a stored session.
func (r *SessionRepository) Update(ctx context.Context, session *jadwal.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "form session not found")
	}
	r.sessions[session.ID] = session.Clone()
	return nil
}

// Delete removes a session; deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// Sweep drops sessions that expired before now and returns how many were removed.
func (r *SessionRepository) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored sessions, expired or not.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

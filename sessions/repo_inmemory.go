package sessions

import (
	"errors"
	"sync"
	"time"

	consoleerrors "github.com/gatewaylabs/console/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo.
// Expired sessions are dropped on read.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	nowFunc  func() time.Time
}

// NewInMemoryRepo creates a new in-memory session repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]*Session),
		nowFunc:  time.Now,
	}
}

// Upsert creates or updates a session.
func (r *InMemoryRepo) Upsert(sessionID string, session *Session) error {
	if sessionID == "" {
		return errors.New("sessionID is required")
	}
	if session == nil {
		return errors.New("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = session
	return nil
}

// Get retrieves a session by ID, dropping it when expired.
func (r *InMemoryRepo) Get(sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID is required")
	}

	r.mu.RLock()
	session, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return nil, consoleerrors.ErrSessionNotFound
	}
	if r.nowFunc().After(session.ExpiresAt) {
		r.mu.Lock()
		delete(r.sessions, sessionID)
		r.mu.Unlock()
		return nil, consoleerrors.ErrSessionExpired
	}
	return session, nil
}

// Delete removes a session by ID. Deleting a missing session is not an
// error.
func (r *InMemoryRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

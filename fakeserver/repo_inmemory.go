package fakeserver

import (
	"sync"

	apperrors "github.com/jrsteele09/go-deeplink-auth/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*PendingSession
}

// NewInMemoryRepo creates a new in-memory pending session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]*PendingSession),
	}
}

// Bind stores a pending session, refusing to move a session id to another challenge
func (r *InMemoryRepo) Bind(sessionID string, session *PendingSession) error {
	if sessionID == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "session id cannot be empty")
	}
	if session == nil {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[sessionID]; ok && existing.Challenge != session.Challenge {
		return apperrors.ErrSessionBound
	}

	// Store a copy to prevent external modifications
	copied := *session
	r.sessions[sessionID] = &copied
	return nil
}

// Get retrieves a pending session by id
func (r *InMemoryRepo) Get(sessionID string) (*PendingSession, error) {
	if sessionID == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "session id cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		return nil, apperrors.ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

// Update applies fn to a copy of the session while holding the write lock
func (r *InMemoryRepo) Update(sessionID string, fn UpdateFunc) (*PendingSession, error) {
	if sessionID == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "session id cannot be empty")
	}
	if fn == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "update func cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		return nil, apperrors.ErrSessionNotFound
	}

	working := *session
	remove, err := fn(&working)
	if remove {
		delete(r.sessions, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if !remove {
		r.sessions[sessionID] = &working
	}

	copied := working
	return &copied, nil
}

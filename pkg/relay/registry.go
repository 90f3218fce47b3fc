package relay

import (
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/pion/randutil"
)

const (
	idRunes         = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxIdAttempts   = 16
	DefaultIdLength = 6
)

// Registry is the table of active sessions.
// Lock order is Registry, then Session, then Conn.
type Registry struct {
	mu       sync.Mutex
	sessions map[SessionId]*Session

	newId     func() (SessionId, error)
	newSecret func() (string, error)
	metrics   *Metrics
}

func NewRegistry(idLength int, metrics *Metrics) *Registry {
	if idLength <= 0 {
		idLength = DefaultIdLength
	}
	return &Registry{
		sessions: make(map[SessionId]*Session),
		newId: func() (SessionId, error) {
			id, err := randutil.GenerateCryptoRandomString(idLength, idRunes)
			return SessionId(id), err
		},
		newSecret: newSecret,
		metrics:   metrics,
	}
}

// newSecret makes a 32 hex char random token.
func newSecret() (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", u.Bytes()), nil
}

// Create makes a new session with the given connection as its display.
// Colliding ids are regenerated, never overwritten.
func (r *Registry) Create(display *Conn, capacity int) (*Session, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("bad session capacity %v", capacity)
	}
	secret, err := r.newSecret()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var id SessionId
	for i := 0; ; i++ {
		if i == maxIdAttempts {
			return nil, ErrIdSpaceExhausted
		}
		if id, err = r.newId(); err != nil {
			return nil, err
		}
		if _, taken := r.sessions[id]; !taken {
			break
		}
	}

	if !display.assign(Display{Session: id}) {
		if display.isGone() {
			return nil, ErrGone
		}
		return nil, ErrAlreadyAssigned
	}
	s := newSession(id, secret, capacity, display)
	r.sessions[id] = s
	r.metrics.sessionOpened()
	return s, nil
}

// Get returns a session by its id or nil.
func (r *Registry) Get(id SessionId) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Remove deletes the session by its id and returns it.
func (r *Registry) Remove(id SessionId) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[id]
	if s != nil {
		delete(r.sessions, id)
		r.metrics.sessionClosed()
	}
	return s
}

// removeOwned deletes the session only if display is still its display.
func (r *Registry) removeOwned(id SessionId, display *Conn) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[id]
	if s == nil || s.display != display {
		return nil
	}
	delete(r.sessions, id)
	r.metrics.sessionClosed()
	return s
}

// List returns a snapshot of all sessions.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int { r.mu.Lock(); defer r.mu.Unlock(); return len(r.sessions) }

// Close empties the registry and returns everything it had.
func (r *Registry) Close() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, id)
		r.metrics.sessionClosed()
	}
	return out
}

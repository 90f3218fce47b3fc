package relay

import (
	"crypto/subtle"
	"sync"

	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/com"
)

// Session is a display with up to capacity controllers.
type Session struct {
	id       SessionId
	secret   string
	capacity int
	// set once before the session is published
	display *Conn

	mu          sync.Mutex
	controllers []*Conn
	closed      bool
}

func newSession(id SessionId, secret string, capacity int, display *Conn) *Session {
	return &Session{
		id:          id,
		secret:      secret,
		capacity:    capacity,
		display:     display,
		controllers: make([]*Conn, 0, capacity),
	}
}

func (s *Session) Id() SessionId  { return s.id }
func (s *Session) Capacity() int  { return s.capacity }
func (s *Session) Display() *Conn { return s.display }

// Secret returns the join secret. Only the display should ever see it.
func (s *Session) Secret() string { return s.secret }

// CheckSecret compares the secret in constant time.
func (s *Session) CheckSecret(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(s.secret), []byte(secret)) == 1
}

func (s *Session) IsClosed() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.closed }

func (s *Session) Len() int { s.mu.Lock(); defer s.mu.Unlock(); return len(s.controllers) }

// Controllers returns a snapshot of the current members in join order.
func (s *Session) Controllers() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, len(s.controllers))
	copy(out, s.controllers)
	return out
}

// Controller finds a current member by its id.
func (s *Session) Controller(id com.Uid) *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.controllers {
		if c.Id() == id {
			return c
		}
	}
	return nil
}

// admit runs the join checks and adds the controller atomically
// with respect to other joins of the same session.
func (s *Session) admit(c *Conn, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotFound
	}
	if !s.CheckSecret(secret) {
		return ErrInvalidToken
	}
	if len(s.controllers) >= s.capacity {
		return ErrFull
	}
	if !c.assign(Controller{Session: s.id}) {
		if c.isGone() {
			return ErrGone
		}
		return ErrAlreadyJoined
	}
	s.controllers = append(s.controllers, c)

	// both under the lock so a member-left can't overtake the member-joined
	_ = c.Send(Reliable, api.JoinResult, api.JoinResultResponse{SessionId: s.id.String(), Success: true})
	_ = s.display.Send(Reliable, api.MemberJoined, api.Member{ControllerId: c.Id().String()})
	return nil
}

// remove takes the controller out of the session and notifies the display.
func (s *Session) remove(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for i, x := range s.controllers {
		if x == c {
			s.controllers = append(s.controllers[:i], s.controllers[i+1:]...)
			_ = s.display.Send(Reliable, api.MemberLeft, api.Member{ControllerId: c.Id().String()})
			return true
		}
	}
	return false
}

// close marks the session closed and hands out all of its controllers,
// whose roles are reset. Only the first call gets them.
func (s *Session) close() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	out := s.controllers
	s.controllers = nil
	for _, c := range out {
		c.release(s.id)
	}
	return out
}

package relay

import (
	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/com"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

// Reconciler cleans up after connections that are gone and
// runs the administrative teardown.
type Reconciler struct {
	reg *Registry
	dog *Watchdog
	log *logger.Logger
	// rearm is called for each live connection that lost its role.
	rearm func(*Conn)
}

func NewReconciler(reg *Registry, dog *Watchdog, log *logger.Logger, rearm func(*Conn)) *Reconciler {
	return &Reconciler{reg: reg, dog: dog, log: log, rearm: rearm}
}

// OnDisconnect handles a connection that is gone.
// It is safe to call it more than once and from any goroutine.
func (r *Reconciler) OnDisconnect(c *Conn) {
	role := c.leave()
	r.dog.Disarm(c)
	switch v := role.(type) {
	case Display:
		if s := r.reg.removeOwned(v.Session, c); s != nil {
			r.end(s, nil, true)
			c.log.Info().Str(logger.SessionField, s.Id().String()).Msg("Session has ended, display left")
		}
	case Controller:
		if s := r.reg.Get(v.Session); s != nil && s.remove(c) {
			c.log.Info().Str(logger.SessionField, s.Id().String()).Msg("Controller left")
		}
	}
}

// Teardown ends the session as if its display has left,
// the display is told about that as well.
func (r *Reconciler) Teardown(id SessionId) error {
	s := r.reg.Remove(id)
	if s == nil {
		return ErrNotFound
	}
	r.end(s, s.Display(), true)
	r.log.Info().Str(logger.SessionField, id.String()).Msg("Session has been torn down")
	return nil
}

// Finish ends the session of the display on its own request.
// The display stays connected and gets session-ended back.
// False means the connection hosts nothing (anymore).
func (r *Reconciler) Finish(display *Conn) bool {
	d, ok := display.Role().(Display)
	if !ok {
		return false
	}
	s := r.reg.removeOwned(d.Session, display)
	if s == nil {
		return false
	}
	r.end(s, display, true)
	display.log.Info().Str(logger.SessionField, s.Id().String()).Msg("Session has been ended by the display")
	return true
}

// Evict removes one controller from the session.
func (r *Reconciler) Evict(id SessionId, controller com.Uid) error {
	s := r.reg.Get(id)
	if s == nil {
		return ErrNotFound
	}
	c := s.Controller(controller)
	if c == nil || !s.remove(c) {
		return ErrNotFound
	}
	if c.release(id) {
		_ = c.Send(Reliable, api.SessionEnded, nil)
		r.rearm(c)
	}
	r.log.Info().Str(logger.SessionField, id.String()).Str(logger.ClientField, c.Id().Short()).
		Msg("Controller has been evicted")
	return nil
}

// end closes an already unpublished session and notifies its controllers
// and the display if it's not nil. With rearm the released connections
// get a new handshake watchdog.
func (r *Reconciler) end(s *Session, display *Conn, rearm bool) {
	var released []*Conn
	for _, c := range s.close() {
		if c.isGone() {
			continue
		}
		_ = c.Send(Reliable, api.SessionEnded, nil)
		released = append(released, c)
	}
	if display != nil && display.release(s.Id()) {
		_ = display.Send(Reliable, api.SessionEnded, nil)
		released = append(released, display)
	}
	if rearm {
		for _, c := range released {
			r.rearm(c)
		}
	}
}

// Close ends every session, the watchdog is not armed again.
func (r *Reconciler) Close() {
	for _, s := range r.reg.Close() {
		r.end(s, s.Display(), false)
	}
}

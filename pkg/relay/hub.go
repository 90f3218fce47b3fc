package relay

import (
	"errors"

	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/com"
	"github.com/slingshot-arcade/relay/pkg/config"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

// Hub glues together all the parts of the relay.
type Hub struct {
	conns *com.Map[com.Uid, *Conn]

	reg    *Registry
	gate   *Gate
	router *Router
	dog    *Watchdog
	rec    *Reconciler

	limits  *config.Limits
	log     *logger.Logger
	metrics *Metrics
}

func NewHub(limits *config.Limits, idLength int, log *logger.Logger, metrics *Metrics) *Hub {
	h := &Hub{
		conns:   com.NewMap[com.Uid, *Conn](),
		limits:  limits,
		log:     log,
		metrics: metrics,
	}
	h.reg = NewRegistry(idLength, metrics)
	h.gate = NewGate(h.reg, log, metrics)
	h.router = NewRouter(h.reg, log, metrics)
	h.dog = NewWatchdog(h.stalled)
	h.rec = NewReconciler(h.reg, h.dog, log, h.arm)
	return h
}

// Accept starts serving a new transport.
func (h *Hub) Accept(t Transport) *Conn {
	c := NewConn(t, h.log)
	h.conns.Put(c.Id(), c)
	h.metrics.connOpened()
	h.arm(c)
	c.log.Info().Str(logger.DirectionField, "←").Msg("Connected")
	t.OnMessage(func(data []byte) { h.handle(c, data) })
	t.OnDisconnect(func() { h.Disconnect(c) })
	return c
}

// Disconnect forgets the connection, can be called any number of times.
func (h *Hub) Disconnect(c *Conn) {
	if _, ok := h.conns.Pop(c.Id()); ok {
		h.metrics.connClosed()
		c.log.Info().Str(logger.DirectionField, "x").Msg("Disconnected")
	}
	h.rec.OnDisconnect(c)
}

func (h *Hub) handle(c *Conn, data []byte) {
	defer func() {
		if err := recover(); err != nil {
			c.log.Error().Msgf("Recovered from panic in the handler: %v", err)
		}
	}()

	in, err := api.Decode(data)
	if err != nil {
		h.metrics.drop(dropMalformed)
		c.log.Debug().Err(err).Str(logger.DirectionField, "←").Msg("Dropped")
		return
	}

	switch in.T {
	case api.CreateSession:
		h.create(c)
	case api.JoinSession:
		rq := api.Unwrap[api.JoinSessionRequest](in.Payload)
		if rq == nil {
			h.metrics.drop(dropMalformed)
			c.log.Debug().Str(logger.DirectionField, "←").Msg("Dropped malformed join")
			return
		}
		h.join(c, *rq)
	case api.SessionEnded:
		if !h.rec.Finish(c) {
			h.metrics.drop(dropRole)
			c.log.Debug().Str(logger.DirectionField, "←").Msg("Dropped SessionEnded from a non-display")
		}
	default:
		h.router.Relay(c, in.T, in.Payload)
	}
}

func (h *Hub) create(c *Conn) {
	if _, ok := c.Role().(Unassigned); !ok {
		c.log.Warn().Msgf("Create from a connection with a role %T, skipped", c.Role())
		return
	}
	s, err := h.reg.Create(c, h.limits.Capacity())
	if err != nil {
		switch {
		case errors.Is(err, ErrGone):
			c.log.Debug().Msg("Create from a closed connection")
		case errors.Is(err, ErrAlreadyAssigned):
			c.log.Warn().Msg("Create from a connection with a role, skipped")
		default:
			c.log.Error().Err(err).Msg("Couldn't create a session")
		}
		return
	}
	h.settle(c)
	c.log.Info().Str(logger.SessionField, s.Id().String()).Msgf("Session created, capacity: %v", s.Capacity())
	_ = c.Send(Reliable, api.SessionCreated, api.SessionCreatedResponse{
		SessionId: s.Id().String(),
		Secret:    s.Secret(),
	})
}

func (h *Hub) join(c *Conn, rq api.JoinSessionRequest) {
	if err := h.gate.Join(c, rq); err == nil {
		h.settle(c)
	}
}

// settle disarms the watchdog of a connection with a fresh role.
// A role lost in between brings the alarm back.
func (h *Hub) settle(c *Conn) {
	h.dog.Disarm(c)
	if _, ok := c.Role().(Unassigned); ok && !c.isGone() {
		h.arm(c)
	}
}

func (h *Hub) arm(c *Conn) { h.dog.Arm(c, h.limits.HandshakeTimeout()) }

func (h *Hub) stalled(c *Conn) {
	if _, ok := c.Role().(Unassigned); !ok || c.isGone() {
		return
	}
	h.metrics.stall()
	closing := h.limits.CloseStalled()
	c.log.Warn().Strs("hints", StallHints).Bool("close", closing).
		Msgf("No handshake in %v", h.limits.HandshakeTimeout())
	if closing {
		if err := c.Close(); err != nil {
			c.log.Debug().Err(err).Msg("Close of a stalled connection")
		}
	}
}

func (h *Hub) Registry() *Registry { return h.reg }

// Conns returns the number of live connections.
func (h *Hub) Conns() int { return h.conns.Len() }

// Teardown ends the session administratively.
func (h *Hub) Teardown(id SessionId) error { return h.rec.Teardown(id) }

// Evict removes the controller from the session administratively.
func (h *Hub) Evict(id SessionId, controller com.Uid) error { return h.rec.Evict(id, controller) }

// Close ends all the sessions, everybody is told about that.
func (h *Hub) Close() {
	h.rec.Close()
	h.dog.Close()
	h.log.Info().Msg("Relay hub has been closed")
}

package relay

import (
	"github.com/goccy/go-json"
	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/com"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

type source uint8

const (
	fromController source = iota
	fromDisplay
)

type target uint8

const (
	toDisplay target = iota
	toController
	toControllers
)

// Drop reasons.
const (
	dropUnknown   = "unknown type"
	dropRole      = "wrong role"
	dropNoSession = "no session"
	dropNoTarget  = "no target"
	dropMalformed = "malformed"
	dropRange     = "out of range"
)

// route describes who may send a packet type, how and where it goes.
// prepare turns the inbound payload into the outbound one,
// with addr set for addressed packets.
type route struct {
	from    source
	q       Quality
	to      target
	prepare func(from *Conn, p []byte) (out any, addr string, reason string)
}

// stamp puts the sender into a controller event, check looks at the
// fields routing depends on. All the other fields pass as they are.
func stamp(check func(api.Event) string) func(*Conn, []byte) (any, string, string) {
	return func(from *Conn, p []byte) (any, string, string) {
		e, err := api.UnwrapEvent(p)
		if err != nil {
			return nil, "", dropMalformed
		}
		if check != nil {
			if reason := check(e); reason != "" {
				return nil, "", reason
			}
		}
		e.SetController(from.Id().String())
		return e, "", ""
	}
}

func pointer(e api.Event) string {
	x, okX := e.Num("x")
	y, okY := e.Num("y")
	if !okX || !okY {
		return dropMalformed
	}
	if !api.InRange(x, y) {
		return dropRange
	}
	return ""
}

// addressed delivers a display payload byte for byte
// to the controller named in it.
func addressed(_ *Conn, p []byte) (any, string, string) {
	e, err := api.UnwrapEvent(p)
	if err != nil {
		return nil, "", dropMalformed
	}
	id, ok := e.Str(api.ControllerIdField)
	if !ok {
		return nil, "", dropNoTarget
	}
	return json.RawMessage(p), id, ""
}

func empty(*Conn, []byte) (any, string, string) { return nil, "", "" }

var routes = map[api.PT]route{
	api.BeginPointing:  {fromController, Reliable, toDisplay, stamp(nil)},
	api.PointerUpdate:  {fromController, Unreliable, toDisplay, stamp(pointer)},
	api.CancelPointing: {fromController, Reliable, toDisplay, stamp(nil)},
	api.CommitAction:   {fromController, Reliable, toDisplay, stamp(nil)},
	api.Targeting:      {fromController, Reliable, toDisplay, stamp(nil)},
	api.ActionOutcome:  {fromDisplay, Reliable, toController, addressed},
	api.SessionRestart: {fromDisplay, Reliable, toControllers, empty},
}

// Router forwards game events inside sessions.
// It never buffers or reorders, everything is sent on the caller goroutine.
type Router struct {
	reg     *Registry
	log     *logger.Logger
	metrics *Metrics
}

func NewRouter(reg *Registry, log *logger.Logger, metrics *Metrics) *Router {
	return &Router{reg: reg, log: log, metrics: metrics}
}

// Relay forwards one packet from a connection according to the route table.
// Whatever can't be delivered is dropped silently and the number of
// recipients is returned.
func (r *Router) Relay(from *Conn, t api.PT, payload []byte) int {
	rt, ok := routes[t]
	if !ok {
		return r.drop(from, t, dropUnknown)
	}

	var sid SessionId
	switch role := from.Role().(type) {
	case Display:
		if rt.from != fromDisplay {
			return r.drop(from, t, dropRole)
		}
		sid = role.Session
	case Controller:
		if rt.from != fromController {
			return r.drop(from, t, dropRole)
		}
		sid = role.Session
	default:
		return r.drop(from, t, dropRole)
	}

	s := r.reg.Get(sid)
	if s == nil || s.IsClosed() {
		return r.drop(from, t, dropNoSession)
	}

	out, addr, reason := rt.prepare(from, payload)
	if reason != "" {
		return r.drop(from, t, reason)
	}

	var to []*Conn
	switch rt.to {
	case toDisplay:
		if s.Controller(from.Id()) != from {
			return r.drop(from, t, dropNoSession)
		}
		to = []*Conn{s.Display()}
	case toController:
		if s.Display() != from {
			return r.drop(from, t, dropNoSession)
		}
		id, err := com.ParseUid(addr)
		if err != nil {
			return r.drop(from, t, dropNoTarget)
		}
		c := s.Controller(id)
		if c == nil {
			return r.drop(from, t, dropNoTarget)
		}
		to = []*Conn{c}
	case toControllers:
		if s.Display() != from {
			return r.drop(from, t, dropNoSession)
		}
		to = s.Controllers()
	}

	data, err := api.Encode(t, out)
	if err != nil {
		r.log.Error().Err(err).Msgf("couldn't encode %v", t)
		return r.drop(from, t, dropMalformed)
	}
	for _, c := range to {
		_ = c.write(rt.q, t, data)
	}
	r.metrics.relay(t.String(), rt.q, len(to))
	return len(to)
}

func (r *Router) drop(from *Conn, t api.PT, reason string) int {
	r.metrics.drop(reason)
	from.log.Debug().Str(logger.DirectionField, "←").Msgf("Dropped %v: %v", t, reason)
	return 0
}

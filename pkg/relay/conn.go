package relay

import (
	"sync"

	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/com"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

// Transport is one network endpoint as seen by the relay.
// It's owned by the transport layer, the relay only references it.
type Transport interface {
	Id() com.Uid
	// SendReliable sends ordered and retransmitted data, must not block.
	SendReliable(data []byte) error
	// SendUnreliable sends data without ordering or retransmits, must not block.
	SendUnreliable(data []byte) error
	OnMessage(fn func(data []byte))
	// OnDisconnect sets a callback that is called once when the endpoint is gone,
	// or right away if it is already gone.
	OnDisconnect(fn func())
	Close() error
}

// Quality is a message delivery quality.
type Quality uint8

const (
	Reliable Quality = iota
	Unreliable
)

func (q Quality) String() string {
	if q == Unreliable {
		return "unreliable"
	}
	return "reliable"
}

type SessionId string

func (s SessionId) String() string { return string(s) }

// Role is what a connection does in a session.
// One of Unassigned, Display or Controller.
type Role interface{ isRole() }

type (
	Unassigned struct{}
	Display    struct{ Session SessionId }
	Controller struct{ Session SessionId }
)

func (Unassigned) isRole() {}
func (Display) isRole()    {}
func (Controller) isRole() {}

// Conn is a transport endpoint with its role.
type Conn struct {
	Transport

	id  com.Uid
	log *logger.Logger

	mu   sync.Mutex
	role Role
	gone bool
}

func NewConn(t Transport, log *logger.Logger) *Conn {
	id := t.Id()
	return &Conn{
		Transport: t,
		id:        id,
		log:       log.Extend(log.With().Str(logger.ClientField, id.Short())),
		role:      Unassigned{},
	}
}

func (c *Conn) Id() com.Uid { return c.id }

func (c *Conn) Role() Role { c.mu.Lock(); defer c.mu.Unlock(); return c.role }

// assign gives a role to an unassigned connection that is still alive.
func (c *Conn) assign(r Role) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gone {
		return false
	}
	if _, ok := c.role.(Unassigned); !ok {
		return false
	}
	c.role = r
	return true
}

// release puts the connection back into the unassigned state
// if it still belongs to the session.
func (c *Conn) release(id SessionId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sessionOf(c.role) != id {
		return false
	}
	c.role = Unassigned{}
	return !c.gone
}

// leave marks the connection as gone and returns its last role.
// Subsequent calls return Unassigned.
func (c *Conn) leave() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.role
	c.role, c.gone = Unassigned{}, true
	return r
}

func (c *Conn) isGone() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.gone }

// Send encodes and sends a packet with the given quality.
func (c *Conn) Send(q Quality, t api.PT, payload any) error {
	data, err := api.Encode(t, payload)
	if err != nil {
		return err
	}
	return c.write(q, t, data)
}

func (c *Conn) write(q Quality, t api.PT, data []byte) (err error) {
	if q == Unreliable {
		err = c.SendUnreliable(data)
	} else {
		err = c.SendReliable(data)
	}
	if err != nil {
		c.log.Debug().Err(err).Str(logger.DirectionField, "→").Msgf("%v %v", t, q)
	}
	return
}

func (c *Conn) String() string { return c.id.String() }

func sessionOf(r Role) SessionId {
	switch v := r.(type) {
	case Display:
		return v.Session
	case Controller:
		return v.Session
	}
	return ""
}

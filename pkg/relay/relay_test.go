package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/com"
	"github.com/slingshot-arcade/relay/pkg/config"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

type packet struct {
	q Quality
	t api.PT
	p json.RawMessage
}

// fakeTransport is an in-memory endpoint that records everything sent to it.
type fakeTransport struct {
	id com.Uid

	mu     sync.Mutex
	out    []packet
	onMsg  func([]byte)
	onDc   func()
	gone   bool
	closed chan struct{}
}

func newFake() *fakeTransport {
	return &fakeTransport{id: com.NewUid(), closed: make(chan struct{})}
}

func (f *fakeTransport) Id() com.Uid                      { return f.id }
func (f *fakeTransport) SendReliable(data []byte) error   { return f.push(Reliable, data) }
func (f *fakeTransport) SendUnreliable(data []byte) error { return f.push(Unreliable, data) }
func (f *fakeTransport) OnMessage(fn func([]byte))        { f.mu.Lock(); f.onMsg = fn; f.mu.Unlock() }

func (f *fakeTransport) OnDisconnect(fn func()) {
	f.mu.Lock()
	gone := f.gone
	f.onDc = fn
	f.mu.Unlock()
	if gone {
		fn()
	}
}

func (f *fakeTransport) Close() error { f.disconnect(); return nil }

func (f *fakeTransport) disconnect() {
	f.mu.Lock()
	if f.gone {
		f.mu.Unlock()
		return
	}
	f.gone = true
	fn := f.onDc
	close(f.closed)
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeTransport) push(q Quality, data []byte) error {
	in, err := api.Decode(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone {
		return ErrGone
	}
	f.out = append(f.out, packet{q: q, t: in.T, p: in.Payload})
	return nil
}

// send emulates an inbound message from the endpoint.
func (f *fakeTransport) send(t api.PT, payload any) {
	data, err := api.Encode(t, payload)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	fn := f.onMsg
	f.mu.Unlock()
	fn(data)
}

func (f *fakeTransport) packets() []packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]packet, len(f.out))
	copy(out, f.out)
	return out
}

func (f *fakeTransport) types() []api.PT {
	var out []api.PT
	for _, p := range f.packets() {
		out = append(out, p.t)
	}
	return out
}

func (f *fakeTransport) last(t api.PT) *packet {
	pp := f.packets()
	for i := len(pp) - 1; i >= 0; i-- {
		if pp[i].t == t {
			return &pp[i]
		}
	}
	return nil
}

func (f *fakeTransport) count(t api.PT) (n int) {
	for _, p := range f.packets() {
		if p.t == t {
			n++
		}
	}
	return
}

func (f *fakeTransport) reset() { f.mu.Lock(); f.out = nil; f.mu.Unlock() }

func testLimits(capacity int) *config.Limits {
	return config.NewLimits(config.Relay{
		Capacity:         capacity,
		HandshakeTimeout: time.Minute,
		StallPolicy:      config.StallClose,
	})
}

func newTestHub(capacity int) *Hub {
	return NewHub(testLimits(capacity), DefaultIdLength, logger.Nop(), NewMetrics(nil))
}

type endpoint struct {
	*fakeTransport
	c *Conn
}

func (h *Hub) connect() endpoint {
	f := newFake()
	return endpoint{fakeTransport: f, c: h.Accept(f)}
}

// host creates a session with a new display.
func (h *Hub) host(t *testing.T) (endpoint, api.SessionCreatedResponse) {
	t.Helper()
	d := h.connect()
	d.send(api.CreateSession, nil)
	p := d.last(api.SessionCreated)
	if p == nil {
		t.Fatalf("no session created, got %v", d.types())
	}
	rs := api.Unwrap[api.SessionCreatedResponse](p.p)
	return d, *rs
}

// member joins a new controller into the session.
func (h *Hub) member(t *testing.T, s api.SessionCreatedResponse) endpoint {
	t.Helper()
	c := h.connect()
	c.send(api.JoinSession, api.JoinSessionRequest{SessionId: s.SessionId, Secret: s.Secret})
	rs := joinResult(t, c.fakeTransport)
	if !rs.Success {
		t.Fatalf("join failed: %v", rs.Error)
	}
	return c
}

func joinResult(t *testing.T, f *fakeTransport) api.JoinResultResponse {
	t.Helper()
	p := f.last(api.JoinResult)
	if p == nil {
		t.Fatalf("no join result, got %v", f.types())
	}
	if p.q != Reliable {
		t.Errorf("join result should be reliable")
	}
	return *api.Unwrap[api.JoinResultResponse](p.p)
}

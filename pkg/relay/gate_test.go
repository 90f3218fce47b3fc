package relay

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/slingshot-arcade/relay/pkg/api"
)

func TestJoin(t *testing.T) {
	h := newTestHub(4)
	h.reg.newId = func() (SessionId, error) { return "AB12CD", nil }
	h.reg.newSecret = func() (string, error) { return "9f0c7e6a5b4d3c2b1a0f9e8d7c6b5a4f", nil }

	d, s := h.host(t)
	if s.SessionId != "AB12CD" || s.Secret != "9f0c7e6a5b4d3c2b1a0f9e8d7c6b5a4f" {
		t.Fatalf("created %+v", s)
	}
	d.reset()

	c := h.connect()
	c.send(api.JoinSession, api.JoinSessionRequest{SessionId: "AB12CD", Secret: s.Secret})

	rs := joinResult(t, c.fakeTransport)
	if !rs.Success || rs.SessionId != "AB12CD" || rs.Error != "" {
		t.Errorf("join result %+v", rs)
	}
	joined := d.last(api.MemberJoined)
	if joined == nil {
		t.Fatalf("display got %v", d.types())
	}
	if m := api.Unwrap[api.Member](joined.p); m.ControllerId != c.Id().String() {
		t.Errorf("member joined %v, want %v", m.ControllerId, c.Id())
	}
	if role, ok := c.c.Role().(Controller); !ok || role.Session != "AB12CD" {
		t.Errorf("controller role %#v", c.c.Role())
	}
	if h.dog.Armed(c.c) {
		t.Errorf("joined controller is still watched")
	}
}

func TestJoinRejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *Hub, s api.SessionCreatedResponse) api.JoinSessionRequest
		want  string
	}{
		{
			name: "not found",
			setup: func(_ *testing.T, _ *Hub, s api.SessionCreatedResponse) api.JoinSessionRequest {
				return api.JoinSessionRequest{SessionId: "ZZZZZZ", Secret: s.Secret}
			},
			want: "not found",
		},
		{
			name: "invalid token",
			setup: func(_ *testing.T, _ *Hub, s api.SessionCreatedResponse) api.JoinSessionRequest {
				return api.JoinSessionRequest{SessionId: s.SessionId, Secret: "nope"}
			},
			want: "invalid token",
		},
		{
			name: "invalid token on a full session",
			setup: func(t *testing.T, h *Hub, s api.SessionCreatedResponse) api.JoinSessionRequest {
				h.member(t, s)
				return api.JoinSessionRequest{SessionId: s.SessionId, Secret: "nope"}
			},
			want: "invalid token",
		},
		{
			name: "full",
			setup: func(t *testing.T, h *Hub, s api.SessionCreatedResponse) api.JoinSessionRequest {
				h.member(t, s)
				return api.JoinSessionRequest{SessionId: s.SessionId, Secret: s.Secret}
			},
			want: "full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHub(1)
			d, s := h.host(t)
			rq := tt.setup(t, h, s)
			before := h.reg.Get(SessionId(s.SessionId)).Len()
			d.reset()

			c := h.connect()
			c.send(api.JoinSession, rq)

			rs := joinResult(t, c.fakeTransport)
			if rs.Success || rs.Error != tt.want {
				t.Errorf("join result %+v, want error %q", rs, tt.want)
			}
			if _, ok := c.c.Role().(Unassigned); !ok {
				t.Errorf("rejected connection has role %#v", c.c.Role())
			}
			if n := h.reg.Get(SessionId(s.SessionId)).Len(); n != before {
				t.Errorf("session size changed %v -> %v", before, n)
			}
			if n := d.count(api.MemberJoined); n != 0 {
				t.Errorf("display was told about a rejected join")
			}
			if !h.dog.Armed(c.c) {
				t.Errorf("rejected connection should stay watched")
			}
		})
	}
}

func TestJoinTwice(t *testing.T) {
	h := newTestHub(4)
	_, s := h.host(t)
	c := h.member(t, s)

	c.send(api.JoinSession, api.JoinSessionRequest{SessionId: s.SessionId, Secret: s.Secret})
	if rs := joinResult(t, c.fakeTransport); rs.Success || rs.Error != "already joined" {
		t.Errorf("second join %+v", rs)
	}
	if n := h.reg.Get(SessionId(s.SessionId)).Len(); n != 1 {
		t.Errorf("session has %v members", n)
	}
}

func TestDisplayCantJoin(t *testing.T) {
	h := newTestHub(4)
	_, s := h.host(t)
	d2, _ := h.host(t)

	d2.send(api.JoinSession, api.JoinSessionRequest{SessionId: s.SessionId, Secret: s.Secret})
	if rs := joinResult(t, d2.fakeTransport); rs.Success {
		t.Errorf("display joined as a controller")
	}
	if _, ok := d2.c.Role().(Display); !ok {
		t.Errorf("display lost its role")
	}
}

func TestJoinAfterDisconnect(t *testing.T) {
	h := newTestHub(4)
	_, s := h.host(t)

	c := h.connect()
	c.disconnect()
	if err := h.gate.TryJoin(SessionId(s.SessionId), s.Secret, c.c); err == nil {
		t.Fatalf("gone connection joined")
	}
	if n := h.reg.Get(SessionId(s.SessionId)).Len(); n != 0 {
		t.Errorf("session has %v members", n)
	}
	if _, ok := c.c.Role().(Unassigned); !ok {
		t.Errorf("gone connection got a role")
	}
}

func TestConcurrentJoins(t *testing.T) {
	const capacity, joiners = 4, 32

	h := newTestHub(capacity)
	d, s := h.host(t)

	var ok, full atomic.Int32
	var wg sync.WaitGroup
	wg.Add(joiners)
	for range joiners {
		go func() {
			defer wg.Done()
			c := h.connect()
			err := h.gate.TryJoin(SessionId(s.SessionId), s.Secret, c.c)
			switch err {
			case nil:
				ok.Add(1)
			case ErrFull:
				full.Add(1)
			default:
				t.Errorf("unexpected rejection %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != capacity || full.Load() != joiners-capacity {
		t.Errorf("joined %v, full %v", ok.Load(), full.Load())
	}
	if n := h.reg.Get(SessionId(s.SessionId)).Len(); n != capacity {
		t.Errorf("session has %v members", n)
	}
	if n := d.count(api.MemberJoined); n != capacity {
		t.Errorf("display got %v member-joined", n)
	}
}

func TestJoinOrder(t *testing.T) {
	h := newTestHub(4)
	d, s := h.host(t)

	var want []string
	for range 3 {
		want = append(want, h.member(t, s).Id().String())
	}

	var got []string
	for _, c := range h.reg.Get(SessionId(s.SessionId)).Controllers() {
		got = append(got, c.Id().String())
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("controllers %v, want %v", got, want)
	}
	var told []string
	for _, p := range d.packets() {
		if p.t == api.MemberJoined {
			told = append(told, api.Unwrap[api.Member](p.p).ControllerId)
		}
	}
	if !reflect.DeepEqual(told, want) {
		t.Errorf("display was told %v, want %v", told, want)
	}
}

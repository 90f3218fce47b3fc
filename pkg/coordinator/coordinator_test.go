package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/config"
	"github.com/slingshot-arcade/relay/pkg/logger"
	"github.com/slingshot-arcade/relay/pkg/relay"
)

const adminToken = "t0ken"

func testCoordinator(t *testing.T) (*Coordinator, string) {
	t.Helper()
	conf := config.Config{
		Relay: config.Relay{
			Capacity:         2,
			HandshakeTimeout: time.Minute,
			StallPolicy:      config.StallClose,
			SessionIdLength:  6,
			PublicUrl:        "http://relay.test/",
			AdminToken:       adminToken,
		},
		Server: config.Server{Address: "127.0.0.1:0"},
		Webrtc: config.Webrtc{
			IceServers: []config.IceServer{{Urls: "stun:stun.l.google.com:19302"}},
			LogLevel:   int(logger.Disabled),
		},
	}
	hub := relay.NewHub(config.NewLimits(conf.Relay), conf.Relay.SessionIdLength, logger.Nop(), relay.NewMetrics(nil))
	c, err := New(conf, hub, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	c.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c, fmt.Sprintf("127.0.0.1:%d", c.GetPort())
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, addr, query string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws"+query, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(t api.PT, payload any) {
	c.t.Helper()
	data, _ := api.Encode(t, payload)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// expect reads packets until the one of type t.
func (c *client) expect(t api.PT) api.In {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for %v: %v", t, err)
		}
		in, err := api.Decode(data)
		if err != nil {
			c.t.Fatalf("bad packet %s", data)
		}
		if in.T == t {
			return in
		}
	}
}

func request(t *testing.T, method, url, token string) (int, []byte) {
	t.Helper()
	rq, _ := http.NewRequest(method, url, nil)
	if token != "" {
		rq.Header.Set("Authorization", "Bearer "+token)
	}
	rs, err := http.DefaultClient.Do(rq)
	if err != nil {
		t.Fatal(err)
	}
	defer rs.Body.Close()
	body, _ := io.ReadAll(rs.Body)
	return rs.StatusCode, body
}

func TestSessionOverWebsocket(t *testing.T) {
	c, addr := testCoordinator(t)
	base := "http://" + addr

	display := dial(t, addr, "?transport=ws")
	display.send(api.CreateSession, nil)
	s := api.Unwrap[api.SessionCreatedResponse](display.expect(api.SessionCreated).Payload)
	if len(s.SessionId) != 6 || len(s.Secret) != 32 {
		t.Fatalf("created %+v", s)
	}

	t.Run("qr", func(t *testing.T) {
		code, body := request(t, http.MethodGet, base+"/qr?session="+s.SessionId+"&secret="+s.Secret, "")
		if code != http.StatusOK || !bytes.HasPrefix(body, []byte("\x89PNG")) {
			t.Errorf("qr %v", code)
		}
		if code, _ = request(t, http.MethodGet, base+"/qr?session="+s.SessionId+"&secret=x", ""); code != http.StatusNotFound {
			t.Errorf("qr with a bad secret %v", code)
		}
	})

	ctrl := dial(t, addr, "?transport=ws")
	ctrl.send(api.JoinSession, api.JoinSessionRequest{SessionId: s.SessionId, Secret: s.Secret})
	if rs := api.Unwrap[api.JoinResultResponse](ctrl.expect(api.JoinResult).Payload); !rs.Success {
		t.Fatalf("join %+v", rs)
	}
	cid := api.Unwrap[api.Member](display.expect(api.MemberJoined).Payload).ControllerId

	t.Run("relay", func(t *testing.T) {
		ctrl.send(api.PointerUpdate, api.PointerUpdateEvent{ControllerId: "me", X: 40, Y: 60, Seq: 1})
		e := api.Unwrap[api.PointerUpdateEvent](display.expect(api.PointerUpdate).Payload)
		if e.ControllerId != cid || e.X != 40 || e.Y != 60 {
			t.Errorf("display got %+v", e)
		}
		display.send(api.ActionOutcome, api.ActionOutcomeEvent{ControllerId: cid, Success: true, ScoreDelta: 5})
		if o := api.Unwrap[api.ActionOutcomeEvent](ctrl.expect(api.ActionOutcome).Payload); o.ScoreDelta != 5 {
			t.Errorf("controller got %+v", o)
		}
	})

	t.Run("admin", func(t *testing.T) {
		if code, _ := request(t, http.MethodGet, base+"/admin/sessions", ""); code != http.StatusUnauthorized {
			t.Errorf("no token %v", code)
		}
		if code, _ := request(t, http.MethodGet, base+"/admin/sessions", "nope"); code != http.StatusUnauthorized {
			t.Errorf("bad token %v", code)
		}
		code, body := request(t, http.MethodGet, base+"/admin/sessions", adminToken)
		var list []SessionInfo
		if err := json.Unmarshal(body, &list); code != http.StatusOK || err != nil {
			t.Fatalf("list %v %v", code, err)
		}
		if len(list) != 1 || list[0].SessionId != s.SessionId || len(list[0].Controllers) != 1 {
			t.Errorf("list %+v", list)
		}
		if strings.Contains(string(body), s.Secret) {
			t.Errorf("secret leaked into the list")
		}
	})

	t.Run("evict", func(t *testing.T) {
		url := base + "/admin/sessions/" + s.SessionId + "/controllers/" + cid
		if code, _ := request(t, http.MethodDelete, url, adminToken); code != http.StatusNoContent {
			t.Fatalf("evict %v", code)
		}
		ctrl.expect(api.SessionEnded)
		if m := api.Unwrap[api.Member](display.expect(api.MemberLeft).Payload); m.ControllerId != cid {
			t.Errorf("member left %v", m.ControllerId)
		}
		if code, _ := request(t, http.MethodDelete, url, adminToken); code != http.StatusNotFound {
			t.Errorf("second evict %v", code)
		}
		if code, _ := request(t, http.MethodDelete, base+"/admin/sessions/"+s.SessionId+"/controllers/x", adminToken); code != http.StatusBadRequest {
			t.Errorf("bad id %v", code)
		}
	})

	t.Run("teardown", func(t *testing.T) {
		url := base + "/admin/sessions/" + s.SessionId
		if code, _ := request(t, http.MethodDelete, url, adminToken); code != http.StatusNoContent {
			t.Fatalf("teardown %v", code)
		}
		display.expect(api.SessionEnded)
		if code, _ := request(t, http.MethodDelete, url, adminToken); code != http.StatusNotFound {
			t.Errorf("second teardown %v", code)
		}
	})

	t.Run("health", func(t *testing.T) {
		code, body := request(t, http.MethodGet, base+"/healthz", "")
		var h Health
		if err := json.Unmarshal(body, &h); code != http.StatusOK || err != nil || h.Status != "ok" {
			t.Errorf("health %v %s", code, body)
		}
		if h.Sessions != 0 || h.Connections != 2 {
			t.Errorf("health %+v", h)
		}
	})

	_ = display.conn.Close()
	_ = ctrl.conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for c.hub.Conns() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%v connections left", c.hub.Conns())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDisplayLeavesOverWebsocket(t *testing.T) {
	_, addr := testCoordinator(t)

	display := dial(t, addr, "?transport=ws")
	display.send(api.CreateSession, nil)
	s := api.Unwrap[api.SessionCreatedResponse](display.expect(api.SessionCreated).Payload)

	ctrl := dial(t, addr, "?transport=ws")
	ctrl.send(api.JoinSession, api.JoinSessionRequest{SessionId: s.SessionId, Secret: s.Secret})
	ctrl.expect(api.JoinResult)

	_ = display.conn.Close()
	ctrl.expect(api.SessionEnded)

	ctrl.send(api.JoinSession, api.JoinSessionRequest{SessionId: s.SessionId, Secret: s.Secret})
	if rs := api.Unwrap[api.JoinResultResponse](ctrl.expect(api.JoinResult).Payload); rs.Success || rs.Error != "not found" {
		t.Errorf("join into an ended session %+v", rs)
	}
}

func TestSignaling(t *testing.T) {
	_, addr := testCoordinator(t)

	c := dial(t, addr, "")
	hello := api.Unwrap[api.InitSignalResponse](c.expect(api.InitSignal).Payload)
	if hello.Id == "" || len(hello.Ice) != 1 || hello.Ice[0].Urls != "stun:stun.l.google.com:19302" {
		t.Errorf("init %+v", hello)
	}
	offer := api.Unwrap[api.SessionDescription](c.expect(api.WebrtcOffer).Payload)
	if offer.Type != "offer" || !strings.Contains(offer.Sdp, "webrtc-datachannel") {
		t.Errorf("offer %+v", offer)
	}
}

func TestJoinUrl(t *testing.T) {
	got := JoinUrl("http://relay.test/", "AB12CD", "9f0c")
	if got != "http://relay.test/controller?secret=9f0c&session=AB12CD" {
		t.Errorf("got %v", got)
	}
}

func TestNoAdminWithoutToken(t *testing.T) {
	conf := config.Config{Relay: config.Relay{Capacity: 1, HandshakeTimeout: time.Minute}}
	c := &Coordinator{conf: conf, log: logger.Nop()}
	rq, _ := http.NewRequest(http.MethodGet, "/admin/sessions", nil)
	rq.Header.Set("Authorization", "Bearer ")
	_, pattern := c.routes().Handler(rq)
	if pattern != "" {
		t.Errorf("admin route %q is on", pattern)
	}
}

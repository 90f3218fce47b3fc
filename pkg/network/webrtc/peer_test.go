package webrtc

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/config"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

// answerer is a browser-like remote side.
type answerer struct {
	conn     *webrtc.PeerConnection
	channels chan *webrtc.DataChannel
	in       chan string
}

func newAnswerer(t *testing.T) *answerer {
	t.Helper()
	conn, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	a := &answerer{conn: conn, channels: make(chan *webrtc.DataChannel, 2), in: make(chan string, 10)}
	conn.OnDataChannel(func(ch *webrtc.DataChannel) {
		ch.OnOpen(func() { a.channels <- ch })
		ch.OnMessage(func(m webrtc.DataChannelMessage) { a.in <- ch.Label() + ":" + string(m.Data) })
	})
	t.Cleanup(func() { _ = conn.Close() })
	return a
}

func TestPeer(t *testing.T) {
	factory, err := NewApiFactory(config.Webrtc{LogLevel: int(logger.Disabled)}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ready := make(chan struct{})
	p, err := NewPeer(factory, logger.Nop(), func() { close(ready) })
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Close() }()

	if err = p.SendReliable([]byte("early")); err != ErrNotReady {
		t.Errorf("send before open: %v", err)
	}

	remote := newAnswerer(t)
	remote.conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			j := c.ToJSON()
			_ = p.AddCandidate(api.IceCandidate{Candidate: j.Candidate, SdpMid: j.SDPMid, SdpMLineIndex: j.SDPMLineIndex})
		}
	})

	offer, err := p.Offer(func(c *api.IceCandidate) {
		if c != nil {
			_ = remote.conn.AddICECandidate(webrtc.ICECandidateInit{
				Candidate: c.Candidate, SDPMid: c.SdpMid, SDPMLineIndex: c.SdpMLineIndex})
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if offer.Type != "offer" {
		t.Errorf("offer type %v", offer.Type)
	}
	if err = remote.conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.Sdp}); err != nil {
		t.Fatal(err)
	}
	answer, err := remote.conn.CreateAnswer(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = remote.conn.SetLocalDescription(answer); err != nil {
		t.Fatal(err)
	}
	if err = p.SetRemoteSDP(api.SessionDescription{Type: answer.Type.String(), Sdp: answer.SDP}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ready:
	case <-time.After(10 * time.Second):
		t.Fatalf("data channels weren't opened")
	}

	labels := map[string]*webrtc.DataChannel{}
	for range 2 {
		ch := <-remote.channels
		labels[ch.Label()] = ch
	}
	u := labels[UnreliableLabel]
	if u == nil || u.Ordered() || u.MaxRetransmits() == nil || *u.MaxRetransmits() != 0 {
		t.Errorf("unreliable channel is misconfigured")
	}
	if r := labels[ReliableLabel]; r == nil || !r.Ordered() {
		t.Errorf("reliable channel is misconfigured")
	}

	in := make(chan string, 2)
	p.OnMessage(func(data []byte) { in <- string(data) })
	_ = labels[ReliableLabel].SendText("hi")
	select {
	case m := <-in:
		if m != "hi" {
			t.Errorf("got %q", m)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("nothing received")
	}

	if err = p.SendReliable([]byte("r")); err != nil {
		t.Errorf("reliable send: %v", err)
	}
	if err = p.SendUnreliable([]byte("u")); err != nil {
		t.Errorf("unreliable send: %v", err)
	}
	got := map[string]bool{}
	for range 2 {
		select {
		case m := <-remote.in:
			got[m] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("remote got only %v", got)
		}
	}
	if !got[ReliableLabel+":r"] || !got[UnreliableLabel+":u"] {
		t.Errorf("remote got %v", got)
	}

	gone := make(chan struct{})
	p.OnDisconnect(func() { close(gone) })
	_ = p.Close()
	select {
	case <-gone:
	default:
		t.Errorf("no disconnect after close")
	}
}

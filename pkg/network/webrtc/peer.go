package webrtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/com"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

const (
	ReliableLabel   = "reliable"
	UnreliableLabel = "unreliable"
)

var ErrNotReady = errors.New("data channel is not open")

// Peer is a server-offered peer connection with two data channels,
// an ordered reliable one and an unordered one without retransmits.
type Peer struct {
	id   com.Uid
	conn *webrtc.PeerConnection
	log  *logger.Logger

	reliable   *webrtc.DataChannel
	unreliable *webrtc.DataChannel
	// unreliable sends are dropped above this amount of buffered bytes
	maxBuffer uint64

	closeOnce sync.Once

	mu        sync.Mutex
	onMessage func([]byte)
	onDc      func()
	gone      bool
	open      int
	onReady   func()
}

// NewPeer creates a connection with both data channels.
// onReady is called once when both of them are open.
func NewPeer(factory *ApiFactory, log *logger.Logger, onReady func()) (*Peer, error) {
	conn, err := factory.NewPeer()
	if err != nil {
		return nil, err
	}
	id := com.NewUid()
	p := &Peer{
		id:        id,
		conn:      conn,
		log:       log.Extend(log.With().Str(logger.ClientField, id.Short())),
		maxBuffer: factory.buffer,
		onReady:   onReady,
	}

	// ordered: true, negotiated: false
	if p.reliable, err = p.addDataChannel(ReliableLabel, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	ordered, retransmits := false, uint16(0)
	if p.unreliable, err = p.addDataChannel(UnreliableLabel,
		&webrtc.DataChannelInit{Ordered: &ordered, MaxRetransmits: &retransmits}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	conn.OnICEConnectionStateChange(p.handleICEState)
	return p, nil
}

func (p *Peer) Id() com.Uid { return p.id }

// Offer makes the local SDP offer, local ICE candidates go into onICE,
// nil marks the end of gathering.
func (p *Peer) Offer(onICE func(*api.IceCandidate)) (*api.SessionDescription, error) {
	p.conn.OnICECandidate(func(ice *webrtc.ICECandidate) {
		if ice == nil {
			p.log.Debug().Msg("ICE gathering was complete probably")
			onICE(nil)
			return
		}
		c := ice.ToJSON()
		p.log.Debug().Str("candidate", c.Candidate).Msg("ICE")
		onICE(&api.IceCandidate{
			Candidate:        c.Candidate,
			SdpMid:           c.SDPMid,
			SdpMLineIndex:    c.SDPMLineIndex,
			UsernameFragment: c.UsernameFragment,
		})
	})
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err = p.conn.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	p.log.Debug().Msg("Created Offer")
	return &api.SessionDescription{Type: offer.Type.String(), Sdp: offer.SDP}, nil
}

func (p *Peer) SetRemoteSDP(sdp api.SessionDescription) error {
	answer := webrtc.SessionDescription{Type: webrtc.NewSDPType(sdp.Type), SDP: sdp.Sdp}
	if err := p.conn.SetRemoteDescription(answer); err != nil {
		return err
	}
	p.log.Debug().Msg("Set Remote Description")
	return nil
}

func (p *Peer) AddCandidate(c api.IceCandidate) error {
	return p.conn.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SdpMid,
		SDPMLineIndex:    c.SdpMLineIndex,
		UsernameFragment: c.UsernameFragment,
	})
}

func (p *Peer) SendReliable(data []byte) error {
	if p.reliable.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotReady
	}
	return p.reliable.Send(data)
}

func (p *Peer) SendUnreliable(data []byte) error {
	if p.unreliable.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotReady
	}
	if p.unreliable.BufferedAmount() > p.maxBuffer {
		return nil
	}
	return p.unreliable.Send(data)
}

func (p *Peer) OnMessage(fn func(data []byte)) { p.mu.Lock(); p.onMessage = fn; p.mu.Unlock() }

func (p *Peer) OnDisconnect(fn func()) {
	p.mu.Lock()
	gone := p.gone
	if !gone {
		p.onDc = fn
	}
	p.mu.Unlock()
	if gone {
		fn()
	}
}

func (p *Peer) Close() (err error) {
	p.closeOnce.Do(func() {
		err = p.conn.Close()
		p.log.Debug().Msg("WebRTC stop")
	})
	p.disconnect()
	return
}

func (p *Peer) disconnect() {
	p.mu.Lock()
	if p.gone {
		p.mu.Unlock()
		return
	}
	p.gone = true
	fn := p.onDc
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *Peer) handleICEState(state webrtc.ICEConnectionState) {
	p.log.Debug().Str(".state", state.String()).Msg("ICE")
	switch state {
	case webrtc.ICEConnectionStateConnected:
		p.log.Info().Msg("Connected")
	case webrtc.ICEConnectionStateFailed:
		p.log.Error().Msgf("WebRTC connection fail! connection: %v, ice: %v, gathering: %v, signalling: %v",
			p.conn.ConnectionState(), p.conn.ICEConnectionState(), p.conn.ICEGatheringState(),
			p.conn.SignalingState())
		_ = p.Close()
	case webrtc.ICEConnectionStateClosed, webrtc.ICEConnectionStateDisconnected:
		_ = p.Close()
	}
}

func (p *Peer) addDataChannel(label string, init *webrtc.DataChannelInit) (*webrtc.DataChannel, error) {
	ch, err := p.conn.CreateDataChannel(label, init)
	if err != nil {
		return nil, err
	}
	ch.OnOpen(func() {
		p.log.Debug().Str("label", ch.Label()).Msg("Data channel opened")
		p.mu.Lock()
		p.open++
		ready := p.open == 2 && p.onReady != nil
		p.mu.Unlock()
		if ready {
			p.onReady()
		}
	})
	ch.OnError(func(err error) { p.log.Error().Err(err).Str("label", ch.Label()).Msg("Data channel") })
	ch.OnMessage(func(m webrtc.DataChannelMessage) {
		if len(m.Data) == 0 {
			return
		}
		p.mu.Lock()
		fn := p.onMessage
		p.mu.Unlock()
		if fn != nil {
			fn(m.Data)
		}
	})
	ch.OnClose(func() {
		p.log.Debug().Str("label", ch.Label()).Msg("Data channel has been closed")
		_ = p.Close()
	})
	return ch, nil
}

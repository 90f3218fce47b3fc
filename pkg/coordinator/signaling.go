package coordinator

import (
	"net/http"
	"sync"

	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/logger"
	"github.com/slingshot-arcade/relay/pkg/network/webrtc"
	"github.com/slingshot-arcade/relay/pkg/network/websocket"
)

// serveWs accepts a new endpoint.
// By default the socket is used for WebRTC signaling and stays open
// while the peer lives, with ?transport=ws the socket itself is the transport.
func (c *Coordinator) serveWs(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			c.log.Error().Msgf("Recovered from panic in the websocket handler: %v", err)
		}
	}()

	conn, err := websocket.NewServer(w, r, c.conf.Server.Origin, c.log)
	if err != nil {
		c.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	if r.URL.Query().Get("transport") == "ws" {
		c.hub.Accept(websocket.NewTransport(conn))
		conn.Listen()
		return
	}
	c.signal(conn)
}

// signal runs the server-offered WebRTC handshake over the socket.
func (c *Coordinator) signal(conn *websocket.Connection) {
	peer, err := webrtc.NewPeer(c.rtc, c.log, func() { send(conn, api.Ready, nil, c.log) })
	if err != nil {
		c.log.Error().Err(err).Msg("Couldn't create a peer connection")
		conn.Close()
		return
	}
	log := c.log.Extend(c.log.With().Str(logger.ClientField, peer.Id().Short()))

	// the watchdog has to see hanging handshakes too
	c.hub.Accept(peer)

	conn.OnMessage = func(data []byte) {
		in, err := api.Decode(data)
		if err != nil {
			log.Debug().Err(err).Msg("Signaling")
			return
		}
		switch in.T {
		case api.WebrtcAnswer:
			sdp := api.Unwrap[api.SessionDescription](in.Payload)
			if sdp == nil {
				log.Warn().Msg("Malformed SDP answer")
				return
			}
			if err := peer.SetRemoteSDP(*sdp); err != nil {
				log.Error().Err(err).Msg("Couldn't set the remote SDP")
			}
		case api.WebrtcIce:
			ice := api.Unwrap[api.IceCandidate](in.Payload)
			if ice == nil {
				log.Warn().Msg("Malformed ICE candidate")
				return
			}
			if err := peer.AddCandidate(*ice); err != nil {
				log.Error().Err(err).Msg("Couldn't add the ICE candidate")
			}
		default:
			log.Debug().Msgf("Unexpected signaling packet %v", in.T)
		}
	}
	conn.Listen()
	go func() {
		<-conn.Done()
		_ = peer.Close()
	}()

	send(conn, api.InitSignal, api.InitSignalResponse{Ice: c.iceServers(), Id: peer.Id().String()}, log)

	// candidates may come before the offer is out
	var mu sync.Mutex
	var offered bool
	var pending []*api.IceCandidate
	offer, err := peer.Offer(func(ice *api.IceCandidate) {
		mu.Lock()
		defer mu.Unlock()
		if !offered {
			pending = append(pending, ice)
			return
		}
		sendIce(conn, ice, log)
	})
	if err != nil {
		log.Error().Err(err).Msg("Couldn't make an offer")
		conn.Close()
		return
	}
	mu.Lock()
	send(conn, api.WebrtcOffer, offer, log)
	offered = true
	for _, ice := range pending {
		sendIce(conn, ice, log)
	}
	mu.Unlock()
}

func (c *Coordinator) iceServers() []api.IceServer {
	out := make([]api.IceServer, 0, len(c.conf.Webrtc.IceServers))
	for _, s := range c.conf.Webrtc.IceServers {
		out = append(out, api.IceServer{Urls: s.Urls, Username: s.Username, Credential: s.Credential})
	}
	return out
}

// sendIce sends a local candidate, nil is sent as an empty packet
// that marks the end of gathering.
func sendIce(conn *websocket.Connection, ice *api.IceCandidate, log *logger.Logger) {
	if ice == nil {
		send(conn, api.WebrtcIce, nil, log)
		return
	}
	send(conn, api.WebrtcIce, ice, log)
}

func send(conn *websocket.Connection, t api.PT, payload any, log *logger.Logger) {
	data, err := api.Encode(t, payload)
	if err == nil {
		err = conn.Write(data)
	}
	if err != nil {
		log.Debug().Err(err).Str(logger.DirectionField, "→").Msgf("Signaling %v", t)
	}
}

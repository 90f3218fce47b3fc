package webrtc

import (
	"io"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/slingshot-arcade/relay/pkg/config"
	"github.com/slingshot-arcade/relay/pkg/logger"
	"github.com/slingshot-arcade/relay/pkg/network/socket"
)

// ApiFactory makes data-channel-only peer connections with the same settings.
type ApiFactory struct {
	api  *webrtc.API
	conf webrtc.Configuration
	mux  io.Closer
	// unreliable channel backlog limit in bytes
	buffer uint64
}

const defaultUnreliableBuffer = 64 * 1024

func NewApiFactory(conf config.Webrtc, log *logger.Logger) (*ApiFactory, error) {
	// no codecs, there are no media tracks
	m := &webrtc.MediaEngine{}
	i := &interceptor.Registry{}
	if !conf.DisableDefaultInterceptors {
		if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
			return nil, err
		}
	}

	f := &ApiFactory{
		conf:   webrtc.Configuration{ICEServers: iceServers(conf.IceServers)},
		buffer: defaultUnreliableBuffer,
	}
	if conf.UnreliableBuffer > 0 {
		f.buffer = uint64(conf.UnreliableBuffer)
	}
	s, err := f.settings(conf, log)
	if err != nil {
		return nil, err
	}
	f.api = webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s))
	return f, nil
}

func (f *ApiFactory) settings(conf config.Webrtc, log *logger.Logger) (s webrtc.SettingEngine, err error) {
	pion := logger.NewPionLogger(log, conf.LogLevel)
	s.LoggerFactory = pion
	if conf.HasDtlsRole() {
		log.Info().Msgf("A custom DTLS role [%v]", conf.DtlsRole)
		if err = s.SetAnsweringDTLSRole(webrtc.DTLSRole(conf.DtlsRole)); err != nil {
			return
		}
	}
	s.SetLite(conf.IceLite)
	if conf.HasPortRange() {
		if err = s.SetEphemeralUDPPortRange(conf.IcePorts.Min, conf.IcePorts.Max); err != nil {
			return
		}
	}
	if conf.HasSinglePort() {
		udp, er := socket.NewUDPPortRoll(conf.SinglePort)
		if er != nil {
			return s, er
		}
		mux := webrtc.NewICEUDPMux(pion, udp)
		s.SetICEUDPMux(mux)
		f.mux = mux
		log.Info().Msgf("All peers share a single UDP port %s", udp.LocalAddr())
	}
	if conf.HasIceIpMap() {
		s.SetNAT1To1IPs([]string{conf.IceIpMap}, webrtc.ICECandidateTypeHost)
		log.Info().Msgf("The NAT mapping is active for %v", conf.IceIpMap)
	}
	return s, nil
}

func iceServers(list []config.IceServer) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(list))
	for _, ice := range list {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{ice.Urls},
			Username:   ice.Username,
			Credential: ice.Credential,
		})
	}
	return servers
}

func (f *ApiFactory) NewPeer() (*webrtc.PeerConnection, error) { return f.api.NewPeerConnection(f.conf) }

// Close releases the shared UDP port if there is one.
func (f *ApiFactory) Close() error {
	if f.mux == nil {
		return nil
	}
	return f.mux.Close()
}

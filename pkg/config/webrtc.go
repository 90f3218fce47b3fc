package config

import "strings"

type Webrtc struct {
	DisableDefaultInterceptors bool
	// DtlsRole 0 is auto, 1 is client, 2 is server.
	DtlsRole   byte
	IceServers []IceServer
	IcePorts   struct {
		Min uint16
		Max uint16
	}
	// IceIpMap is the public IP announced in host candidates (NAT 1:1).
	IceIpMap   string
	IceLite    bool
	SinglePort int
	// UnreliableBuffer is how many bytes may queue in the unreliable
	// channel of a peer before new unreliable messages are dropped.
	UnreliableBuffer int `default:"65536"`
	LogLevel         int
}

// IceServer goes to pion and to the clients as is.
type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (w *Webrtc) HasDtlsRole() bool   { return w.DtlsRole > 0 }
func (w *Webrtc) HasPortRange() bool  { return w.IcePorts.Min > 0 && w.IcePorts.Max > 0 }
func (w *Webrtc) HasSinglePort() bool { return w.SinglePort > 0 }
func (w *Webrtc) HasIceIpMap() bool   { return w.IceIpMap != "" }

// IsTurn tells whether the server needs credentials.
func (i IceServer) IsTurn() bool {
	return strings.HasPrefix(i.Urls, "turn:") || strings.HasPrefix(i.Urls, "turns:")
}

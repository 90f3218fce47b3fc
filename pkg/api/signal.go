package api

type (
	IceServer struct {
		Urls       string `json:"urls,omitempty"`
		Username   string `json:"username,omitempty"`
		Credential string `json:"credential,omitempty"`
	}
	InitSignalResponse struct {
		Ice []IceServer `json:"ice"`
		Id  string      `json:"id"`
	}
	// SessionDescription mirrors the browser RTCSessionDescription.
	SessionDescription struct {
		Type string `json:"type"`
		Sdp  string `json:"sdp"`
	}
	IceCandidate struct {
		Candidate        string  `json:"candidate"`
		SdpMid           *string `json:"sdpMid,omitempty"`
		SdpMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
		UsernameFragment *string `json:"usernameFragment,omitempty"`
	}
)

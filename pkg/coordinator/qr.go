package coordinator

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/slingshot-arcade/relay/pkg/relay"
)

const qrSize = 256

// JoinUrl makes the link controllers scan to join the session.
func JoinUrl(publicUrl string, id relay.SessionId, secret string) string {
	q := url.Values{}
	q.Set("session", id.String())
	q.Set("secret", secret)
	return strings.TrimRight(publicUrl, "/") + "/controller?" + q.Encode()
}

// serveQr renders the join link of a session as a PNG.
// Only those who already know the secret get it.
func (c *Coordinator) serveQr(w http.ResponseWriter, r *http.Request) {
	id, secret := r.URL.Query().Get("session"), r.URL.Query().Get("secret")
	s := c.hub.Registry().Get(relay.SessionId(id))
	if s == nil || !s.CheckSecret(secret) {
		http.NotFound(w, r)
		return
	}
	png, err := qrcode.Encode(JoinUrl(c.conf.Relay.PublicUrl, s.Id(), secret), qrcode.Medium, qrSize)
	if err != nil {
		c.log.Error().Err(err).Msg("QR code")
		http.Error(w, "qr error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

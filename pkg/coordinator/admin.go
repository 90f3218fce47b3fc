package coordinator

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/slingshot-arcade/relay/pkg/com"
	"github.com/slingshot-arcade/relay/pkg/relay"
)

type (
	SessionInfo struct {
		SessionId   string   `json:"sessionId"`
		Display     string   `json:"display"`
		Capacity    int      `json:"capacity"`
		Controllers []string `json:"controllers"`
	}
	Health struct {
		Status      string `json:"status"`
		Sessions    int    `json:"sessions"`
		Connections int    `json:"connections"`
	}
)

// admin lets in only requests with the admin bearer token.
func (c *Coordinator) admin(next http.HandlerFunc) http.Handler {
	token := []byte(c.conf.Relay.AdminToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(auth), token) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	})
}

func (c *Coordinator) listSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := c.hub.Registry().List()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		info := SessionInfo{
			SessionId:   s.Id().String(),
			Display:     s.Display().Id().String(),
			Capacity:    s.Capacity(),
			Controllers: []string{},
		}
		for _, cc := range s.Controllers() {
			info.Controllers = append(info.Controllers, cc.Id().String())
		}
		out = append(out, info)
	}
	c.json(w, out)
}

func (c *Coordinator) teardown(w http.ResponseWriter, r *http.Request) {
	c.result(w, r, c.hub.Teardown(relay.SessionId(r.PathValue("id"))))
}

func (c *Coordinator) evict(w http.ResponseWriter, r *http.Request) {
	cid, err := com.ParseUid(r.PathValue("cid"))
	if err != nil {
		http.Error(w, "bad controller id", http.StatusBadRequest)
		return
	}
	c.result(w, r, c.hub.Evict(relay.SessionId(r.PathValue("id")), cid))
}

func (c *Coordinator) result(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, relay.ErrNotFound):
		http.NotFound(w, r)
	default:
		c.log.Error().Err(err).Msg("Admin")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (c *Coordinator) serveHealth(w http.ResponseWriter, _ *http.Request) {
	c.json(w, Health{Status: "ok", Sessions: c.hub.Registry().Len(), Connections: c.hub.Conns()})
}

func (c *Coordinator) json(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.log.Error().Err(err).Msg("JSON response")
	}
}

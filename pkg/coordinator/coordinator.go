package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/slingshot-arcade/relay/pkg/config"
	"github.com/slingshot-arcade/relay/pkg/logger"
	"github.com/slingshot-arcade/relay/pkg/network/httpx"
	"github.com/slingshot-arcade/relay/pkg/network/webrtc"
	"github.com/slingshot-arcade/relay/pkg/relay"
)

// Coordinator is the public HTTP face of the relay.
type Coordinator struct {
	conf   config.Config
	hub    *relay.Hub
	rtc    *webrtc.ApiFactory
	server *httpx.Server
	log    *logger.Logger
}

func New(conf config.Config, hub *relay.Hub, log *logger.Logger) (*Coordinator, error) {
	rtc, err := webrtc.NewApiFactory(conf.Webrtc, log)
	if err != nil {
		return nil, fmt.Errorf("webrtc: %w", err)
	}
	c := &Coordinator{conf: conf, hub: hub, rtc: rtc, log: log}
	c.server, err = httpx.NewServer(
		conf.Server.GetAddr(),
		c.routes(),
		httpx.WithServerConfig(conf.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Coordinator) routes() *httpx.Mux {
	h := httpx.NewServeMux("")
	h.HandleFunc("GET /ws", c.serveWs)
	h.HandleFunc("GET /qr", c.serveQr)
	h.HandleFunc("GET /healthz", c.serveHealth)
	if c.conf.Relay.AdminToken != "" {
		h.Handle("GET /admin/sessions", c.admin(c.listSessions))
		h.Handle("DELETE /admin/sessions/{id}", c.admin(c.teardown))
		h.Handle("DELETE /admin/sessions/{id}/controllers/{cid}", c.admin(c.evict))
	} else {
		c.log.Info().Msg("Admin API is disabled, no token")
	}
	return h
}

func (c *Coordinator) Run() {
	c.log.Info().Msgf("Starting the relay at %v", c.server)
	c.server.Run()
}

// Shutdown stops the server and ends all the sessions.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	err := c.server.Shutdown(ctx)
	c.hub.Close()
	return errors.Join(err, c.rtc.Close())
}

func (c *Coordinator) GetPort() int { return c.server.GetPort() }

func (c *Coordinator) String() string { return "coordinator" }

package relay

import (
	"errors"

	"github.com/slingshot-arcade/relay/pkg/api"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

// Gate admits controllers into sessions.
type Gate struct {
	reg     *Registry
	log     *logger.Logger
	metrics *Metrics
}

func NewGate(reg *Registry, log *logger.Logger, metrics *Metrics) *Gate {
	return &Gate{reg: reg, log: log, metrics: metrics}
}

// TryJoin adds the connection into the session as a controller.
// Rejections go in order: ErrNotFound, ErrInvalidToken, ErrFull.
// On success the controller gets its join result and the display
// is told about the new member.
func (g *Gate) TryJoin(id SessionId, secret string, c *Conn) error {
	s := g.reg.Get(id)
	if s == nil {
		return ErrNotFound
	}
	return s.admit(c, secret)
}

// Join handles a join request and answers rejections.
func (g *Gate) Join(c *Conn, rq api.JoinSessionRequest) error {
	err := g.TryJoin(SessionId(rq.SessionId), rq.Secret, c)
	g.metrics.join(err)
	if err == nil {
		c.log.Info().Str(logger.SessionField, rq.SessionId).Msg("Joined as controller")
		return nil
	}
	if errors.Is(err, ErrGone) {
		return err
	}
	c.log.Info().Str(logger.SessionField, rq.SessionId).Msgf("Join rejected: %v", err)
	_ = c.Send(Reliable, api.JoinResult, api.JoinResultResponse{
		SessionId: rq.SessionId,
		Success:   false,
		Error:     err.Error(),
	})
	return err
}

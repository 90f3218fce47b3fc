package monitoring

import (
	"context"
	"fmt"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slingshot-arcade/relay/pkg/config"
	"github.com/slingshot-arcade/relay/pkg/logger"
	"github.com/slingshot-arcade/relay/pkg/network/httpx"
)

const debugEndpoint = "/debug/pprof"
const metricsEndpoint = "/metrics"

type Monitoring struct {
	conf   config.Monitoring
	server *httpx.Server
	log    *logger.Logger
}

// New creates new monitoring service.
// Metrics are taken from the gatherer.
func New(conf config.Monitoring, gatherer prometheus.Gatherer, log *logger.Logger) (*Monitoring, error) {
	h := httpx.NewServeMux(conf.URLPrefix)
	if conf.ProfilingEnabled {
		h.HandleFunc(debugEndpoint+"/", pprof.Index)
		h.HandleFunc(debugEndpoint+"/cmdline", pprof.Cmdline)
		h.HandleFunc(debugEndpoint+"/profile", pprof.Profile)
		h.HandleFunc(debugEndpoint+"/symbol", pprof.Symbol)
		h.HandleFunc(debugEndpoint+"/trace", pprof.Trace)
		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			h.Handle(debugEndpoint+"/"+name, pprof.Handler(name))
		}
	}
	if conf.MetricEnabled {
		h.Handle(metricsEndpoint, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	serv, err := httpx.NewServer(fmt.Sprintf(":%d", conf.Port), h, httpx.WithPortRoll(true), httpx.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &Monitoring{conf: conf, server: serv, log: log}, nil
}

func (m *Monitoring) Run() {
	if m.conf.ProfilingEnabled {
		m.log.Info().Msgf("Profiling is enabled at %v", m.server.Addr+m.conf.URLPrefix+debugEndpoint)
	}
	if m.conf.MetricEnabled {
		m.log.Info().Msgf("Prometheus metrics are enabled at %v", m.server.Addr+m.conf.URLPrefix+metricsEndpoint)
	}
	m.server.Run()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	m.log.Info().Msg("Shutting down monitoring server")
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) GetPort() int { return m.server.GetPort() }

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}

package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slingshot-arcade/relay/pkg/config"
	"github.com/slingshot-arcade/relay/pkg/coordinator"
	"github.com/slingshot-arcade/relay/pkg/logger"
	"github.com/slingshot-arcade/relay/pkg/monitoring"
	xos "github.com/slingshot-arcade/relay/pkg/os"
	"github.com/slingshot-arcade/relay/pkg/relay"
	"github.com/slingshot-arcade/relay/pkg/service"
)

var Version = "?"

const shutdownTimeout = 10 * time.Second

func main() {
	conf, path, err := config.NewConfig(os.Args[1:])
	if err != nil {
		logger.New(false).Fatal().Err(err).Msg("config")
	}

	log := logger.NewConsole(conf.Relay.Debug, "r", false)
	log.Info().Msgf("version %s", Version)
	log.Info().Msgf("config: %v", path)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	limits := config.NewLimits(conf.Relay)
	hub := relay.NewHub(limits, conf.Relay.SessionIdLength, log, relay.NewMetrics(metrics))

	c, err := coordinator.New(conf, hub, log)
	if err != nil {
		log.Fatal().Err(err).Msg("coordinator")
	}
	services := service.Group{}
	services.Add(c)
	if conf.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Monitoring, metrics, log)
		if err != nil {
			log.Error().Err(err).Msg("monitoring is off")
		} else {
			services.Add(mon)
		}
	}
	if conf.Relay.WatchConfig {
		w, err := config.NewWatcher(path, log, func(next config.Config) {
			limits.Update(next.Relay)
			log.Info().Msgf("Limits have been updated, capacity: %v, handshake timeout: %v, stall policy: %v",
				next.Relay.Capacity, next.Relay.HandshakeTimeout, next.Relay.StallPolicy)
		})
		if err != nil {
			log.Error().Err(err).Msg("config watch is off")
		} else {
			services.Add(w)
		}
	}
	services.Start()

	<-xos.ExpectTermination()
	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}

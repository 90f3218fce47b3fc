package config

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

// Watcher reloads the config file on changes and pushes
// valid configs into the onChange callback.
type Watcher struct {
	path     string
	onChange func(Config)
	log      *logger.Logger

	w       *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
	running atomic.Bool
}

func NewWatcher(path string, log *logger.Logger, onChange func(Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	// editors tend to replace files, so the whole dir is watched
	if err = w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Watcher{path: abs, onChange: onChange, log: log, w: w, done: make(chan struct{})}, nil
}

func (w *Watcher) Run() {
	w.running.Store(true)
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-w.w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					w.reload()
				}
			case err, ok := <-w.w.Errors:
				if !ok {
					return
				}
				w.log.Error().Err(err).Msg("config watch")
			}
		}
	}()
}

func (w *Watcher) reload() {
	var conf Config
	if _, err := LoadConfig(&conf, w.path); err != nil {
		w.log.Warn().Err(err).Msg("config reload has failed")
		return
	}
	if err := conf.Validate(); err != nil {
		w.log.Warn().Err(err).Msg("config reload skipped, invalid config")
		return
	}
	w.log.Info().
		Int("capacity", conf.Relay.Capacity).
		Dur("handshake", conf.Relay.HandshakeTimeout).
		Msg("config reloaded")
	w.onChange(conf)
}

func (w *Watcher) Shutdown(context.Context) (err error) {
	w.once.Do(func() {
		err = w.w.Close()
		if w.running.Load() {
			<-w.done
		}
	})
	return
}

func (w *Watcher) String() string { return "config-watcher" }

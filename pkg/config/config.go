package config

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	Relay      Relay
	Server     Server
	Monitoring Monitoring
	Webrtc     Webrtc
}

type Relay struct {
	Debug bool
	// Capacity is the max number of controllers per session.
	// There is no default, it should always be set explicitly.
	Capacity int
	// HandshakeTimeout is how long a new connection may stay
	// without creating or joining a session.
	HandshakeTimeout time.Duration `default:"15s"`
	// StallPolicy is what to do with a connection when its handshake
	// timeout fires: close or log.
	StallPolicy     string `default:"close"`
	SessionIdLength int    `default:"6"`
	// PublicUrl is the address of the web app with controller pages,
	// used for the join QR codes.
	PublicUrl string `default:"http://localhost:8000"`
	// AdminToken enables the admin API when set.
	AdminToken string
	// WatchConfig reloads limits on config file changes.
	WatchConfig bool
}

const (
	StallClose = "close"
	StallLog   = "log"

	maxCapacity = 64
)

var (
	ErrNoCapacity  = errors.New("relay.capacity is required")
	ErrBadCapacity = fmt.Errorf("relay.capacity should be within [1, %d]", maxCapacity)
)

// NewConfig parses command line args, loads the config file,
// and applies flag overrides on top of it.
func NewConfig(args []string) (conf Config, path string, err error) {
	fs := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	var (
		confPath string
		over     Config
	)
	fs.StringVarP(&confPath, "config", "c", "", "Set custom configuration file path")
	fs.StringVar(&over.Server.Address, "address", "", "HTTP server address (host:port)")
	fs.IntVar(&over.Relay.Capacity, "capacity", 0, "Max controllers per session")
	fs.DurationVar(&over.Relay.HandshakeTimeout, "handshake-timeout", 0, "Handshake watchdog timeout")
	fs.BoolVar(&over.Relay.Debug, "debug", false, "Enable debug logs")
	fs.IntVar(&over.Monitoring.Port, "monitoring.port", 0, "Monitoring server port")
	if err = fs.Parse(args); err != nil {
		return
	}

	if path, err = LoadConfig(&conf, confPath); err != nil {
		return
	}

	if fs.Changed("address") {
		conf.Server.Address = over.Server.Address
	}
	if fs.Changed("capacity") {
		conf.Relay.Capacity = over.Relay.Capacity
	}
	if fs.Changed("handshake-timeout") {
		conf.Relay.HandshakeTimeout = over.Relay.HandshakeTimeout
	}
	if fs.Changed("debug") {
		conf.Relay.Debug = over.Relay.Debug
	}
	if fs.Changed("monitoring.port") {
		conf.Monitoring.Port = over.Monitoring.Port
	}
	err = conf.Validate()
	return
}

func (c *Config) Validate() error {
	r := c.Relay
	if r.Capacity == 0 {
		return ErrNoCapacity
	}
	if r.Capacity < 0 || r.Capacity > maxCapacity {
		return ErrBadCapacity
	}
	if r.HandshakeTimeout <= 0 {
		return fmt.Errorf("relay.handshakeTimeout should be positive, got %v", r.HandshakeTimeout)
	}
	if r.StallPolicy != StallClose && r.StallPolicy != StallLog {
		return fmt.Errorf("relay.stallPolicy should be either %s or %s, got %q", StallClose, StallLog, r.StallPolicy)
	}
	if r.SessionIdLength < 4 {
		return fmt.Errorf("relay.sessionIdLength is too short: %v", r.SessionIdLength)
	}
	for _, ice := range c.Webrtc.IceServers {
		if ice.IsTurn() && (ice.Username == "" || ice.Credential == "") {
			return fmt.Errorf("TURN or TURNS servers should have both username and credential: %+v", ice)
		}
	}
	return nil
}

// Limits hold the part of the config that can be changed at runtime.
// New values apply to sessions and connections created afterwards.
type Limits struct {
	capacity atomic.Int32
	timeout  atomic.Int64
	closeOn  atomic.Bool
}

func NewLimits(r Relay) *Limits {
	l := &Limits{}
	l.Update(r)
	return l
}

func (l *Limits) Update(r Relay) {
	l.capacity.Store(int32(r.Capacity))
	l.timeout.Store(int64(r.HandshakeTimeout))
	l.closeOn.Store(r.StallPolicy != StallLog)
}

func (l *Limits) Capacity() int                   { return int(l.capacity.Load()) }
func (l *Limits) HandshakeTimeout() time.Duration { return time.Duration(l.timeout.Load()) }
func (l *Limits) CloseStalled() bool              { return l.closeOn.Load() }

package httpx

import (
	"time"

	"github.com/slingshot-arcade/relay/pkg/config"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

type (
	Options struct {
		Https bool
		// HttpsRedirect starts a second server at HttpsRedirectAddress
		// redirecting to https.
		HttpsRedirect        bool
		HttpsRedirectAddress string
		// HttpsCert and HttpsKey are cert files,
		// without them certificates come from Let's Encrypt.
		HttpsCert   string
		HttpsKey    string
		HttpsDomain string
		// PortRoll makes the server take the next free port if its port is busy.
		PortRoll          bool
		IdleTimeout       time.Duration
		ReadHeaderTimeout time.Duration
		Logger            *logger.Logger
	}
	Option func(*Options)
)

func (o *Options) override(options ...Option) {
	for _, opt := range options {
		opt(o)
	}
}

func (o *Options) autoCert() bool { return o.HttpsCert == "" || o.HttpsKey == "" }

func WithPortRoll(roll bool) Option { return func(o *Options) { o.PortRoll = roll } }

func WithLogger(log *logger.Logger) Option {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}

// WithServerConfig takes TLS settings from the config.
// The plain address becomes the https redirect address.
func WithServerConfig(conf config.Server) Option {
	return func(o *Options) {
		o.Https = conf.Https
		o.HttpsCert = conf.Tls.HttpsCert
		o.HttpsKey = conf.Tls.HttpsKey
		o.HttpsDomain = conf.Tls.Domain
		o.HttpsRedirectAddress = conf.Address
	}
}

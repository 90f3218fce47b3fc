package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/slingshot-arcade/relay/pkg/logger"
	"golang.org/x/crypto/acme/autocert"
)

type (
	Handler        = http.Handler
	HandlerFunc    = http.HandlerFunc
	ResponseWriter = http.ResponseWriter
	Request        = http.Request
)

// Mux is a ServeMux that puts a common prefix before every path pattern.
// Method patterns ("GET /ws") keep the method in front.
type Mux struct {
	*http.ServeMux
	prefix string
}

func NewServeMux(prefix string) *Mux { return &Mux{ServeMux: http.NewServeMux(), prefix: prefix} }

func (m *Mux) Handle(pattern string, handler Handler) *Mux {
	m.ServeMux.Handle(m.pattern(pattern), handler)
	return m
}

func (m *Mux) HandleFunc(pattern string, handler func(ResponseWriter, *Request)) *Mux {
	return m.Handle(pattern, HandlerFunc(handler))
}

func (m *Mux) pattern(p string) string {
	if m.prefix == "" {
		return p
	}
	for i := 0; i < len(p); i++ {
		if p[i] == ' ' {
			return p[:i+1] + m.prefix + p[i+1:]
		}
	}
	return m.prefix + p
}

type Server struct {
	http.Server

	certs    *autocert.Manager
	listener *Listener
	redirect *Server
	opts     Options
	log      *logger.Logger
}

// NewServer binds the address right away, so the port is known
// (and busy) before Run.
func NewServer(address string, handler Handler, options ...Option) (*Server, error) {
	opts := defaultOptions()
	opts.override(options...)

	s := &Server{
		Server: http.Server{
			Addr:    address,
			Handler: handler,
			// no read/write timeouts, websockets live as long as their sessions
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			IdleTimeout:       opts.IdleTimeout,
		},
		opts: opts,
		log:  opts.Logger,
	}

	if opts.Https && opts.autoCert() {
		s.certs = certManager(opts.HttpsDomain)
		s.TLSConfig = s.certs.TLSConfig()
	}

	if s.Addr == "" {
		s.Addr = ":http"
		if opts.Https {
			s.Addr = ":https"
		}
		s.log.Warn().Msgf("Empty server address has been changed to %v", s.Addr)
	}
	ls, err := NewListener(s.Addr, opts.PortRoll)
	if err != nil {
		return nil, err
	}
	s.listener = ls
	s.Addr = mergeAddresses(s.Addr, *ls)
	s.log.Debug().Msgf("httpx %v", s.Addr)
	return s, nil
}

func (s *Server) Run() { go s.serve() }

func (s *Server) serve() {
	protocol := s.GetProtocol()
	s.log.Debug().Msgf("Starting %s server on %s", protocol, s.Addr)

	var err error
	if s.opts.Https {
		if s.opts.HttpsRedirect {
			s.startRedirect()
		}
		err = s.ServeTLS(*s.listener, s.opts.HttpsCert, s.opts.HttpsKey)
	} else {
		err = s.Serve(*s.listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		s.log.Debug().Msgf("%s server was closed", protocol)
		return
	}
	s.log.Error().Err(err).Msgf("%s server", protocol)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.redirect != nil {
		_ = s.redirect.Shutdown(ctx)
	}
	return s.Server.Shutdown(ctx)
}

func (s *Server) GetPort() int { return s.listener.GetPort() }

func (s *Server) GetProtocol() string {
	if s.opts.Https {
		return "https"
	}
	return "http"
}

func (s *Server) String() string { return fmt.Sprintf("%s://%s", s.GetProtocol(), s.Addr) }

// startRedirect runs a plain http server that sends everyone
// to the https one. It also answers ACME http-01 challenges.
func (s *Server) startRedirect() {
	host := s.Addr
	if s.opts.HttpsDomain != "" {
		host = mergeAddresses(s.opts.HttpsDomain, *s.listener)
	}
	var h Handler = redirectTo(host, s.log)
	if s.certs != nil {
		h = s.certs.HTTPHandler(h)
	}
	rdr, err := NewServer(s.opts.HttpsRedirectAddress, h, WithLogger(s.log))
	if err != nil {
		s.log.Error().Err(err).Msg("couldn't start https redirect")
		return
	}
	s.log.Info().Str("to", host).Msgf("Redirecting %v to https", rdr.Addr)
	s.redirect = rdr
	rdr.Run()
}

func redirectTo(host string, log *logger.Logger) HandlerFunc {
	return func(w ResponseWriter, r *Request) {
		to := url.URL{Scheme: "https", Host: host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
		log.Debug().Str("from", r.Host+r.URL.String()).Str("to", to.String()).Msg("Redirect")
		http.Redirect(w, r, to.String(), http.StatusFound)
	}
}

func defaultOptions() Options {
	return Options{
		HttpsRedirect:     true,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		Logger:            logger.Default(),
	}
}

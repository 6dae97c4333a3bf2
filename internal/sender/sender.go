// Package sender sends one envelope per call over a pooled HTTP client and
// turns the answer into a response message or a fault.
package sender

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/frankli0324/go-soap-http/internal"
	"github.com/frankli0324/go-soap-http/internal/auth"
	"github.com/frankli0324/go-soap-http/internal/config"
	"github.com/frankli0324/go-soap-http/internal/dialer"
	"github.com/frankli0324/go-soap-http/internal/fault"
	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/netpool"
	"github.com/frankli0324/go-soap-http/internal/obs"
	"github.com/frankli0324/go-soap-http/internal/proxy"
	"github.com/frankli0324/go-soap-http/internal/request"
	"github.com/frankli0324/go-soap-http/internal/response"
	"github.com/jpillora/sizestr"
)

type Option func(*Sender)

func WithLogger(l obs.Logger) Option {
	return func(s *Sender) { s.log = l }
}

func WithResolveConfig(rc *dialer.ResolveConfig) Option {
	return func(s *Sender) { s.dialer.ResolveConfig = rc.Clone() }
}

// WithTLSConfig overrides the TLS settings of the client properties.
func WithTLSConfig(c *tls.Config) Option {
	return func(s *Sender) { s.dialer.TLSConfig = c.Clone() }
}

// WithMiddleware wraps every execution of the pooled client, after the
// sender's own exchange logging.
func WithMiddleware(mws ...internal.Middleware) Option {
	return func(s *Sender) { s.mws = append(s.mws, mws...) }
}

// WithHostname sets how the NTLM workstation name is found.
func WithHostname(f func() (string, error)) Option {
	return func(s *Sender) { s.hostname = f }
}

// Sender owns one connection pool. It is safe for concurrent use; the
// configuration it was built with is never modified.
type Sender struct {
	cfg *config.Config
	log obs.Logger

	dialer   *dialer.Dialer
	hostname func() (string, error)
	mws      []internal.Middleware

	client  *internal.Client
	builder *request.Builder
	handler *response.Handler
}

// New builds a sender from a copy of cfg, config.Default() if nil.
func New(cfg *config.Config, opts ...Option) *Sender {
	if cfg == nil {
		cfg = config.Default()
	} else {
		cfg = cfg.Clone()
	}
	s := &Sender{
		cfg: cfg,
		log: obs.Default(),
		dialer: &dialer.Dialer{
			TLSConfig:   cfg.Client.TLSConfig,
			EnableHTTP2: cfg.Client.EnableHTTP2,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dialer.Log = s.log

	s.client = internal.NewClient(cfg.Client, s.dialer, s.log)
	s.client.Use(s.logExchange)
	s.client.Use(s.mws...)
	s.builder = &request.Builder{Props: cfg.Client, Hostname: s.hostname}
	s.handler = &response.Handler{Log: s.log}
	return s
}

// Send delivers msg to cc.TargetURL. Every failure is a *fault.Fault:
// protocol faults for responses classified as failures, transport faults
// for everything else. The body of the returned message holds the pooled
// connection until closed.
func (s *Sender) Send(ctx context.Context, cc *model.CallContext, msg model.OutgoingMessage) (*model.Message, error) {
	m, err := s.send(ctx, cc, msg)
	if err != nil {
		f := fault.Transport(err)
		obs.With(s.log, "sender: ").Logf(obs.Debug, "%s: %v", cc.TargetURL, f)
		return nil, f
	}
	return m, nil
}

func (s *Sender) send(ctx context.Context, cc *model.CallContext, msg model.OutgoingMessage) (*model.Message, error) {
	target, err := url.Parse(cc.TargetURL)
	if err != nil {
		return nil, err
	}

	store := auth.NewStore()
	host, err := proxy.Resolve(target, s.cfg.Proxy(target.Scheme), store)
	if err != nil {
		return nil, err
	}
	req, err := s.builder.Build(cc, msg, target, store)
	if err != nil {
		return nil, err
	}
	if host != nil {
		req.Proxy = host.URL()
	}

	resp, err := s.client.Execute(ctx, req, store)
	if err != nil {
		return nil, err
	}
	m, err := s.handler.Handle(cc, resp)
	if err != nil {
		return nil, err
	}
	if cc.OneWay {
		io.Copy(io.Discard, m.Body)
		m.Body.Close()
		m.Body = http.NoBody
	}
	return m, nil
}

func (s *Sender) logExchange(next internal.Handler) internal.Handler {
	log := obs.With(s.log, "sender: ")
	return func(ctx context.Context, req *internal.PreparedRequest, store *auth.Store) (*model.Response, error) {
		start := time.Now()
		size := "chunked"
		if n := req.ContentLength(); n >= 0 {
			size = sizestr.ToString(n)
		}
		resp, err := next(ctx, req, store)
		if err != nil {
			log.Logf(obs.Warn, "%s %s (%s) failed after %v: %v", req.Method, req.U.Redacted(), size, time.Since(start), err)
			return nil, err
		}
		log.Logf(obs.Debug, "%s %s (%s) -> %s in %v", req.Method, req.U.Redacted(), size, resp.Status, time.Since(start))
		return resp, nil
	}
}

// Stats reports the pool usage.
func (s *Sender) Stats() netpool.Stats {
	return s.client.Pool.Stats()
}

// Close closes the idle connections and fails later calls. Bodies still
// open keep their connections until closed.
func (s *Sender) Close() error {
	return s.client.Close()
}

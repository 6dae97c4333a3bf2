package internal

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/frankli0324/go-soap-http/internal/auth"
	"github.com/frankli0324/go-soap-http/internal/config"
	"github.com/frankli0324/go-soap-http/internal/dialer"
	"github.com/frankli0324/go-soap-http/internal/entity"
	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/netpool"
	"github.com/frankli0324/go-soap-http/internal/obs"
	"github.com/frankli0324/go-soap-http/internal/transport"
	"github.com/jpillora/backoff"
	"golang.org/x/net/http2"
)

type PreparedRequest = model.PreparedRequest

type Handler = func(ctx context.Context, req *PreparedRequest, store *auth.Store) (*model.Response, error)
type Middleware func(next Handler) Handler

type Dialer func(ctx context.Context, req *PreparedRequest, store *auth.Store) (net.Conn, error)

// maxAuthRounds bounds the challenge rounds of one call: two for NTLM at
// the proxy plus two at the origin.
const maxAuthRounds = 4

// Client executes prepared requests over pooled connections. It answers
// 401 and 407 challenges with the credentials of the call's store and
// retries requests that failed on a stale pooled connection.
type Client struct {
	middlewares []Middleware
	dialer      Dialer

	Pool  *netpool.Pool
	HTTP1 *transport.HTTP1
	H2    transport.H2

	StaleRetries  int
	RetryMinDelay time.Duration
	RetryMaxDelay time.Duration

	Log obs.Logger
}

// NewClient builds a client with its own pool sized by props, dialing
// through d.
func NewClient(props config.ClientProperties, d *dialer.Dialer, log obs.Logger) *Client {
	c := &Client{
		Pool: netpool.NewPool(netpool.Options{
			MaxPerRoute:     props.MaxConnectionsPerHost,
			MaxTotal:        props.MaxTotalConnections,
			MaxIdlePerRoute: props.MaxIdlePerHost,
			IdleTimeout:     props.IdleTimeout,
			Log:             log,
		}),
		HTTP1:         &transport.HTTP1{ExpectContinueTimeout: props.ExpectContinueTimeout, Log: log},
		StaleRetries:  props.StaleRetries,
		RetryMinDelay: props.RetryMinDelay,
		RetryMaxDelay: props.RetryMaxDelay,
		Log:           log,
	}
	if d != nil {
		c.dialer = d.Dial
	}
	return c
}

// Use appends mw to the end of the chain. The first "Use"d mw executes first
func (c *Client) Use(mws ...Middleware) {
	c.middlewares = append(c.middlewares, mws...)
}

// UseDialer replaces the function opening new connections.
func (c *Client) UseDialer(d Dialer) {
	c.dialer = d
}

func (c *Client) dial(ctx context.Context, req *PreparedRequest, store *auth.Store) (net.Conn, error) {
	if c.dialer != nil {
		return c.dialer(ctx, req, store)
	}
	return (&dialer.Dialer{Log: c.Log}).Dial(ctx, req, store)
}

// Execute sends req. The response body owns the pooled connection and
// gives it back when closed.
func (c *Client) Execute(ctx context.Context, req *PreparedRequest, store *auth.Store) (*model.Response, error) {
	next := c.execute
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		next = c.middlewares[i](next)
	}
	return next(ctx, req, store)
}

func (c *Client) Close() error {
	return c.Pool.Close()
}

// challenge describes one side of an authentication exchange.
type challenge struct {
	status        int
	authenticate  string
	authorization string
	host          func(req *PreparedRequest) (string, int)
	hs            *auth.Handshake
}

func scopeOf(u *url.URL) (string, int) {
	if u == nil {
		return "", 0
	}
	_, p, _ := net.SplitHostPort(dialer.HostPort(u))
	port, _ := strconv.Atoi(p)
	return u.Hostname(), port
}

func targetScope(req *PreparedRequest) (string, int) { return scopeOf(req.U) }
func proxyScope(req *PreparedRequest) (string, int)  { return scopeOf(req.Proxy) }

func (c *Client) execute(ctx context.Context, req *PreparedRequest, store *auth.Store) (*model.Response, error) {
	log := obs.With(c.Log, "client: ")

	if req.Header == nil {
		req.Header = model.NewMimeHeaders()
	}
	// plain requests through an HTTP proxy carry Basic proxy credentials
	// from the first attempt
	if req.AbsoluteForm() && !req.Header.Has("Proxy-Authorization") {
		if creds, ok := store.Lookup(proxyScope(req)); ok && !creds.NTLM() {
			req.Header.Set("Proxy-Authorization", auth.BasicAuth(creds.Username, creds.Password))
		}
	}

	sides := []*challenge{
		{status: http.StatusUnauthorized, authenticate: "Www-Authenticate", authorization: "Authorization", host: targetScope},
		{status: http.StatusProxyAuthRequired, authenticate: "Proxy-Authenticate", authorization: "Proxy-Authorization", host: proxyScope},
	}

	var pinned *netpool.Conn
	for round := 0; ; round++ {
		resp, err := c.roundTrip(ctx, req, store, pinned)
		pinned = nil
		if err != nil {
			return nil, err
		}
		var side *challenge
		for _, s := range sides {
			if resp.StatusCode == s.status {
				side = s
			}
		}
		if side == nil || round >= maxAuthRounds {
			return resp, nil
		}
		if side.status == http.StatusProxyAuthRequired && !req.AbsoluteForm() {
			// tunnels are authenticated while dialing
			return resp, nil
		}
		if side.hs == nil {
			creds, ok := store.Lookup(side.host(req))
			if !ok {
				return resp, nil
			}
			side.hs = auth.NewHandshake(creds)
		}
		value, ok, err := side.hs.Respond(auth.ParseChallenges(resp.Header.Values(side.authenticate)))
		if err != nil || !ok {
			if err != nil {
				log.Logf(obs.Debug, "%d challenge not answered: %v", resp.StatusCode, err)
			}
			return resp, nil
		}
		log.Logf(obs.Debug, "answering %d challenge for %s", resp.StatusCode, req.U.Host)

		io.Copy(io.Discard, resp.Body)
		if side.hs.Connection() {
			if d, ok := resp.Body.(transport.Detacher); ok {
				pinned = d.Detach()
			}
			if pinned == nil {
				resp.Body.Close()
				return nil, errors.New("connection closed during NTLM handshake")
			}
		} else {
			resp.Body.Close()
		}
		req.Header.Set(side.authorization, value)
		// an interim 100 would be lost between handshake rounds
		req.ExpectContinue = false
	}
}

// roundTrip runs one exchange, on pinned when set or on a pooled
// connection otherwise. Failures on a reused connection that happened
// before any response arrived are retried on another one, see retryable.
func (c *Client) roundTrip(ctx context.Context, req *PreparedRequest, store *auth.Store, pinned *netpool.Conn) (*model.Response, error) {
	if pinned != nil {
		resp, err := c.transportFor(pinned).RoundTrip(ctx, pinned, req)
		if err != nil {
			pinned.Discard()
		}
		return resp, err
	}

	b := &backoff.Backoff{Min: c.RetryMinDelay, Max: c.RetryMaxDelay, Factor: 2, Jitter: true}
	route := dialer.RouteOf(req)
	for attempt := 0; ; attempt++ {
		conn, err := c.Pool.Connect(ctx, route, req.PoolTimeout, func(ctx context.Context) (net.Conn, error) {
			return c.dial(ctx, req, store)
		})
		if err != nil {
			return nil, err
		}
		if err := c.startProtocol(conn); err != nil {
			conn.Discard()
			return nil, err
		}
		resp, err := c.transportFor(conn).RoundTrip(ctx, conn, req)
		if err == nil {
			return resp, nil
		}
		conn.Discard()
		if attempt >= c.StaleRetries || !retryable(ctx, conn, req, err) {
			return nil, err
		}
		d := b.Duration()
		obs.With(c.Log, "client: ").Logf(obs.Info, "retrying %s %s in %v after stale connection: %v", req.Method, req.U.Host, d, err)
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// retryable reports whether a failed exchange on a reused connection can
// run again. A request the server may have received in full is repeated
// only when its method is safe to replay.
func retryable(ctx context.Context, conn *netpool.Conn, req *PreparedRequest, err error) bool {
	var nre *transport.NoResponseError
	var se *entity.SerializationError
	if !conn.Reused() || ctx.Err() != nil || !errors.As(err, &nre) || errors.As(err, &se) {
		return false
	}
	return !nre.Sent || replayable(req.Method)
}

func replayable(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// startProtocol binds HTTP/2 state to a fresh TLS connection that
// negotiated it.
func (c *Client) startProtocol(conn *netpool.Conn) error {
	if conn.Ext != nil {
		return nil
	}
	tc, ok := conn.Conn.(*tls.Conn)
	if !ok || tc.ConnectionState().NegotiatedProtocol != http2.NextProtoTLS {
		return nil
	}
	cc, err := transport.NewClientConn(conn)
	if err != nil {
		return err
	}
	conn.Ext = cc
	return nil
}

func (c *Client) transportFor(conn *netpool.Conn) transport.Transport {
	if _, ok := conn.Ext.(*http2.ClientConn); ok {
		return c.H2
	}
	if c.HTTP1 == nil {
		return &transport.HTTP1{Log: c.Log}
	}
	return c.HTTP1
}

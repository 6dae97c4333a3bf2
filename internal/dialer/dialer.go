// Package dialer opens the connections of a route: directly, through an
// HTTP proxy (plain or CONNECT tunnel) or through a SOCKS5 proxy, with TLS
// and HTTP/2 negotiation for https targets.
package dialer

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"

	"github.com/frankli0324/go-soap-http/internal/auth"
	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/netpool"
	"github.com/frankli0324/go-soap-http/internal/obs"
)

type Dialer struct {
	ResolveConfig *ResolveConfig

	TLSConfig   *tls.Config // cloned for every handshake
	EnableHTTP2 bool        // offer "h2" during the TLS handshake

	Log obs.Logger
}

func (d *Dialer) Clone() *Dialer {
	return &Dialer{
		ResolveConfig: d.ResolveConfig.Clone(),
		TLSConfig:     d.TLSConfig.Clone(),
		EnableHTTP2:   d.EnableHTTP2,
		Log:           d.Log,
	}
}

var schemes = map[string]string{
	"http": "80", "https": "443", "socks5": "1080",
}

// HostPort returns the host:port of u, filling in the scheme's default port.
func HostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = schemes[u.Scheme]
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// RouteOf is the pool partition req belongs to.
func RouteOf(req *model.PreparedRequest) netpool.Route {
	r := netpool.Route{Scheme: req.U.Scheme, Addr: HostPort(req.U)}
	if req.Proxy != nil {
		p := *req.Proxy
		p.User = nil
		r.Proxy = p.String()
	}
	return r
}

// Dial connects to the target of req, through req.Proxy if set. Proxy
// credentials are looked up in store. ConnectTimeout bounds the whole
// setup, proxy handshakes and TLS included.
func (d *Dialer) Dial(ctx context.Context, req *model.PreparedRequest, store *auth.Store) (net.Conn, error) {
	if req.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.ConnectTimeout)
		defer cancel()
	}
	log := obs.With(d.Log, "dialer: ")
	target := HostPort(req.U)

	var (
		conn net.Conn
		err  error
	)
	switch {
	case req.Proxy == nil:
		conn, err = d.dialDirect(ctx, "tcp", target)
	case req.Proxy.Scheme == "socks5":
		log.Logf(obs.Debug, "%s through socks5 proxy %s", target, req.Proxy.Host)
		conn, err = d.dialSOCKS5(ctx, req.Proxy, target, store)
	case req.U.Scheme == "https":
		log.Logf(obs.Debug, "%s through CONNECT tunnel at %s", target, req.Proxy.Host)
		conn, err = d.dialTunnel(ctx, req.Proxy, target, store)
	default:
		// plain requests go to the proxy in absolute form
		conn, err = d.dialDirect(ctx, "tcp", HostPort(req.Proxy))
	}
	if err != nil {
		return nil, err
	}
	if req.U.Scheme != "https" {
		return conn, nil
	}
	tc, err := d.handshake(ctx, conn, req.U.Hostname())
	if err != nil {
		conn.Close()
		return nil, err
	}
	return tc, nil
}

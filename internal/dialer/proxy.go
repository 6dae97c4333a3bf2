package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/frankli0324/go-soap-http/internal/auth"
	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/transport"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/proxy"
)

// ErrProxyAuth is returned when a proxy refuses the tunnel for lack of
// acceptable credentials.
var ErrProxyAuth = errors.New("proxy authentication required")

func proxyCredentials(store *auth.Store, p *url.URL) (auth.Credentials, bool) {
	port, _ := strconv.Atoi(p.Port())
	if port == 0 {
		port, _ = strconv.Atoi(schemes[p.Scheme])
	}
	return store.Lookup(p.Hostname(), port)
}

// dialTunnel opens a CONNECT tunnel to target through an HTTP proxy. Basic
// proxy credentials are sent up front; NTLM needs a challenge round on the
// tunnel connection and is not offered here.
func (d *Dialer) dialTunnel(ctx context.Context, p *url.URL, target string, store *auth.Store) (net.Conn, error) {
	if !httpguts.ValidHostHeader(target) {
		return nil, fmt.Errorf("invalid CONNECT authority %q", target)
	}
	conn, err := d.dialDirect(ctx, "tcp", HostPort(p))
	if err != nil {
		return nil, err
	}

	header := &model.MimeHeaders{}
	creds, ok := proxyCredentials(store, p)
	if ok && !creds.NTLM() {
		header.Add("Proxy-Authorization", auth.BasicAuth(creds.Username, creds.Password))
	}
	resp, body, err := transport.Tunnel(ctx, conn, target, header)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		conn.Close()
		if resp.StatusCode == 407 {
			return nil, fmt.Errorf("%w: CONNECT %s: %s", ErrProxyAuth, target, resp.Status)
		}
		return nil, fmt.Errorf("proxy server returned error. status:%d, body:%s", resp.StatusCode, string(body))
	}
	return conn, nil
}

func (d *Dialer) dialSOCKS5(ctx context.Context, p *url.URL, target string, store *auth.Store) (net.Conn, error) {
	var a *proxy.Auth
	if creds, ok := proxyCredentials(store, p); ok {
		a = &proxy.Auth{User: creds.Username, Password: creds.Password}
	}
	sd, err := proxy.SOCKS5("tcp", HostPort(p), a, directDialer{d})
	if err != nil {
		return nil, err
	}
	if cd, ok := sd.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", target)
	}
	return sd.Dial("tcp", target)
}

package dialer

import (
	"context"
	"crypto/tls"
	"net"
)

var zeroDialer net.Dialer
var customDnsDialer = net.Dialer{
	Resolver: &customServerResolver,
}

func (d *Dialer) dialDirect(ctx context.Context, network, hp string) (net.Conn, error) {
	addr, port, err := net.SplitHostPort(hp)
	if err != nil {
		return nil, err
	}
	// as of now net.Dialer could handle current DNS configurations
	dialer, dialctx, dst := &zeroDialer, ctx, hp
	if cfg := d.ResolveConfig; cfg != nil {
		if cfg.Network == "ip4" {
			network = "tcp4"
		} else if cfg.Network == "ip6" {
			network = "tcp6"
		}
		if static, ok := cfg.StaticHosts[addr]; ok {
			dst = net.JoinHostPort(static, port)
		}
		if dns := cfg.CustomDNSServer; dns != "" {
			dialctx = dnsServerCtx{dialctx, dns}
			dialer = &customDnsDialer
		}
	}
	return dialer.DialContext(dialctx, network, dst)
}

// handshake runs TLS over conn, offering h2 when enabled. The caller
// checks the negotiated protocol.
func (d *Dialer) handshake(ctx context.Context, conn net.Conn, serverName string) (*tls.Conn, error) {
	config := d.TLSConfig.Clone()
	if config == nil {
		config = &tls.Config{}
	}
	if config.ServerName == "" {
		config.ServerName = serverName
	}
	if d.EnableHTTP2 {
		config.NextProtos = []string{"h2", "http/1.1"}
	} else {
		config.NextProtos = []string{"http/1.1"}
	}
	c := tls.Client(conn, config)
	if err := c.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// directDialer exposes dialDirect to dialers that chain through us.
type directDialer struct{ d *Dialer }

func (f directDialer) Dial(network, addr string) (net.Conn, error) {
	return f.d.dialDirect(context.Background(), network, addr)
}

func (f directDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f.d.dialDirect(ctx, network, addr)
}

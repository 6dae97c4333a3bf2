// Package proxy decides whether a call goes through a proxy and registers
// the proxy credentials for it.
package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/frankli0324/go-soap-http/internal/auth"
	"github.com/frankli0324/go-soap-http/internal/config"
	"github.com/frankli0324/go-soap-http/internal/glob"
)

// Host describes the selected proxy.
type Host struct {
	Scheme   string // "http" or "socks5"
	Hostname string
	Port     int
}

func (h *Host) Addr() string {
	return net.JoinHostPort(h.Hostname, strconv.Itoa(h.Port))
}

func (h *Host) URL() *url.URL {
	return &url.URL{Scheme: h.Scheme, Host: h.Addr()}
}

// Resolve returns the proxy for target, or nil for a direct connection.
// When a proxy user is configured, its credentials are registered in store
// for the proxy host on any port.
func Resolve(target *url.URL, props config.ProxyProperties, store *auth.Store) (*Host, error) {
	if InNonProxyList(target.Hostname(), props.NonProxyHosts) {
		return nil, nil
	}
	if props.Host == "" || props.Port == "" {
		return nil, nil
	}
	port, err := strconv.Atoi(props.Port)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("proxy: invalid port %q", props.Port)
	}
	scheme := props.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if scheme != "http" && scheme != "socks5" {
		return nil, fmt.Errorf("proxy: unsupported scheme %q", scheme)
	}
	h := &Host{Scheme: scheme, Hostname: props.Host, Port: port}
	if props.User != "" {
		store.Set(auth.NewScope(props.Host, auth.AnyPort), auth.ParseUser(props.User, props.Password, props.Host))
	}
	return h, nil
}

// InNonProxyList reports whether host matches one of the '|' or '"'
// delimited patterns. Matching ignores case.
func InNonProxyList(host, nonProxyHosts string) bool {
	if host == "" || nonProxyHosts == "" {
		return false
	}
	host = auth.NormalizeHost(host)
	patterns := strings.FieldsFunc(nonProxyHosts, func(r rune) bool { return r == '|' || r == '"' })
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p != "" && glob.Match(p, host, false) {
			return true
		}
	}
	return false
}

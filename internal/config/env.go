package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// FromEnvironment returns the defaults overridden by the environment:
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY (and their lower case forms) for the
// proxies, and SOAPHTTP_* variables for the client properties.
func FromEnvironment() (*Config, error) {
	cfg := Default()
	proxies, err := ProxiesFromEnvironment(httpproxy.FromEnvironment())
	if err != nil {
		return nil, err
	}
	cfg.Proxies = proxies

	ints := map[string]*int{
		"SOAPHTTP_MAX_CONNECTIONS_PER_HOST": &cfg.Client.MaxConnectionsPerHost,
		"SOAPHTTP_MAX_TOTAL_CONNECTIONS":    &cfg.Client.MaxTotalConnections,
		"SOAPHTTP_MAX_IDLE_PER_HOST":        &cfg.Client.MaxIdlePerHost,
		"SOAPHTTP_STALE_RETRIES":            &cfg.Client.StaleRetries,
	}
	for k, p := range ints {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("config: %s: %w", k, err)
			}
			*p = n
		}
	}
	// durations are given in milliseconds
	durations := map[string]*time.Duration{
		"SOAPHTTP_CONNECTION_POOL_TIMEOUT":    &cfg.Client.ConnectionPoolTimeout,
		"SOAPHTTP_DEFAULT_CONNECTION_TIMEOUT": &cfg.Client.DefaultConnectionTimeout,
		"SOAPHTTP_DEFAULT_SO_TIMEOUT":         &cfg.Client.DefaultSoTimeout,
	}
	for k, p := range durations {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("config: %s: %w", k, err)
			}
			*p = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("SOAPHTTP_ENABLE_HTTP2"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: SOAPHTTP_ENABLE_HTTP2: %w", err)
		}
		cfg.Client.EnableHTTP2 = b
	}
	return cfg, nil
}

// ProxiesFromEnvironment converts proxy environment settings into per-scheme
// proxy properties.
func ProxiesFromEnvironment(env *httpproxy.Config) (map[string]ProxyProperties, error) {
	out := map[string]ProxyProperties{}
	nonProxy := NonProxyHostsFromNoProxy(env.NoProxy)
	for scheme, raw := range map[string]string{"http": env.HTTPProxy, "https": env.HTTPSProxy} {
		if raw == "" {
			continue
		}
		props, err := parseProxyURL(raw)
		if err != nil {
			return nil, fmt.Errorf("config: %s proxy: %w", scheme, err)
		}
		props.NonProxyHosts = nonProxy
		out[scheme] = props
	}
	return out, nil
}

func parseProxyURL(raw string) (ProxyProperties, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ProxyProperties{}, err
	}
	props := ProxyProperties{Scheme: u.Scheme, Host: u.Hostname(), Port: u.Port()}
	switch props.Scheme {
	case "http":
	case "socks5", "socks5h":
		props.Scheme = "socks5"
	default:
		// TLS to the proxy itself is not spoken
		return ProxyProperties{}, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if props.Port == "" {
		props.Port = "80"
		if props.Scheme == "socks5" {
			props.Port = "1080"
		}
	}
	if u.User != nil {
		props.User = u.User.Username()
		props.Password, _ = u.User.Password()
	}
	return props, nil
}

// NonProxyHostsFromNoProxy translates a comma separated NO_PROXY list into
// '|' separated glob patterns. A plain domain also covers its subdomains.
// CIDR entries have no glob equivalent and are skipped.
func NonProxyHostsFromNoProxy(noProxy string) string {
	var patterns []string
	for _, p := range strings.Split(noProxy, ",") {
		p = strings.TrimSpace(p)
		if p == "" || strings.Contains(p, "/") {
			continue
		}
		if h, _, err := net.SplitHostPort(p); err == nil {
			p = h
		}
		p = strings.Trim(p, "[]")
		switch {
		case p == "*":
			patterns = append(patterns, "*")
		case strings.HasPrefix(p, "*."):
			patterns = append(patterns, p)
		case strings.HasPrefix(p, "."):
			patterns = append(patterns, "*"+p)
		case net.ParseIP(p) != nil:
			patterns = append(patterns, p)
		default:
			patterns = append(patterns, p, "*."+p)
		}
	}
	return strings.Join(patterns, "|")
}

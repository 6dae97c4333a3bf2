// Package config holds the sender configuration. It is loaded once, before
// the sender is built, and only read afterwards.
package config

import (
	"crypto/tls"
	"time"
)

const DefaultUserAgent = "go-soap-http/1.0"

// ClientProperties tune the pooled client.
type ClientProperties struct {
	MaxConnectionsPerHost int // per route
	MaxTotalConnections   int
	MaxIdlePerHost        int
	IdleTimeout           time.Duration

	ConnectionPoolTimeout    time.Duration // how long a call waits for a pooled connection, 0 waits forever
	DefaultConnectionTimeout time.Duration // 0 means no limit
	DefaultSoTimeout         time.Duration // per read while waiting for the response, 0 means no limit

	ExpectContinueTimeout time.Duration

	// StaleRetries is how many times a request that failed on a reused
	// connection before any response byte arrived is sent again on a new
	// one. Requests the server may have received in full are only sent again
	// for GET, HEAD, OPTIONS and TRACE.
	StaleRetries  int
	RetryMinDelay time.Duration
	RetryMaxDelay time.Duration

	EnableHTTP2 bool
	TLSConfig   *tls.Config

	UserAgent string
}

func DefaultClientProperties() ClientProperties {
	return ClientProperties{
		MaxConnectionsPerHost: 2,
		MaxTotalConnections:   20,
		MaxIdlePerHost:        2,
		IdleTimeout:           90 * time.Second,
		ExpectContinueTimeout: time.Second,
		StaleRetries:          1,
		RetryMinDelay:         10 * time.Millisecond,
		RetryMaxDelay:         time.Second,
		UserAgent:             DefaultUserAgent,
	}
}

func (p ClientProperties) Clone() ClientProperties {
	if p.TLSConfig != nil {
		p.TLSConfig = p.TLSConfig.Clone()
	}
	return p
}

// ProxyProperties configure the proxy for one target scheme.
type ProxyProperties struct {
	// NonProxyHosts lists glob patterns separated by '|', optionally
	// enclosed in double quotes, e.g. "localhost|*.example.com".
	NonProxyHosts string

	Scheme   string // "http" (default) or "socks5"
	Host     string
	Port     string
	User     string // "domain\user" selects NTLM
	Password string
}

type Config struct {
	Client ClientProperties

	// Proxies is keyed by the target URL scheme ("http", "https").
	Proxies map[string]ProxyProperties
}

func Default() *Config {
	return &Config{Client: DefaultClientProperties(), Proxies: map[string]ProxyProperties{}}
}

// Proxy returns the proxy properties for a target scheme.
func (c *Config) Proxy(scheme string) ProxyProperties {
	if c == nil || c.Proxies == nil {
		return ProxyProperties{}
	}
	return c.Proxies[scheme]
}

func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{Client: c.Client.Clone(), Proxies: make(map[string]ProxyProperties, len(c.Proxies))}
	for k, v := range c.Proxies {
		out.Proxies[k] = v
	}
	return out
}

// Package auth holds the credentials registered for one call and answers
// Basic and NTLM challenges with them.
package auth

import (
	"strings"
	"sync"

	"golang.org/x/net/idna"
)

// AnyPort matches every port of a host. Proxy credentials use it.
const AnyPort = -1

// Scope is the key credentials are registered under.
type Scope struct {
	Host string
	Port int
}

// NewScope normalizes host so lookups match however the host was spelled.
func NewScope(host string, port int) Scope {
	return Scope{Host: NormalizeHost(host), Port: port}
}

// NormalizeHost lower-cases host and converts IDNs to their ASCII form.
func NormalizeHost(host string) string {
	if a, err := idna.Lookup.ToASCII(host); err == nil {
		host = a
	}
	return strings.ToLower(host)
}

type Credentials struct {
	Username string
	Password string

	// Domain and Workstation are only used by NTLM.
	Domain      string
	Workstation string
}

// NTLM reports whether the credentials came from a "domain\user" name.
func (c Credentials) NTLM() bool {
	return c.Domain != ""
}

// ParseUser builds credentials from a user name that may be written as
// "domain\user". Only the first backslash splits, and only when it is not
// the first character and something follows it.
func ParseUser(user, password, workstation string) Credentials {
	if i := strings.IndexByte(user, '\\'); i > 0 && i+1 < len(user) {
		return Credentials{
			Username:    user[i+1:],
			Password:    password,
			Domain:      user[:i],
			Workstation: workstation,
		}
	}
	return Credentials{Username: user, Password: password}
}

// Store is a credential store scoped to one call. It is safe for concurrent
// use since the proxy resolver and the request builder both write to it.
type Store struct {
	mu sync.RWMutex
	m  map[Scope]Credentials
}

func NewStore() *Store {
	return &Store{m: map[Scope]Credentials{}}
}

func (s *Store) Set(scope Scope, c Credentials) {
	s.mu.Lock()
	s.m[scope] = c
	s.mu.Unlock()
}

// Lookup prefers an exact (host, port) scope over an any-port one.
func (s *Store) Lookup(host string, port int) (Credentials, bool) {
	if s == nil {
		return Credentials{}, false
	}
	host = NormalizeHost(host)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.m[Scope{host, port}]; ok {
		return c, true
	}
	c, ok := s.m[Scope{host, AnyPort}]
	return c, ok
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

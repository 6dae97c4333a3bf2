package model

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Body is a replayable request body.
type Body interface {
	ContentLength() int64 // -1 if unknown, the body is then sent chunked
	WriteTo(w io.Writer) (int64, error)
}

// PreparedRequest is a fully built request, ready to be written to a pooled
// connection. It may be written more than once (authentication rounds,
// stale connection retries).
type PreparedRequest struct {
	Method     string
	U          *url.URL
	Proto      string // HTTP10 or HTTP11
	Header     *MimeHeaders
	HeaderHost string

	Body Body // nil for bodiless requests

	// Proxy is the HTTP or SOCKS5 proxy the route goes through, nil when
	// connecting directly.
	Proxy *url.URL

	ExpectContinue bool

	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	PoolTimeout     time.Duration
}

// ContentLength is -1 for chunked bodies and 0 without a body.
func (r *PreparedRequest) ContentLength() int64 {
	if r.Body == nil {
		return 0
	}
	return r.Body.ContentLength()
}

// AbsoluteForm reports whether the request line must carry the full URL,
// which is the case for plain HTTP through an HTTP proxy.
func (r *PreparedRequest) AbsoluteForm() bool {
	return r.Proxy != nil && r.Proxy.Scheme == "http" && r.U.Scheme == "http"
}

func (r *PreparedRequest) RequestURI() string {
	if r.AbsoluteForm() {
		u := *r.U
		u.User = nil
		u.Fragment = ""
		return u.String()
	}
	return r.U.RequestURI()
}

// Response is a parsed HTTP response. Closing Body releases the connection
// the response was read from.
type Response struct {
	Proto      string
	Status     string // "404 Not Found"
	StatusCode int
	Header     http.Header

	ContentLength int64
	Body          io.ReadCloser
}

// Reason returns the reason phrase of the status line.
func (r *Response) Reason() string {
	_, reason, ok := strings.Cut(r.Status, " ")
	if !ok || reason == "" {
		return http.StatusText(r.StatusCode)
	}
	return reason
}

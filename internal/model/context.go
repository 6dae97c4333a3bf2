package model

import "time"

// CallContext carries the per-invocation settings read by the request
// builder and the results written back by the response handling. A context
// belongs to a single call and is not safe for concurrent use.
type CallContext struct {
	TargetURL string
	Dialect   Dialect

	// Timeout bounds both connecting and waiting for the response. Zero
	// falls back to the client defaults.
	Timeout time.Duration

	// Username and Password take precedence over credentials embedded in
	// TargetURL. A "domain\user" username selects NTLM.
	Username string
	Password string

	MaintainSession bool

	UseSOAPAction bool
	SOAPActionURI string

	AcceptGzip  bool // ask for gzip responses
	GzipRequest bool // gzip the request body

	OneWay bool // response body is drained and discarded

	// WebMethod is honored for SOAP12 only; "GET" sends a bodiless GET.
	WebMethod string
	// HTTPVersion "HTTP/1.0" downgrades the request line and disables
	// chunking. Anything else means HTTP/1.1.
	HTTPVersion string

	// RequestHeaders are copied onto the request. Two names are consumed
	// instead of sent: HeaderExpect with value "100-continue", and
	// HeaderTransferEncodingChunked.
	RequestHeaders *MimeHeaders

	// Cookies holds session cookies keyed by HeaderCookie or HeaderCookie2.
	Cookies map[string]CookieSlot

	ResponseStatus  int
	ResponseReason  string
	ResponseMessage *Message
}

// CookieSlot holds the cookies stored under one header name, in the order
// they were first seen. At most one entry exists per cookie name.
type CookieSlot []string

// Single reports the lone value of a one-entry slot.
func (s CookieSlot) Single() (string, bool) {
	if len(s) == 1 {
		return s[0], true
	}
	return "", false
}

const (
	HeaderContentType     = "Content-Type"
	HeaderContentLocation = "Content-Location"
	HeaderContentEncoding = "Content-Encoding"
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderSOAPAction      = "SOAPAction"
	HeaderUserAgent       = "User-Agent"
	HeaderCookie          = "Cookie"
	HeaderCookie2         = "Cookie2"
	HeaderSetCookie       = "Set-Cookie"
	HeaderSetCookie2      = "Set-Cookie2"
	HeaderExpect          = "Expect"

	// HeaderTransferEncodingChunked is a control knob, never sent.
	HeaderTransferEncodingChunked = "transfer-encoding-chunked"

	Expect100Continue = "100-continue"
	EncodingGzip      = "gzip"

	HTTP10 = "HTTP/1.0"
	HTTP11 = "HTTP/1.1"
)

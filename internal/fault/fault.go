// Package fault holds the error values a send can end with. Every error
// leaving the sender is a *Fault, so callers can tell a transport failure
// from a classified HTTP response with errors.Is and errors.As.
package fault

import (
	"errors"
	"strconv"
)

type Kind int

const (
	KindTransport Kind = iota + 1
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Fault is a structured send failure.
type Fault struct {
	Kind Kind
	Code string // "HTTP" for classified responses, "Transport" otherwise

	String string // short fault string, e.g. "(404) Not Found"
	Detail string // response body for protocol faults, best effort

	HTTPStatus int // 0 for transport faults

	Err error
}

func (f *Fault) Error() string {
	msg := f.Code + ": " + f.String
	if f.Err != nil && f.Err.Error() != f.String {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches kind sentinels: a Fault with only Kind set matches every
// Fault of that kind.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	if t.String == "" && t.Code == "" {
		return t.Kind == f.Kind
	}
	return t == f
}

var (
	ErrTransport = &Fault{Kind: KindTransport}
	ErrProtocol  = &Fault{Kind: KindProtocol}

	ErrUnsupportedEncoding = errors.New("unsupported content-encoding")
	ErrPoolTimeout         = errors.New("timeout waiting for connection from pool")
	ErrPoolClosed          = errors.New("connection pool closed")
)

// Transport wraps an I/O or dial failure. A *Fault passes through as is.
func Transport(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return &Fault{Kind: KindTransport, Code: "Transport", String: err.Error(), Err: err}
}

// Protocol builds the fault for a response classified as a failure.
func Protocol(status int, reason, detail string) *Fault {
	return &Fault{
		Kind:       KindProtocol,
		Code:       "HTTP",
		String:     "(" + strconv.Itoa(status) + ") " + reason,
		Detail:     detail,
		HTTPStatus: status,
	}
}

// UnsupportedEncoding is the protocol fault for a Content-Encoding the
// sender cannot decode.
func UnsupportedEncoding(status int, encoding string) *Fault {
	return &Fault{
		Kind:       KindProtocol,
		Code:       "HTTP",
		String:     "unsupported content-encoding of '" + encoding + "' found",
		HTTPStatus: status,
		Err:        ErrUnsupportedEncoding,
	}
}

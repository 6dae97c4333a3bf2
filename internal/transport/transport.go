package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/netpool"
)

// Transport runs one exchange on a leased connection. On success the
// response body owns the lease and gives it back when closed; on error the
// caller still owns it.
type Transport interface {
	RoundTrip(ctx context.Context, conn *netpool.Conn, req *model.PreparedRequest) (*model.Response, error)
}

// Detacher is implemented by the response bodies of this package. Detach
// ends the body without giving the lease back when the connection is still
// usable, for exchanges that must continue on the same connection.
type Detacher interface {
	Detach() *netpool.Conn
}

// NoResponseError is a failure that happened before any byte of the
// response was received. Unless Sent is set the server cannot have seen
// the whole request, so it may be sent again elsewhere.
type NoResponseError struct {
	Err  error
	Sent bool
}

func (e *NoResponseError) Error() string { return "no response: " + e.Err.Error() }
func (e *NoResponseError) Unwrap() error { return e.Err }

// aLongTimeAgo is a non-zero time, far in the past, used to interrupt
// blocked reads and writes.
var aLongTimeAgo = time.Unix(1, 0)

// deadlineConn applies a fresh read deadline before every read, and fails
// fast once cancelled.
type deadlineConn struct {
	net.Conn

	mu        sync.Mutex
	read      time.Duration
	cancelled error
}

func (d *deadlineConn) setReadTimeout(t time.Duration) {
	d.mu.Lock()
	d.read = t
	d.mu.Unlock()
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.cancelled != nil {
		d.mu.Unlock()
		return 0, d.cancelled
	}
	var deadline time.Time
	if d.read > 0 {
		deadline = time.Now().Add(d.read)
	}
	d.Conn.SetReadDeadline(deadline)
	d.mu.Unlock()
	n, err := d.Conn.Read(p)
	if err != nil {
		d.mu.Lock()
		if d.cancelled != nil {
			err = d.cancelled
		}
		d.mu.Unlock()
	}
	return n, err
}

func (d *deadlineConn) Write(p []byte) (int, error) {
	d.mu.Lock()
	cancelled := d.cancelled
	d.mu.Unlock()
	if cancelled != nil {
		return 0, cancelled
	}
	n, err := d.Conn.Write(p)
	if err != nil {
		d.mu.Lock()
		if d.cancelled != nil {
			err = d.cancelled
		}
		d.mu.Unlock()
	}
	return n, err
}

// cancel interrupts blocked I/O; later reads and writes fail with err.
func (d *deadlineConn) cancel(err error) {
	d.mu.Lock()
	d.cancelled = err
	d.Conn.SetDeadline(aLongTimeAgo)
	d.mu.Unlock()
}

// watch cancels d when ctx is done, until the returned stop is called.
func watch(ctx context.Context, d *deadlineConn) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		d.cancel(context.Cause(ctx))
	})
}

var errBodyClosed = errors.New("http: read on closed response body")

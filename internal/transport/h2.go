package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/netpool"
	"golang.org/x/net/http2"
)

// NewClientConn starts HTTP/2 on a TLS connection that negotiated "h2".
// Responses are left compressed; decoding belongs to the caller.
func NewClientConn(c net.Conn) (*http2.ClientConn, error) {
	t := &http2.Transport{DisableCompression: true}
	return t.NewClientConn(c)
}

// H2 runs each exchange as one stream of the *http2.ClientConn stored in
// the leased connection's Ext.
type H2 struct{}

// hop-by-hop headers HTTP/2 forbids
var h2Forbidden = []string{"Connection", "Keep-Alive", "Proxy-Connection", "Transfer-Encoding", "Upgrade", "Expect"}

func (t H2) RoundTrip(ctx context.Context, conn *netpool.Conn, req *model.PreparedRequest) (*model.Response, error) {
	cc, ok := conn.Ext.(*http2.ClientConn)
	if !ok {
		return nil, errors.New("h2: connection carries no HTTP/2 state")
	}

	ctx, cancel := context.WithCancelCause(ctx)
	timer := newReadTimer(req.ResponseTimeout, cancel)
	hreq := toHTTPRequest(ctx, req)

	if !cc.CanTakeNewRequest() {
		cancel(nil)
		return nil, &NoResponseError{Err: errors.New("h2: connection takes no new streams")}
	}
	timer.start()
	hres, err := cc.RoundTrip(hreq)
	timer.stop()
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			err = cause
		}
		cancel(nil)
		return nil, &NoResponseError{Err: err, Sent: true}
	}

	return &model.Response{
		Proto:         hres.Proto,
		Status:        hres.Status,
		StatusCode:    hres.StatusCode,
		Header:        hres.Header,
		ContentLength: hres.ContentLength,
		Body:          &h2Body{ctx: ctx, body: hres.Body, conn: conn, timer: timer, cancel: cancel},
	}, nil
}

func toHTTPRequest(ctx context.Context, req *model.PreparedRequest) *http.Request {
	header := req.Header.HTTPHeader()
	for _, k := range h2Forbidden {
		header.Del(k)
	}
	u := *req.U
	hreq := &http.Request{
		Method:     req.Method,
		URL:        &u,
		Proto:      "HTTP/2.0",
		ProtoMajor: 2,
		Header:     header,
		Host:       req.HeaderHost,
	}
	if req.Body != nil {
		hreq.ContentLength = req.ContentLength()
		hreq.Body = pipeBody(req.Body)
		hreq.GetBody = func() (io.ReadCloser, error) { return pipeBody(req.Body), nil }
	}
	return hreq.WithContext(ctx)
}

func pipeBody(b model.Body) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := b.WriteTo(pw)
		pw.CloseWithError(err)
	}()
	return pr
}

type h2Body struct {
	ctx    context.Context
	body   io.ReadCloser
	conn   *netpool.Conn
	timer  *readTimer
	cancel context.CancelCauseFunc
	once   sync.Once
}

func (b *h2Body) Read(p []byte) (int, error) {
	b.timer.start()
	n, err := b.body.Read(p)
	b.timer.stop()
	if err != nil && err != io.EOF && b.ctx.Err() != nil {
		err = context.Cause(b.ctx)
	}
	return n, err
}

func (b *h2Body) Close() error {
	if conn := b.Detach(); conn != nil {
		conn.Release()
	}
	return nil
}

func (b *h2Body) Detach() (conn *netpool.Conn) {
	b.once.Do(func() {
		b.body.Close()
		b.cancel(nil)
		conn = b.conn
	})
	return
}

// readTimer cancels the stream when a single wait for the peer exceeds d.
type readTimer struct {
	d      time.Duration
	cancel context.CancelCauseFunc
	t      *time.Timer
}

func newReadTimer(d time.Duration, cancel context.CancelCauseFunc) *readTimer {
	return &readTimer{d: d, cancel: cancel}
}

func (r *readTimer) start() {
	if r.d <= 0 {
		return
	}
	if r.t == nil {
		r.t = time.AfterFunc(r.d, func() { r.cancel(os.ErrDeadlineExceeded) })
		return
	}
	r.t.Reset(r.d)
}

func (r *readTimer) stop() {
	if r.t != nil {
		r.t.Stop()
	}
}

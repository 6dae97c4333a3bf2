package transport_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/netpool"
	"github.com/frankli0324/go-soap-http/internal/transport"
)

// scriptedConn answers with in and records what was written. Each Read
// returns at most one of the readers in, like one TCP segment.
type scriptedConn struct {
	net.Conn
	in     io.Reader
	out    bytes.Buffer
	closed int32
}

func script(responses ...string) *scriptedConn {
	rs := make([]io.Reader, len(responses))
	for i, r := range responses {
		rs[i] = strings.NewReader(r)
	}
	return &scriptedConn{in: io.MultiReader(rs...)}
}

func (c *scriptedConn) Read(p []byte) (int, error)         { return c.in.Read(p) }
func (c *scriptedConn) Write(p []byte) (int, error)        { return c.out.Write(p) }
func (c *scriptedConn) Close() error                       { atomic.StoreInt32(&c.closed, 1); return nil }
func (c *scriptedConn) SetDeadline(t time.Time) error      { return nil }
func (c *scriptedConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *scriptedConn) SetWriteDeadline(t time.Time) error { return nil }

type stringBody string

func (b stringBody) ContentLength() int64 { return int64(len(b)) }
func (b stringBody) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, string(b))
	return int64(n), err
}

type chunkedBody string

func (b chunkedBody) ContentLength() int64 { return -1 }
func (b chunkedBody) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, string(b))
	return int64(n), err
}

var route = netpool.Route{Scheme: "http", Addr: "ws.example.com:80"}

func lease(t *testing.T, p *netpool.Pool, c net.Conn) *netpool.Conn {
	t.Helper()
	conn, err := p.Connect(context.Background(), route, 0, func(context.Context) (net.Conn, error) {
		if c == nil {
			return nil, errors.New("unexpected dial")
		}
		return c, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func newRequest(t *testing.T, method, rawURL string) *model.PreparedRequest {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	return &model.PreparedRequest{Method: method, U: u, Proto: model.HTTP11, Header: model.NewMimeHeaders(), HeaderHost: u.Host}
}

type tCase struct {
	data []byte
	req  func(t *testing.T) *model.PreparedRequest
}

var reqShouldBe = map[string]tCase{
	"BasicRequest": {
		req: func(t *testing.T) *model.PreparedRequest {
			return newRequest(t, "GET", "http://www.example.com")
		},
		data: []byte("GET / HTTP/1.1\r\nHost: www.example.com\r\n\r\n"),
	},
	"QueryNonStandard": {
		req: func(t *testing.T) *model.PreparedRequest {
			return newRequest(t, "GET", "http://www.example.com/test?1=33=1")
		},
		data: []byte("GET /test?1=33=1 HTTP/1.1\r\nHost: www.example.com\r\n\r\n"),
	},
	"HeaderNotCanonicalized": {
		req: func(t *testing.T) *model.PreparedRequest {
			r := newRequest(t, "GET", "http://www.example.com/")
			r.Header.Add("x-123-vv", "1")
			return r
		},
		data: []byte("GET / HTTP/1.1\r\nHost: www.example.com\r\nx-123-vv: 1\r\n\r\n"),
	},
	"URIFragmentNotIncluded": {
		req: func(t *testing.T) *model.PreparedRequest {
			return newRequest(t, "GET", "http://www.example.com/?test=1#frag")
		},
		data: []byte("GET /?test=1 HTTP/1.1\r\nHost: www.example.com\r\n\r\n"),
	},
	"HeaderOrderKept": {
		req: func(t *testing.T) *model.PreparedRequest {
			r := newRequest(t, "POST", "http://ws.example.com/svc")
			r.Header.Add("SOAPAction", `"urn:q"`)
			r.Header.Add("Content-Type", "text/xml; charset=utf-8")
			r.Header.Add("Cookie", "a=1")
			r.Body = stringBody("<a/>")
			return r
		},
		data: []byte("POST /svc HTTP/1.1\r\nHost: ws.example.com\r\nContent-Length: 4\r\n" +
			"SOAPAction: \"urn:q\"\r\nContent-Type: text/xml; charset=utf-8\r\nCookie: a=1\r\n\r\n<a/>"),
	},
	"ChunkedBody": {
		req: func(t *testing.T) *model.PreparedRequest {
			r := newRequest(t, "POST", "http://ws.example.com/svc")
			r.Body = chunkedBody("<a/>")
			return r
		},
		data: []byte("POST /svc HTTP/1.1\r\nHost: ws.example.com\r\nTransfer-Encoding: chunked\r\n\r\n4\r\n<a/>\r\n0\r\n\r\n"),
	},
	"AbsoluteFormThroughProxy": {
		req: func(t *testing.T) *model.PreparedRequest {
			r := newRequest(t, "GET", "http://ws.example.com/svc?wsdl")
			r.Proxy = &url.URL{Scheme: "http", Host: "proxy.corp:3128"}
			return r
		},
		data: []byte("GET http://ws.example.com/svc?wsdl HTTP/1.1\r\nHost: ws.example.com\r\n\r\n"),
	},
	"HTTP10": {
		req: func(t *testing.T) *model.PreparedRequest {
			r := newRequest(t, "POST", "http://ws.example.com/")
			r.Proto = model.HTTP10
			r.Body = stringBody("x")
			return r
		},
		data: []byte("POST / HTTP/1.0\r\nHost: ws.example.com\r\nContent-Length: 1\r\n\r\nx"),
	},
}

func TestRequestSerialize(t *testing.T) {
	for name, cas := range reqShouldBe {
		tCase := cas
		t.Run(name, func(t *testing.T) {
			c := script("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
			conn := lease(t, netpool.NewPool(netpool.Options{}), c)
			resp, err := (&transport.HTTP1{}).RoundTrip(context.Background(), conn, tCase.req(t))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if err := iotest.TestReader(&c.out, tCase.data); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestKeepAliveReuse(t *testing.T) {
	c := script(
		"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok",
		"HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nagain\r\n0\r\n\r\n",
	)
	p := netpool.NewPool(netpool.Options{Alive: func(*netpool.Conn) bool { return true }})
	h1 := &transport.HTTP1{}

	for i, want := range []string{"ok", "again"} {
		var conn *netpool.Conn
		if i == 0 {
			conn = lease(t, p, c)
		} else {
			conn = lease(t, p, nil)
			if !conn.Reused() {
				t.Fatal("second exchange did not reuse the connection")
			}
		}
		resp, err := h1.RoundTrip(context.Background(), conn, newRequest(t, "GET", "http://ws.example.com/"))
		if err != nil {
			t.Fatal(err)
		}
		if err := iotest.TestReader(resp.Body, []byte(want)); err != nil {
			t.Error(err)
		}
		resp.Body.Close()
		if s := p.Stats(); s.Idle != 1 || s.Leased != 0 {
			t.Errorf("exchange %d: stats %+v", i, s)
		}
	}
}

func TestNotReusable(t *testing.T) {
	for name, tc := range map[string]struct {
		response string
		read     bool
	}{
		"ConnectionClose": {"HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 2\r\n\r\nok", true},
		"HTTP10":          {"HTTP/1.0 200 OK\r\nContent-Length: 2\r\n\r\nok", true},
		"CloseDelimited":  {"HTTP/1.1 200 OK\r\n\r\nuntil eof", true},
		"BodyNotRead":     {"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok", false},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			c := script(tc.response)
			p := netpool.NewPool(netpool.Options{})
			resp, err := (&transport.HTTP1{}).RoundTrip(context.Background(), lease(t, p, c), newRequest(t, "GET", "http://ws.example.com/"))
			if err != nil {
				t.Fatal(err)
			}
			if tc.read {
				io.Copy(io.Discard, resp.Body)
			}
			resp.Body.Close()
			if s := p.Stats(); s.Idle != 0 || s.Leased != 0 {
				t.Errorf("stats %+v", s)
			}
			if atomic.LoadInt32(&c.closed) != 1 {
				t.Error("connection not closed")
			}
		})
	}
}

func TestReadAfterClose(t *testing.T) {
	c := script("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	resp, err := (&transport.HTTP1{}).RoundTrip(context.Background(), lease(t, netpool.NewPool(netpool.Options{}), c), newRequest(t, "GET", "http://ws.example.com/"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if _, err := resp.Body.Read(make([]byte, 1)); err == nil {
		t.Error("read after close succeeded")
	}
}

func TestInterimResponsesSkipped(t *testing.T) {
	c := script("HTTP/1.1 102 Processing\r\n\r\nHTTP/1.1 500 Internal Server Error\r\nContent-Type: text/xml\r\nContent-Length: 0\r\n\r\n")
	resp, err := (&transport.HTTP1{}).RoundTrip(context.Background(), lease(t, netpool.NewPool(netpool.Options{}), c), newRequest(t, "GET", "http://ws.example.com/"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 500 || resp.Reason() != "Internal Server Error" {
		t.Errorf("got %d %q", resp.StatusCode, resp.Reason())
	}
}

func TestConflictingContentLength(t *testing.T) {
	c := script("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nContent-Length: 3\r\n\r\nok")
	if _, err := (&transport.HTTP1{}).RoundTrip(context.Background(), lease(t, netpool.NewPool(netpool.Options{}), c), newRequest(t, "GET", "http://ws.example.com/")); err == nil {
		t.Error("conflicting Content-Length accepted")
	}
}

func TestEmptyReplyIsNoResponse(t *testing.T) {
	c := script()
	_, err := (&transport.HTTP1{}).RoundTrip(context.Background(), lease(t, netpool.NewPool(netpool.Options{}), c), newRequest(t, "GET", "http://ws.example.com/"))
	var nre *transport.NoResponseError
	if !errors.As(err, &nre) || !nre.Sent {
		t.Errorf("got %v", err)
	}
}

// refusingConn fails every write, like a socket the peer already reset.
type refusingConn struct{ scriptedConn }

func (c *refusingConn) Write(p []byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestSentMarksWrittenRequests(t *testing.T) {
	for name, tc := range map[string]struct {
		conn net.Conn
		body model.Body
		sent bool
	}{
		"HeaderRefused":    {&refusingConn{}, nil, false},
		"BodyRefused":      {&refusingConn{}, stringBody("<Envelope/>"), true},
		"EmptyReply":       {script(), nil, true},
		"EmptyReplyToPost": {script(), chunkedBody("<Envelope/>"), true},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			req := newRequest(t, "POST", "http://ws.example.com/svc")
			req.Body = tc.body
			_, err := (&transport.HTTP1{}).RoundTrip(context.Background(), lease(t, netpool.NewPool(netpool.Options{}), tc.conn), req)
			var nre *transport.NoResponseError
			if !errors.As(err, &nre) || nre.Sent != tc.sent {
				t.Errorf("got %#v", err)
			}
		})
	}
}

// serve runs handle on the server end of a pipe whose client end is leased
// from p.
func serve(t *testing.T, p *netpool.Pool, handle func(br *bufio.Reader, c net.Conn)) *netpool.Conn {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { server.Close() })
	go func() {
		handle(bufio.NewReader(server), server)
	}()
	return lease(t, p, client)
}

func TestExpectContinue(t *testing.T) {
	for name, tc := range map[string]struct {
		handle   func(br *bufio.Reader, c net.Conn)
		status   int
		reusable bool
	}{
		"Continue": {
			handle: func(br *bufio.Reader, c net.Conn) {
				req, err := http.ReadRequest(br)
				if err != nil {
					return
				}
				io.WriteString(c, "HTTP/1.1 100 Continue\r\n\r\n")
				io.Copy(io.Discard, req.Body)
				io.WriteString(c, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
			},
			status: 200, reusable: true,
		},
		"NoInterimAnswer": {
			handle: func(br *bufio.Reader, c net.Conn) {
				req, err := http.ReadRequest(br)
				if err != nil {
					return
				}
				io.Copy(io.Discard, req.Body)
				io.WriteString(c, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
			},
			status: 200, reusable: true,
		},
		"RejectedBeforeBody": {
			handle: func(br *bufio.Reader, c net.Conn) {
				if _, err := http.ReadRequest(br); err != nil {
					return
				}
				go io.Copy(io.Discard, br)
				io.WriteString(c, "HTTP/1.1 417 Expectation Failed\r\nContent-Length: 0\r\n\r\n")
			},
			status: 417, reusable: false,
		},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			p := netpool.NewPool(netpool.Options{Alive: func(*netpool.Conn) bool { return true }})
			conn := serve(t, p, tc.handle)
			req := newRequest(t, "POST", "http://ws.example.com/svc")
			req.Body = stringBody("<Envelope/>")
			req.ExpectContinue = true

			h1 := &transport.HTTP1{ExpectContinueTimeout: 200 * time.Millisecond}
			resp, err := h1.RoundTrip(context.Background(), conn, req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Errorf("status %d", resp.StatusCode)
			}
			if idle := p.Stats().Idle; (idle == 1) != tc.reusable {
				t.Errorf("idle connections: %d", idle)
			}
		})
	}
}

func TestResponseTimeout(t *testing.T) {
	conn := serve(t, netpool.NewPool(netpool.Options{}), func(br *bufio.Reader, c net.Conn) {
		http.ReadRequest(br)
		io.Copy(io.Discard, br)
	})
	req := newRequest(t, "GET", "http://ws.example.com/")
	req.ResponseTimeout = 50 * time.Millisecond

	_, err := (&transport.HTTP1{}).RoundTrip(context.Background(), conn, req)
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("got %v", err)
	}
	conn.Discard()
}

func TestContextCancel(t *testing.T) {
	conn := serve(t, netpool.NewPool(netpool.Options{}), func(br *bufio.Reader, c net.Conn) {
		http.ReadRequest(br)
		io.Copy(io.Discard, br)
	})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := (&transport.HTTP1{}).RoundTrip(ctx, conn, newRequest(t, "GET", "http://ws.example.com/"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
	conn.Discard()
}

func TestTunnel(t *testing.T) {
	header := model.NewMimeHeaders("Proxy-Authorization", "Basic Ym9iOnB3")

	c := script("HTTP/1.1 200 Connection established\r\n\r\n")
	resp, _, err := transport.Tunnel(context.Background(), c, "ws.example.com:443", header)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status %d", resp.StatusCode)
	}
	want := "CONNECT ws.example.com:443 HTTP/1.1\r\nHost: ws.example.com:443\r\nProxy-Authorization: Basic Ym9iOnB3\r\n\r\n"
	if err := iotest.TestReader(&c.out, []byte(want)); err != nil {
		t.Error(err)
	}

	c = script("HTTP/1.1 407 Proxy Authentication Required\r\nContent-Length: 6\r\n\r\ndenied")
	resp, body, err := transport.Tunnel(context.Background(), c, "ws.example.com:443", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 407 || string(body) != "denied" {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}

	c = script("HTTP/1.1 200 Connection established\r\n\r\nearly")
	if _, _, err := transport.Tunnel(context.Background(), c, "ws.example.com:443", nil); err == nil {
		t.Error("data ahead of the tunnel accepted")
	}
}

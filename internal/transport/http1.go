package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/netpool"
	"github.com/frankli0324/go-soap-http/internal/obs"
	"github.com/frankli0324/go-soap-http/internal/transport/chunked"
)

// HTTP1 speaks HTTP/1.0 and HTTP/1.1 over a leased connection.
type HTTP1 struct {
	// ExpectContinueTimeout is how long to wait for "100 Continue" before
	// sending the body anyway.
	ExpectContinueTimeout time.Duration
	Log                   obs.Logger
}

func (t *HTTP1) RoundTrip(ctx context.Context, conn *netpool.Conn, req *model.PreparedRequest) (*model.Response, error) {
	dc := &deadlineConn{Conn: conn}
	stop := watch(ctx, dc)
	resp, br, reusable, err := t.exchange(dc, req)
	if err != nil {
		stop()
		return nil, err
	}
	b := &body{br: br, reusable: reusable, conn: conn, stop: stop}
	if err := t.readTransfer(br, req, resp, b); err != nil {
		stop()
		return nil, err
	}
	resp.Body = b
	return resp, nil
}

// exchange writes req and reads the response head. Interim 1xx responses
// are skipped. reusable is false when the server answered an
// expect-continue request before the body was sent.
func (t *HTTP1) exchange(dc *deadlineConn, req *model.PreparedRequest) (resp *model.Response, br *bufio.Reader, reusable bool, err error) {
	bw := bufio.NewWriter(dc)
	br = bufio.NewReader(dc)
	if err := t.writeHeader(bw, req); err != nil {
		return nil, nil, false, &NoResponseError{Err: err}
	}

	sendBody := req.Body != nil
	if sendBody && req.ExpectContinue {
		if err := bw.Flush(); err != nil {
			return nil, nil, false, &NoResponseError{Err: err}
		}
		timeout := t.ExpectContinueTimeout
		if timeout <= 0 {
			timeout = time.Second
		}
		dc.setReadTimeout(timeout)
		_, err := br.Peek(1)
		dc.setReadTimeout(req.ResponseTimeout)
		var ne net.Error
		switch {
		case err == nil:
			resp, err := readResponse(br)
			if err != nil {
				return nil, nil, false, err
			}
			if resp.StatusCode != http.StatusContinue {
				// the body was never sent, the server may still expect it
				return resp, br, false, nil
			}
		case errors.As(err, &ne) && ne.Timeout():
			obs.With(t.Log, "http1: ").Logf(obs.Debug, "no 100-continue after %v, sending body", timeout)
		default:
			return nil, nil, false, &NoResponseError{Err: err}
		}
	}

	if sendBody {
		if err := writeBody(bw, req); err != nil {
			return nil, nil, false, &NoResponseError{Err: err, Sent: true}
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, nil, false, &NoResponseError{Err: err, Sent: sendBody}
	}

	dc.setReadTimeout(req.ResponseTimeout)
	if _, err := br.Peek(1); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, false, &NoResponseError{Err: err, Sent: true}
	}
	for {
		resp, err = readResponse(br)
		if err != nil {
			return nil, nil, false, err
		}
		if resp.StatusCode >= 200 || resp.StatusCode == http.StatusSwitchingProtocols {
			return resp, br, true, nil
		}
	}
}

// writeHeader writes the request line and header part of an HTTP/1.x
// request, e.g.:
//
//	POST /axis/services/Quote HTTP/1.1\r\n
//	Host: ws.example.com\r\n
//	Transfer-Encoding: chunked\r\n
//	SOAPAction: ""\r\n
//	\r\n
func (t *HTTP1) writeHeader(w *bufio.Writer, r *model.PreparedRequest) error {
	proto := r.Proto
	if proto == "" {
		proto = model.HTTP11
	}
	w.WriteString(r.Method)
	w.WriteByte(' ')
	w.WriteString(r.RequestURI())
	w.WriteByte(' ')
	w.WriteString(proto)
	w.WriteString("\r\n")

	w.WriteString("Host: ")
	w.WriteString(r.HeaderHost)
	w.WriteString("\r\n")
	if r.Body != nil {
		if cl := r.ContentLength(); cl >= 0 {
			w.WriteString("Content-Length: ")
			w.WriteString(strconv.FormatInt(cl, 10))
			w.WriteString("\r\n")
		} else {
			w.WriteString("Transfer-Encoding: chunked\r\n")
		}
		if r.ExpectContinue {
			w.WriteString("Expect: 100-continue\r\n")
		}
	}
	for _, h := range r.Header.All() {
		w.WriteString(h.Name)
		w.WriteString(": ")
		w.WriteString(h.Value)
		w.WriteString("\r\n")
	}
	_, err := w.WriteString("\r\n")
	return err
}

func writeBody(w io.Writer, r *model.PreparedRequest) error {
	cl := r.ContentLength()
	if cl < 0 {
		cw := chunked.NewWriter(w)
		if _, err := r.Body.WriteTo(cw); err != nil {
			return err
		}
		return cw.Close()
	}
	n, err := r.Body.WriteTo(w)
	if err != nil {
		return err
	}
	if n != cl {
		return fmt.Errorf("http1: body wrote %d bytes, declared %d", n, cl)
	}
	return nil
}

func readResponse(br *bufio.Reader) (*model.Response, error) {
	tp := textproto.NewReader(br)
	resp := &model.Response{}

	line, err := tp.ReadLine()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	proto, status, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return nil, errors.New("malformed HTTP response " + strconv.Quote(line))
	}
	resp.Proto = proto
	resp.Status = strings.TrimLeft(status, " ")

	statusCode, _, _ := strings.Cut(resp.Status, " ")
	if len(statusCode) != 3 {
		return nil, errors.New("malformed HTTP status code " + statusCode)
	}
	resp.StatusCode, err = strconv.Atoi(statusCode)
	if err != nil || resp.StatusCode < 100 {
		return nil, errors.New("malformed HTTP status code " + statusCode)
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	resp.Header = http.Header(mimeHeader)
	return resp, nil
}

func (t *HTTP1) readTransfer(br *bufio.Reader, req *model.PreparedRequest, resp *model.Response, b *body) error {
	contentLens := resp.Header["Content-Length"]

	// Hardening against HTTP request smuggling, taken from standard library
	if len(contentLens) > 1 {
		// Per RFC 7230 Section 3.3.2
		first := textproto.TrimString(contentLens[0])
		for _, ct := range contentLens[1:] {
			if first != textproto.TrimString(ct) {
				return fmt.Errorf("http: message cannot contain multiple Content-Length headers; got %q", contentLens)
			}
		}
		resp.Header.Set("Content-Length", first)
		contentLens = resp.Header["Content-Length"]
	}

	if !keepAlive(req, resp) {
		b.reusable = false
	}

	switch {
	case req.Method == "HEAD", resp.StatusCode < 200, resp.StatusCode == 204, resp.StatusCode == 304,
		req.Method == "CONNECT" && resp.StatusCode/100 == 2:
		resp.ContentLength = 0
		b.r, b.eof = http.NoBody, true
		return nil
	case chunkedEncoding(resp.Header):
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
		b.r = chunked.NewReader(br)
		return nil
	}

	cl := int64(-1)
	if len(contentLens) > 0 {
		n, err := strconv.ParseUint(textproto.TrimString(contentLens[0]), 10, 63)
		if err != nil {
			return fmt.Errorf("http: bad Content-Length %q", contentLens[0])
		}
		cl = int64(n)
	}
	resp.ContentLength = cl
	switch {
	case cl > 0:
		b.r = io.LimitReader(br, cl)
	case cl == 0:
		b.r, b.eof = http.NoBody, true
	default:
		// delimited by the server closing the connection
		b.r = br
		b.reusable = false
	}
	return nil
}

func chunkedEncoding(h http.Header) bool {
	te := h.Values("Transfer-Encoding")
	if len(te) == 0 {
		return false
	}
	last := te[len(te)-1]
	if i := strings.LastIndexByte(last, ','); i != -1 {
		last = last[i+1:]
	}
	return strings.EqualFold(strings.TrimSpace(last), "chunked")
}

func keepAlive(req *model.PreparedRequest, resp *model.Response) bool {
	if hasToken(req.Header.Values("Connection"), "close") || hasToken(resp.Header.Values("Connection"), "close") {
		return false
	}
	if resp.Proto == model.HTTP10 || req.Proto == model.HTTP10 {
		return hasToken(resp.Header.Values("Connection"), "keep-alive")
	}
	return true
}

func hasToken(values []string, token string) bool {
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

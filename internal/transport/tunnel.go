package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/url"

	"github.com/frankli0324/go-soap-http/internal/model"
)

// MaxTunnelErrorBody bounds how much of a refused CONNECT answer is read.
const MaxTunnelErrorBody = 4 << 10

// Tunnel sends a CONNECT for authority ("host:port") on conn, a fresh
// connection to an HTTP proxy, and reads the proxy's answer. For a 2xx
// answer conn is ready to carry the tunneled traffic. Otherwise errBody holds
// the start of the proxy's explanation.
func Tunnel(ctx context.Context, conn net.Conn, authority string, header *model.MimeHeaders) (resp *model.Response, errBody []byte, err error) {
	dc := &deadlineConn{Conn: conn}
	stop := watch(ctx, dc)
	defer stop()

	req := &model.PreparedRequest{
		Method:     "CONNECT",
		U:          &url.URL{Opaque: authority},
		Proto:      model.HTTP11,
		Header:     header,
		HeaderHost: authority,
	}
	bw := bufio.NewWriter(dc)
	if err := (&HTTP1{}).writeHeader(bw, req); err != nil {
		return nil, nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, nil, err
	}
	br := bufio.NewReader(dc)
	if resp, err = readResponse(br); err != nil {
		return nil, nil, err
	}
	if resp.StatusCode/100 == 2 {
		if br.Buffered() > 0 {
			return nil, nil, errors.New("proxy sent data before the tunnel was used")
		}
		return resp, nil, nil
	}
	b := &body{br: br}
	if err := (&HTTP1{}).readTransfer(br, req, resp, b); err == nil && b.r != nil {
		errBody, _ = io.ReadAll(io.LimitReader(b.r, MaxTunnelErrorBody))
	}
	return resp, errBody, nil
}

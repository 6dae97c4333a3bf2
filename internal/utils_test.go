package internal_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/frankli0324/go-soap-http/internal"
	"github.com/frankli0324/go-soap-http/internal/auth"
	"github.com/frankli0324/go-soap-http/internal/config"
	"github.com/frankli0324/go-soap-http/internal/dialer"
	"github.com/frankli0324/go-soap-http/internal/entity"
	"github.com/frankli0324/go-soap-http/internal/model"
	"github.com/frankli0324/go-soap-http/internal/netpool"
)

const envelope = "<Envelope><Body/></Envelope>"

func newClient(t *testing.T, d *dialer.Dialer) *internal.Client {
	t.Helper()
	if d == nil {
		d = &dialer.Dialer{}
	}
	c := internal.NewClient(config.DefaultClientProperties(), d, nil)
	t.Cleanup(func() { c.Close() })
	return c
}

// trustingPool makes idle connections skip the liveness probe, so a
// connection the peer closed is only found out by using it.
func trustingPool() *netpool.Pool {
	return netpool.NewPool(netpool.Options{Alive: func(*netpool.Conn) bool { return true }})
}

// countDials wraps the client's dialer and counts new connections.
func countDials(c *internal.Client, d *dialer.Dialer) *int32 {
	n := new(int32)
	c.UseDialer(func(ctx context.Context, req *internal.PreparedRequest, store *auth.Store) (net.Conn, error) {
		atomic.AddInt32(n, 1)
		return d.Dial(ctx, req, store)
	})
	return n
}

func newRequest(t *testing.T, method, rawURL, body string) *model.PreparedRequest {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	req := &model.PreparedRequest{Method: method, U: u, Proto: model.HTTP11, Header: model.NewMimeHeaders(), HeaderHost: u.Host}
	if body != "" {
		req.Header.Add("Content-Type", "text/xml; charset=utf-8")
		req.Body = entity.New(&model.BytesMessage{Data: []byte(body), Type: "text/xml; charset=utf-8"}, false, false)
	}
	return req
}

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func readBody(t *testing.T, resp *model.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func tlsConfigFor(ts *httptest.Server) *tls.Config {
	pool := x509.NewCertPool()
	pool.AddCert(ts.Certificate())
	return &tls.Config{RootCAs: pool}
}

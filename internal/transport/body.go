package transport

import (
	"bufio"
	"io"
	"sync"

	"github.com/frankli0324/go-soap-http/internal/netpool"
)

// body is the HTTP/1 response body. Close gives the connection back to the
// pool exactly once: for reuse when the body was read to its end and nothing
// else is buffered, closed otherwise.
type body struct {
	r        io.Reader
	br       *bufio.Reader
	conn     *netpool.Conn
	stop     func() bool
	reusable bool

	mu     sync.Mutex
	eof    bool
	err    error
	closed bool
}

func (b *body) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errBodyClosed
	}
	if b.err != nil {
		return 0, b.err
	}
	n, err := b.r.Read(p)
	if err == io.EOF {
		b.eof = true
	} else if err != nil {
		b.err = err
	}
	return n, err
}

func (b *body) Close() error {
	if conn := b.Detach(); conn != nil {
		conn.Release()
	}
	return nil
}

// Detach ends the body like Close, but a reusable connection stays leased
// and is returned to the caller. It returns nil when the connection had to
// be discarded.
func (b *body) Detach() *netpool.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if lr, ok := b.r.(*io.LimitedReader); ok && lr.N == 0 {
		b.eof = true
	}
	// stop reports false when the context already interrupted the conn
	watching := b.stop()
	if watching && b.reusable && b.eof && b.err == nil && b.br.Buffered() == 0 {
		return b.conn
	}
	b.conn.Discard()
	return nil
}

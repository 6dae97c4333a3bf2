package netpool

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/frankli0324/go-soap-http/internal/obs"
)

// Conn is a leased connection. It must be given back exactly once, with
// Release when the exchange left it reusable, or Discard otherwise. Both
// are safe to call more than once; only the first call counts.
type Conn struct {
	net.Conn

	// Ext carries protocol state bound to the connection, such as an HTTP/2
	// client connection. It survives idle periods.
	Ext interface{}

	pool  *Pool
	route Route
	rp    *routePool

	reused   bool
	broken   uint32
	done     uint32
	lastIdle time.Time
}

func (c *Conn) Route() Route { return c.route }

// Reused reports whether the connection served an earlier lease.
func (c *Conn) Reused() bool { return c.reused }

func (c *Conn) reuse() {
	c.reused = true
	atomic.StoreUint32(&c.broken, 0)
	atomic.StoreUint32(&c.done, 0)
}

func (c *Conn) Read(p []byte) (n int, err error) {
	n, err = c.Conn.Read(p)
	if err != nil {
		// a missed read deadline leaves the stream intact
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return
		}
		if err != io.EOF {
			c.pool.log.Logf(obs.Debug, "error on read. %v", err)
		}
		atomic.StoreUint32(&c.broken, 1)
	}
	return
}

func (c *Conn) Write(p []byte) (n int, err error) {
	n, err = c.Conn.Write(p)
	if err != nil {
		c.pool.log.Logf(obs.Debug, "error on write. %v", err)
		atomic.StoreUint32(&c.broken, 1)
	}
	return
}

// Release gives the connection back for reuse. A connection that saw an
// I/O error is closed instead.
func (c *Conn) Release() {
	if !atomic.CompareAndSwapUint32(&c.done, 0, 1) {
		return
	}
	c.Conn.SetDeadline(time.Time{})
	if atomic.LoadUint32(&c.broken) == 1 {
		c.Conn.Close()
	} else {
		c.pool.put(c)
	}
	c.pool.giveBack(c)
}

// Discard closes the connection and frees its slot.
func (c *Conn) Discard() {
	if !atomic.CompareAndSwapUint32(&c.done, 0, 1) {
		return
	}
	c.Conn.Close()
	c.pool.giveBack(c)
}

// Close is Discard, so a leased Conn can be handed out as an io.Closer.
func (c *Conn) Close() error {
	c.Discard()
	return nil
}

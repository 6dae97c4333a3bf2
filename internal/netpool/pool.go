// Package netpool leases connections per route, bounded by a per-route and
// a total limit. A lease holds one ticket of each kind until the connection
// is released or discarded; idle connections hold none.
package netpool

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frankli0324/go-soap-http/internal/fault"
	"github.com/frankli0324/go-soap-http/internal/nettools"
	"github.com/frankli0324/go-soap-http/internal/obs"
)

// Route partitions the pool: connections are only reused for requests to
// the same target through the same proxy.
type Route struct {
	Scheme string // target scheme
	Addr   string // target host:port
	Proxy  string // proxy URL, empty when direct
}

func (r Route) String() string {
	s := r.Scheme + "://" + r.Addr
	if r.Proxy != "" {
		s += " via " + r.Proxy
	}
	return s
}

type Dial func(ctx context.Context) (net.Conn, error)

type Options struct {
	MaxPerRoute     int
	MaxTotal        int
	MaxIdlePerRoute int
	IdleTimeout     time.Duration // 0 keeps idle connections forever

	Log obs.Logger
	// Alive probes an idle connection before reuse, DefaultAlive if nil.
	Alive func(*Conn) bool
}

type Pool struct {
	opts Options
	log  obs.Logger

	total chan struct{}

	mu     sync.RWMutex
	routes map[Route]*routePool
	closed bool

	leased int64
}

type routePool struct {
	tickets chan struct{}
	idle    []*Conn // guarded by Pool.mu, newest last
}

func NewPool(opts Options) *Pool {
	if opts.MaxPerRoute <= 0 {
		opts.MaxPerRoute = 2
	}
	if opts.MaxTotal <= 0 {
		opts.MaxTotal = 20
	}
	if opts.MaxIdlePerRoute <= 0 {
		opts.MaxIdlePerRoute = opts.MaxPerRoute
	}
	if opts.Alive == nil {
		opts.Alive = DefaultAlive
	}
	return &Pool{
		opts:   opts,
		log:    obs.With(opts.Log, "netpool: "),
		total:  make(chan struct{}, opts.MaxTotal),
		routes: map[Route]*routePool{},
	}
}

func (p *Pool) route(r Route) (*routePool, error) {
	p.mu.RLock()
	rp, ok := p.routes[r]
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, fault.ErrPoolClosed
	}
	if ok {
		return rp, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fault.ErrPoolClosed
	}
	if rp, ok = p.routes[r]; !ok {
		rp = &routePool{tickets: make(chan struct{}, p.opts.MaxPerRoute)}
		p.routes[r] = rp
	}
	return rp, nil
}

// Connect leases a connection for r, reusing a live idle one or calling
// dial. It waits at most wait for a free slot (forever if wait is 0) and
// fails with fault.ErrPoolTimeout after that.
func (p *Pool) Connect(ctx context.Context, r Route, wait time.Duration, dial Dial) (*Conn, error) {
	rp, err := p.route(r)
	if err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timeout = t.C
	}
	// route first, then total; every lease takes them in this order
	if err := acquire(ctx, rp.tickets, timeout); err != nil {
		return nil, err
	}
	if err := acquire(ctx, p.total, timeout); err != nil {
		<-rp.tickets
		return nil, err
	}

	if c := p.takeIdle(r, rp); c != nil {
		atomic.AddInt64(&p.leased, 1)
		p.log.Logf(obs.Debug, "reusing idle connection to %s", r)
		return c, nil
	}

	nc, err := dial(ctx)
	if err != nil {
		<-p.total
		<-rp.tickets
		return nil, err
	}
	atomic.AddInt64(&p.leased, 1)
	p.log.Logf(obs.Debug, "new connection to %s", r)
	return &Conn{Conn: nc, pool: p, route: r, rp: rp}, nil
}

// DefaultAlive asks the protocol state in Ext when it can tell, and polls
// the socket otherwise.
func DefaultAlive(c *Conn) bool {
	if s, ok := c.Ext.(interface{ CanTakeNewRequest() bool }); ok {
		return s.CanTakeNewRequest()
	}
	return nettools.Alive(c.Conn)
}

func acquire(ctx context.Context, tickets chan struct{}, timeout <-chan time.Time) error {
	select {
	case tickets <- struct{}{}:
		return nil
	default:
	}
	select {
	case tickets <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return fault.ErrPoolTimeout
	}
}

func (p *Pool) takeIdle(r Route, rp *routePool) *Conn {
	for {
		p.mu.Lock()
		n := len(rp.idle)
		if n == 0 {
			p.mu.Unlock()
			return nil
		}
		c := rp.idle[n-1]
		rp.idle[n-1] = nil
		rp.idle = rp.idle[:n-1]
		p.mu.Unlock()

		if p.opts.IdleTimeout > 0 && time.Since(c.lastIdle) > p.opts.IdleTimeout {
			p.log.Logf(obs.Debug, "closing expired connection to %s", r)
			c.Conn.Close()
			continue
		}
		if !p.opts.Alive(c) {
			p.log.Logf(obs.Debug, "closing stale connection to %s", r)
			c.Conn.Close()
			continue
		}
		c.reuse()
		return c
	}
}

// put returns a released connection to the idle list of its route, or
// closes it when the list is full or the pool is closed.
func (p *Pool) put(c *Conn) {
	p.mu.Lock()
	if !p.closed && len(c.rp.idle) < p.opts.MaxIdlePerRoute {
		c.lastIdle = time.Now()
		c.rp.idle = append(c.rp.idle, c)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	if err := c.Conn.Close(); err != nil {
		p.log.Logf(obs.Warn, "error closing connection to %s. %v", c.route, err)
	}
}

func (p *Pool) giveBack(c *Conn) {
	atomic.AddInt64(&p.leased, -1)
	<-p.total
	<-c.rp.tickets
}

type Stats struct {
	Leased int
	Idle   int
	Routes int
}

func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Stats{Leased: int(atomic.LoadInt64(&p.leased)), Routes: len(p.routes)}
	for _, rp := range p.routes {
		s.Idle += len(rp.idle)
	}
	return s
}

// Close closes the idle connections and makes later Connect calls fail.
// Leased connections are closed when they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var idle []*Conn
	for _, rp := range p.routes {
		idle = append(idle, rp.idle...)
		rp.idle = nil
	}
	p.mu.Unlock()

	for _, c := range idle {
		c.Conn.Close()
	}
	p.log.Logf(obs.Debug, "closed, dropped %d idle connections", len(idle))
	return nil
}

// Package rpc implements the connection lease pool and the JSON-over-HTTP
// call helper used for every collaborator request.
//
// A Handle owns a dedicated http.Client whose transport keeps at most one
// connection to its destination, so a handle stands in for one physical
// connection. Callers lease a handle, perform exactly one round trip, and
// then either Return it (healthy) or Evict it (suspected broken).
//
// The pool never retries. A lease that cannot be satisfied within the lease
// timeout fails with a KindConnectionUnavailable dependency error.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

// ErrPoolExhausted is the cause reported when no handle frees up in time.
var ErrPoolExhausted = errors.New("rpc: connection pool exhausted")

// ErrPoolClosed is returned by Lease after Close.
var ErrPoolClosed = errors.New("rpc: pool closed")

var (
	rpcLeases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_leases_total",
			Help: "Connection leases by destination and outcome (reused, dialed, unavailable).",
		},
		[]string{"destination", "outcome"},
	)
	rpcReleases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_releases_total",
			Help: "Closed leases by destination and kind (returned, evicted, dropped).",
		},
		[]string{"destination", "kind"},
	)
	rpcInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rpc_handles_in_use",
			Help: "Currently leased handles per destination.",
		},
		[]string{"destination"},
	)
)

func init() {
	prometheus.MustRegister(rpcLeases, rpcReleases, rpcInUse)
}

// Options configures a Pool. Zero values fall back to the defaults below.
type Options struct {
	MaxConns     int           // handles per destination (default 64)
	Timeout      time.Duration // per round trip (default 5s)
	LeaseTimeout time.Duration // wait for a free slot (default 1s)
	KeepAlive    time.Duration // idle handles older than this are dropped (default 60s)
}

func (o Options) withDefaults() Options {
	if o.MaxConns <= 0 {
		o.MaxConns = 64
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.LeaseTimeout <= 0 {
		o.LeaseTimeout = time.Second
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 60 * time.Second
	}
	return o
}

// Handle is a leased client for one destination. It must be given back
// through exactly one of Pool.Return or Pool.Evict.
type Handle struct {
	dest     string
	base     *url.URL
	client   *http.Client
	id       uint64
	idleFrom time.Time
	leased   atomic.Bool
}

// Destination returns the base URL the handle talks to.
func (h *Handle) Destination() string { return h.dest }

// ID returns the pool-unique handle id.
func (h *Handle) ID() uint64 { return h.id }

// destPool tracks the handles of a single destination. slots is a counting
// semaphore bounding leased handles; idle is a LIFO stack of returned ones.
type destPool struct {
	slots chan struct{}
	mu    sync.Mutex
	idle  []*Handle
}

// Pool is a set of per-destination handle pools. Safe for concurrent use.
type Pool struct {
	opts   Options
	nextID atomic.Uint64

	mu     sync.Mutex
	dests  map[string]*destPool
	closed bool

	now          func() time.Time
	newTransport func(timeout time.Duration) http.RoundTripper
}

// NewPool builds an empty pool; destinations are created on first lease.
func NewPool(opts Options) *Pool {
	return &Pool{
		opts:         opts.withDefaults(),
		dests:        make(map[string]*destPool),
		now:          time.Now,
		newTransport: defaultTransport,
	}
}

// defaultTransport limits each handle to a single underlying connection.
func defaultTransport(timeout time.Duration) http.RoundTripper {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		MaxConnsPerHost:     1,
		IdleConnTimeout:     90 * time.Second,
	}
}

func (p *Pool) destination(dest string) (*destPool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	dp, ok := p.dests[dest]
	if !ok {
		dp = &destPool{slots: make(chan struct{}, p.opts.MaxConns)}
		p.dests[dest] = dp
	}
	return dp, nil
}

// Lease hands out an exclusive handle for dest, reusing an idle one when
// available. It waits at most LeaseTimeout (or until ctx is done) for a free
// slot. Failures are KindConnectionUnavailable and leave nothing to evict.
func (p *Pool) Lease(ctx context.Context, dest string) (*Handle, error) {
	dp, err := p.destination(dest)
	if err != nil {
		return nil, p.unavailable(dest, err)
	}

	timer := time.NewTimer(p.opts.LeaseTimeout)
	defer timer.Stop()
	select {
	case dp.slots <- struct{}{}:
	case <-timer.C:
		return nil, p.unavailable(dest, ErrPoolExhausted)
	case <-ctx.Done():
		return nil, p.unavailable(dest, ctx.Err())
	}

	if h := p.popIdle(dp); h != nil {
		h.leased.Store(true)
		rpcLeases.WithLabelValues(dest, "reused").Inc()
		rpcInUse.WithLabelValues(dest).Inc()
		return h, nil
	}

	h, err := p.dial(dest)
	if err != nil {
		<-dp.slots
		return nil, p.unavailable(dest, err)
	}
	h.leased.Store(true)
	rpcLeases.WithLabelValues(dest, "dialed").Inc()
	rpcInUse.WithLabelValues(dest).Inc()
	return h, nil
}

// popIdle takes the most recently returned handle, dropping any that sat
// idle longer than KeepAlive.
func (p *Pool) popIdle(dp *destPool) *Handle {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	now := p.now()
	for len(dp.idle) > 0 {
		h := dp.idle[len(dp.idle)-1]
		dp.idle = dp.idle[:len(dp.idle)-1]
		if now.Sub(h.idleFrom) > p.opts.KeepAlive {
			h.client.CloseIdleConnections()
			continue
		}
		return h
	}
	return nil
}

func (p *Pool) dial(dest string) (*Handle, error) {
	u, err := url.Parse(dest)
	if err != nil {
		return nil, fmt.Errorf("rpc: invalid destination %q: %w", dest, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("rpc: invalid destination %q: want http(s)://host[:port]", dest)
	}
	return &Handle{
		dest: dest,
		base: u,
		client: &http.Client{
			Transport: p.newTransport(p.opts.Timeout),
			Timeout:   p.opts.Timeout,
		},
		id: p.nextID.Add(1),
	}, nil
}

// Return puts a healthy handle back for reuse. Closing an already closed
// lease is a no-op.
func (p *Pool) Return(h *Handle) {
	if h == nil || !h.leased.CompareAndSwap(true, false) {
		return
	}
	dp, err := p.destination(h.dest)
	if err != nil {
		// Pool closed while leased: drop the handle.
		h.client.CloseIdleConnections()
		released(h.dest, "dropped")
		return
	}
	h.idleFrom = p.now()
	dp.mu.Lock()
	dp.idle = append(dp.idle, h)
	dp.mu.Unlock()
	<-dp.slots
	released(h.dest, "returned")
}

// Evict discards a handle suspected broken; it is never handed out again.
func (p *Pool) Evict(h *Handle) {
	if h == nil || !h.leased.CompareAndSwap(true, false) {
		return
	}
	h.client.CloseIdleConnections()
	dp, err := p.destination(h.dest)
	if err == nil {
		<-dp.slots
	}
	released(h.dest, "evicted")
}

func released(dest, kind string) {
	rpcReleases.WithLabelValues(dest, kind).Inc()
	rpcInUse.WithLabelValues(dest).Dec()
}

// Stats reports leased and idle handle counts for dest.
func (p *Pool) Stats(dest string) (leased, idle int) {
	p.mu.Lock()
	dp, ok := p.dests[dest]
	p.mu.Unlock()
	if !ok {
		return 0, 0
	}
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return len(dp.slots), len(dp.idle)
}

// Close drops every idle handle and rejects further leases. Handles still
// leased are closed when they come back.
func (p *Pool) Close() {
	p.mu.Lock()
	dests := p.dests
	p.closed = true
	p.dests = map[string]*destPool{}
	p.mu.Unlock()

	for _, dp := range dests {
		dp.mu.Lock()
		for _, h := range dp.idle {
			h.client.CloseIdleConnections()
		}
		dp.idle = nil
		dp.mu.Unlock()
	}
}

func (p *Pool) unavailable(dest string, cause error) error {
	rpcLeases.WithLabelValues(dest, "unavailable").Inc()
	return domain.NewDependencyError(domain.KindConnectionUnavailable, dest, "lease", cause)
}

// Package pool implements a bounded pool of reusable backend connections.
//
// A Pool hands out at most MaxConnections connections at a time. Callers that
// arrive while the pool is exhausted wait in a FIFO queue until a connection
// is released or their acquire deadline passes. Idle connections older than
// IdleTimeout are reaped in the background, never below MinConnections.
//
// All pool bookkeeping happens under a single mutex. Only dialing and closing
// backend sessions run outside it.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const destroyTimeout = 5 * time.Second

// Option configures a Pool at construction.
type Option func(*Pool)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithID sets the pool instance ID instead of generating a random one.
func WithID(id uuid.UUID) Option {
	return func(p *Pool) { p.id = id }
}

// WithClock replaces time.Now for idle bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// Pool is a bounded connection pool. It is safe for concurrent use.
type Pool struct {
	id      uuid.UUID
	config  Config
	factory *factory
	logger  *zap.Logger
	now     func() time.Time

	// ctx is cancelled on Close and bounds background dials.
	ctx    context.Context
	cancel context.CancelFunc

	mu                sync.Mutex
	idle              []*Conn // most recently used last
	active            map[*Conn]struct{}
	pending           int // dials in flight, counted against capacity
	dialingForWaiters int
	waiters           waitQueue
	closed            bool
	drained           chan struct{} // set while Close waits for active conns
	acquired          uint64
	released          uint64
	timeouts          uint64

	closeDone chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

// New validates config, pre-warms MinConnections and starts the idle
// reaper. Warm-up dial failures are logged rather than returned: the pool
// is still usable and keeps trying to reach its minimum.
func New(ctx context.Context, config Config, dialer Dialer, opts ...Option) (*Pool, error) {
	if dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidConfig)
	}
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		id:        uuid.New(),
		config:    config,
		logger:    zap.NewNop(),
		now:       time.Now,
		active:    make(map[*Conn]struct{}, config.MaxConnections),
		closeDone: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.factory = newFactory(p, dialer)
	p.logger = p.logger.With(zap.Stringer("pool_id", p.id))

	p.warmUp(ctx)

	p.wg.Add(1)
	go p.reapLoop()

	p.logger.Info("pool ready",
		zap.Int("idle", p.Stats().PoolSize),
		zap.Int("min_connections", config.MinConnections),
		zap.Int("max_connections", config.MaxConnections))
	return p, nil
}

// ID returns the pool instance ID.
func (p *Pool) ID() uuid.UUID { return p.id }

// Config returns the effective configuration, defaults applied.
func (p *Pool) Config() Config { return p.config }

func (p *Pool) warmUp(ctx context.Context) {
	n := p.config.MinConnections
	if n == 0 {
		return
	}

	p.mu.Lock()
	p.pending += n
	p.mu.Unlock()

	conns := make([]*Conn, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			c, err := p.factory.create(ctx)
			if err != nil {
				return err
			}
			conns[i] = c
			return nil
		})
	}
	err := g.Wait()

	created := 0
	p.mu.Lock()
	p.pending -= n
	for _, c := range conns {
		if c == nil {
			continue
		}
		c.state = StateIdle
		p.idle = append(p.idle, c)
		created++
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("warm-up incomplete",
			zap.Int("created", created),
			zap.Int("wanted", n),
			zap.Error(err))
	}
}

// Acquire returns a connection, waiting up to Config.AcquireTimeout when the
// pool is exhausted. The caller must hand the connection back with Release
// or Discard.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	return p.AcquireTimeout(ctx, p.config.AcquireTimeout)
}

// AcquireTimeout is Acquire with a per-call timeout. A non-positive timeout
// uses Config.AcquireTimeout.
func (p *Pool) AcquireTimeout(ctx context.Context, timeout time.Duration) (*Conn, error) {
	if timeout <= 0 {
		timeout = p.config.AcquireTimeout
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.activateLocked(c)
		p.mu.Unlock()
		return c, nil
	}

	if p.totalLocked() < p.config.MaxConnections {
		p.pending++
		p.wg.Add(1)
		p.mu.Unlock()
		return p.acquireNew(ctx, timeout)
	}

	if p.config.MaxWaiters > 0 && p.waiters.len() >= p.config.MaxWaiters {
		p.mu.Unlock()
		return nil, ErrPoolSaturated
	}
	w := p.waiters.push(p.now(), timeout)
	p.mu.Unlock()

	return p.wait(ctx, w, timeout)
}

// acquireNew dials for the caller. The dial is tracked in p.wg and aborted
// by Close, so no session outlives the pool.
func (p *Pool) acquireNew(ctx context.Context, timeout time.Duration) (*Conn, error) {
	defer p.wg.Done()

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	stop := context.AfterFunc(p.ctx, cancel)
	c, err := p.factory.create(dialCtx)
	stop()
	cancel()

	p.mu.Lock()
	p.pending--
	if err != nil {
		closed := p.closed
		p.serveWaitersLocked()
		p.mu.Unlock()
		p.logger.Debug("dial failed", zap.Error(err))
		if closed {
			return nil, ErrPoolClosed
		}
		return nil, err
	}
	if p.closed {
		p.mu.Unlock()
		p.destroy(c)
		return nil, ErrPoolClosed
	}
	p.activateLocked(c)
	p.mu.Unlock()

	p.logger.Debug("connection created", zap.Uint64("conn_id", c.id))
	return c, nil
}

func (p *Pool) wait(ctx context.Context, w *waiter, timeout time.Duration) (*Conn, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.result:
		return res.conn, res.err

	case <-timer.C:
		p.mu.Lock()
		if p.waiters.remove(w) {
			p.timeouts++
			p.mu.Unlock()
			p.logger.Debug("acquire timed out",
				zap.Stringer("request_id", w.id),
				zap.Duration("timeout", timeout))
			return nil, fmt.Errorf("%w after %s (request %s)", ErrPoolTimeout, timeout, w.id)
		}
		p.mu.Unlock()
		// A handoff reached the lock first; it wins.
		res := <-w.result
		return res.conn, res.err

	case <-ctx.Done():
		p.mu.Lock()
		if p.waiters.remove(w) {
			p.mu.Unlock()
			return nil, ctx.Err()
		}
		p.mu.Unlock()
		res := <-w.result
		if res.conn != nil {
			p.Release(res.conn)
		}
		return nil, ctx.Err()
	}
}

// Release returns an active connection to the pool. If callers are queued
// the oldest one receives it directly. Releasing nil, an untracked
// connection or an already released one does nothing.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.active[c]; !ok {
		p.mu.Unlock()
		return
	}
	p.released++

	if p.closed {
		delete(p.active, c)
		c.state = StateClosed
		p.signalDrainedLocked()
		p.mu.Unlock()
		p.destroy(c)
		return
	}

	c.lastUsedAt = p.now()
	if w := p.waiters.pop(); w != nil {
		p.acquired++
		w.result <- acquireResult{conn: c}
		p.mu.Unlock()
		return
	}

	delete(p.active, c)
	c.state = StateIdle
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

// Discard destroys an active connection the caller found to be broken and
// frees its slot. Queued callers get a freshly dialed replacement.
func (p *Pool) Discard(c *Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.active[c]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.active, c)
	c.state = StateClosed
	if p.closed {
		p.signalDrainedLocked()
	} else {
		p.serveWaitersLocked()
	}
	p.mu.Unlock()

	p.logger.Debug("connection discarded", zap.Uint64("conn_id", c.id))
	p.destroy(c)
}

// Close shuts the pool down. Queued and future acquires fail with
// ErrPoolClosed and idle connections are destroyed at once. Active
// connections are destroyed as they are released; any still out after
// CloseGracePeriod, or when ctx ends, are destroyed anyway. Close is
// idempotent; concurrent callers wait for the first one to finish.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		select {
		case <-p.closeDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.closed = true

	for _, w := range p.waiters.drain() {
		w.result <- acquireResult{err: ErrPoolClosed}
	}
	idle := p.idle
	p.idle = nil
	for _, c := range idle {
		c.state = StateClosed
	}
	var drained chan struct{}
	if len(p.active) > 0 {
		drained = make(chan struct{})
		p.drained = drained
	}
	p.mu.Unlock()

	p.cancel()
	close(p.done)

	var errs []error
	for _, c := range idle {
		errs = append(errs, p.destroy(c))
	}

	if drained != nil {
		grace := time.NewTimer(p.config.CloseGracePeriod)
		select {
		case <-drained:
		case <-grace.C:
		case <-ctx.Done():
		}
		grace.Stop()
	}

	p.mu.Lock()
	forced := make([]*Conn, 0, len(p.active))
	for c := range p.active {
		c.state = StateClosed
		forced = append(forced, c)
	}
	clear(p.active)
	p.drained = nil
	p.mu.Unlock()

	if len(forced) > 0 {
		p.logger.Warn("destroying connections still in use", zap.Int("count", len(forced)))
	}
	for _, c := range forced {
		errs = append(errs, p.destroy(c))
	}

	p.wg.Wait()
	close(p.closeDone)
	p.logger.Info("pool closed")
	return errors.Join(errs...)
}

func (p *Pool) destroy(c *Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), destroyTimeout)
	defer cancel()
	err := p.factory.destroy(ctx, c)
	if err != nil {
		p.logger.Warn("destroy failed", zap.Uint64("conn_id", c.id), zap.Error(err))
	}
	return err
}

func (p *Pool) totalLocked() int {
	return len(p.idle) + len(p.active) + p.pending
}

func (p *Pool) activateLocked(c *Conn) {
	c.state = StateActive
	c.lastUsedAt = p.now()
	p.active[c] = struct{}{}
	p.acquired++
}

// placeLocked hands a freshly dialed connection to the oldest waiter or
// parks it idle. It reports false if the pool is closed and the caller must
// destroy c.
func (p *Pool) placeLocked(c *Conn) bool {
	if p.closed {
		return false
	}
	if w := p.waiters.pop(); w != nil {
		p.activateLocked(c)
		w.result <- acquireResult{conn: c}
		return true
	}
	c.state = StateIdle
	c.lastUsedAt = p.now()
	p.idle = append(p.idle, c)
	return true
}

// serveWaitersLocked dials on behalf of queued callers while there is spare
// capacity, so a freed slot is never left unused while someone waits.
func (p *Pool) serveWaitersLocked() {
	if p.closed {
		return
	}
	for p.waiters.len() > p.dialingForWaiters && p.totalLocked() < p.config.MaxConnections {
		p.dialingForWaiters++
		p.pending++
		p.wg.Add(1)
		go p.dialForWaiter()
	}
}

func (p *Pool) dialForWaiter() {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(p.ctx, p.config.AcquireTimeout)
	c, err := p.factory.create(ctx)
	cancel()

	p.mu.Lock()
	p.pending--
	p.dialingForWaiters--
	if err != nil {
		if w := p.waiters.pop(); w != nil {
			w.result <- acquireResult{err: err}
		}
		p.serveWaitersLocked()
		p.mu.Unlock()
		p.logger.Warn("dial for waiter failed", zap.Error(err))
		return
	}
	placed := p.placeLocked(c)
	p.mu.Unlock()

	if !placed {
		p.destroy(c)
	}
}

func (p *Pool) signalDrainedLocked() {
	if p.drained != nil && len(p.active) == 0 {
		close(p.drained)
		p.drained = nil
	}
}

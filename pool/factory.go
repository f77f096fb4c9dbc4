package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Dialer opens new backend sessions for the pool.
type Dialer interface {
	Dial(ctx context.Context) (Backend, error)
}

// DialFunc adapts an ordinary function to the Dialer interface.
type DialFunc func(ctx context.Context) (Backend, error)

// Dial calls f(ctx).
func (f DialFunc) Dial(ctx context.Context) (Backend, error) {
	return f(ctx)
}

var errNilBackend = errors.New("dialer returned a nil backend")

// factory creates and destroys pooled connections. Its only state is the
// identity counter and the lifetime counters it reports through Stats.
type factory struct {
	dialer Dialer
	pool   *Pool
	now    func() time.Time

	nextID        atomic.Uint64
	created       atomic.Uint64
	destroyed     atomic.Uint64
	destroyErrors atomic.Uint64
}

func newFactory(p *Pool, dialer Dialer) *factory {
	return &factory{dialer: dialer, pool: p, now: p.now}
}

func (f *factory) create(ctx context.Context) (*Conn, error) {
	b, err := f.dialer.Dial(ctx)
	if err == nil && b == nil {
		err = errNilBackend
	}
	if err != nil {
		return nil, &ConnectionError{Op: "create", Err: err}
	}

	now := f.now()
	c := &Conn{
		id:         f.nextID.Add(1),
		backend:    b,
		createdAt:  now,
		lastUsedAt: now,
		pool:       f.pool,
	}
	f.created.Add(1)
	return c, nil
}

// destroy closes the backend session. Destroying an already destroyed
// connection is a no-op.
func (f *factory) destroy(ctx context.Context, c *Conn) error {
	if c == nil || !c.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	f.destroyed.Add(1)
	if err := c.backend.Close(ctx); err != nil {
		f.destroyErrors.Add(1)
		return &ConnectionError{Op: "destroy", ConnID: c.id, Err: err}
	}
	return nil
}

func (f *factory) reset() {
	f.created.Store(0)
	f.destroyed.Store(0)
	f.destroyErrors.Store(0)
}

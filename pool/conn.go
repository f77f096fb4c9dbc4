package pool

import (
	"context"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a pooled connection.
type State uint8

const (
	StateIdle State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Backend is a live session to the backend target. *pgx.Conn satisfies it.
type Backend interface {
	Close(ctx context.Context) error
}

// Conn is a pooled connection handle. While active it belongs to the caller
// that acquired it; the pool only keeps a reference for bookkeeping.
type Conn struct {
	id        uint64
	backend   Backend
	createdAt time.Time
	pool      *Pool
	destroyed atomic.Bool

	// guarded by Pool.mu
	lastUsedAt time.Time
	state      State
}

// ID returns the connection identity, stable for the handle's lifetime.
func (c *Conn) ID() uint64 { return c.id }

// Backend returns the underlying session.
func (c *Conn) Backend() Backend { return c.backend }

// CreatedAt returns when the connection was dialed.
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// LastUsedAt returns when the connection was last acquired or released.
func (c *Conn) LastUsedAt() time.Time {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.lastUsedAt
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.state
}

package pool

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func (p *Pool) reapLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if n := p.reap(); n > 0 {
				p.logger.Debug("reaped idle connections", zap.Int("count", n))
			}
			p.replenish()
		}
	}
}

// reap destroys idle connections unused for longer than IdleTimeout, least
// recently used first, keeping at least MinConnections open. Expired
// connections leave the idle set under the lock, so an acquire can never
// receive one.
func (p *Pool) reap() int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}

	now := p.now()
	excess := len(p.idle) + len(p.active) - p.config.MinConnections
	var expired []*Conn
	kept := p.idle[:0]
	for _, c := range p.idle {
		if excess > 0 && now.Sub(c.lastUsedAt) > p.config.IdleTimeout {
			c.state = StateClosed
			expired = append(expired, c)
			excess--
			continue
		}
		kept = append(kept, c)
	}
	clear(p.idle[len(kept):])
	p.idle = kept
	p.mu.Unlock()

	// Errors are logged and counted by destroy; they never reach callers.
	for _, c := range expired {
		_ = p.destroy(c)
	}
	return len(expired)
}

// replenish dials until the pool is back at MinConnections, e.g. after
// connections were discarded as broken.
func (p *Pool) replenish() {
	p.mu.Lock()
	need := p.config.MinConnections - p.totalLocked()
	if p.closed || need <= 0 {
		p.mu.Unlock()
		return
	}
	p.pending += need
	p.mu.Unlock()

	for range need {
		ctx, cancel := context.WithTimeout(p.ctx, p.config.AcquireTimeout)
		c, err := p.factory.create(ctx)
		cancel()

		p.mu.Lock()
		p.pending--
		if err != nil {
			p.serveWaitersLocked()
			p.mu.Unlock()
			p.logger.Warn("replenish dial failed", zap.Error(err))
			continue
		}
		placed := p.placeLocked(c)
		p.mu.Unlock()

		if !placed {
			_ = p.destroy(c)
		}
	}
}

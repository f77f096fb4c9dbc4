package pool

// Stats is a point-in-time snapshot of pool counters. Counters accumulate
// until ResetStats; PoolSize, ActiveConnections and WaitingRequests are
// gauges.
type Stats struct {
	Created           uint64 `json:"created"`
	Destroyed         uint64 `json:"destroyed"`
	DestroyErrors     uint64 `json:"destroy_errors"`
	Acquired          uint64 `json:"acquired"`
	Released          uint64 `json:"released"`
	Timeouts          uint64 `json:"timeouts"`
	PoolSize          int    `json:"pool_size"`
	ActiveConnections int    `json:"active_connections"`
	WaitingRequests   int    `json:"waiting_requests"`
}

// Stats returns a snapshot of the pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Created:           p.factory.created.Load(),
		Destroyed:         p.factory.destroyed.Load(),
		DestroyErrors:     p.factory.destroyErrors.Load(),
		Acquired:          p.acquired,
		Released:          p.released,
		Timeouts:          p.timeouts,
		PoolSize:          len(p.idle),
		ActiveConnections: len(p.active),
		WaitingRequests:   p.waiters.len(),
	}
}

// ResetStats zeroes the accumulated counters. Gauges are unaffected.
func (p *Pool) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired = 0
	p.released = 0
	p.timeouts = 0
	p.factory.reset()
}

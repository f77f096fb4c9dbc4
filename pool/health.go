package pool

import (
	"fmt"

	pluralizer "github.com/gertd/go-pluralize"
)

var pluralizeClient = pluralizer.NewClient()

// Status is the coarse health verdict of a pool.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// Health is the result of HealthCheck.
type Health struct {
	Status   Status `json:"status"`
	PoolSize int    `json:"pool_size"`
	Active   int    `json:"active"`
	Waiting  int    `json:"waiting"`
	Warning  string `json:"warning,omitempty"`
}

// HealthCheck derives a health verdict from the accumulated statistics. The
// pool is degraded once acquire timeouts exceed DegradedTimeoutThreshold
// since the last ResetStats.
func (p *Pool) HealthCheck() Health {
	s := p.Stats()
	h := Health{
		Status:   StatusHealthy,
		PoolSize: s.PoolSize,
		Active:   s.ActiveConnections,
		Waiting:  s.WaitingRequests,
	}

	switch {
	case s.Timeouts > p.config.DegradedTimeoutThreshold:
		h.Status = StatusDegraded
		h.Warning = fmt.Sprintf("%d acquire %s since last reset (threshold %d); pool is under-provisioned for current load",
			s.Timeouts, plural("timeout", int(s.Timeouts)), p.config.DegradedTimeoutThreshold)
	case s.WaitingRequests > 0 && s.ActiveConnections >= p.config.MaxConnections:
		h.Warning = fmt.Sprintf("pool at capacity with %d waiting %s",
			s.WaitingRequests, plural("request", s.WaitingRequests))
	}
	return h
}

func plural(word string, n int) string {
	return pluralizeClient.Pluralize(word, n, false)
}

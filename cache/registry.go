package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry holds one StatementCache per pooled connection, keyed by
// connection ID. It is bounded so entries for connections the pool has
// since destroyed age out on their own.
type Registry struct {
	caches        *lru.Cache[uint64, *StatementCache]
	statementSize int
}

// NewRegistry creates a registry tracking up to conns connections with up to
// statements prepared statements each.
func NewRegistry(conns, statements int) *Registry {
	caches, _ := lru.New[uint64, *StatementCache](conns)
	return &Registry{caches: caches, statementSize: statements}
}

// For returns the statement cache of the given connection, creating it on
// first use.
func (r *Registry) For(connID uint64) *StatementCache {
	if sc, ok := r.caches.Get(connID); ok {
		return sc
	}
	sc := NewStatementCache(r.statementSize)
	// Only the connection's current holder calls For, so no other caller
	// can race to create the same entry.
	r.caches.Add(connID, sc)
	return sc
}

// Forget drops the cache of a connection that has been destroyed.
func (r *Registry) Forget(connID uint64) {
	r.caches.Remove(connID)
}

// Len returns the number of tracked connections.
func (r *Registry) Len() int {
	return r.caches.Len()
}

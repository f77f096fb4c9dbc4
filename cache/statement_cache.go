package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5/pgconn"
)

const statementPrefix = "dbpool_"

// Preparer is the subset of *pgx.Conn the statement cache needs.
type Preparer interface {
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	Deallocate(ctx context.Context, name string) error
}

// StatementCache tracks the prepared statements of a single connection.
// When it grows past its size the least recently used statement is
// deallocated on the server.
type StatementCache struct {
	cache   *lru.Cache[string, string]
	mu      sync.Mutex
	evicted []string
}

func NewStatementCache(size int) *StatementCache {
	s := &StatementCache{}
	s.cache, _ = lru.NewWithEvict(size, func(_ string, name string) {
		s.mu.Lock()
		s.evicted = append(s.evicted, name)
		s.mu.Unlock()
	})
	return s
}

// StatementName derives a stable statement name from the SQL text: its
// fnv64a hash and its length, so two texts only share a name if both match.
func StatementName(sql string) string {
	h := fnv.New64a()
	h.Write([]byte(sql))
	return statementPrefix + strconv.FormatUint(h.Sum64(), 16) + "_" + strconv.Itoa(len(sql))
}

// Prepare returns the statement name for sql, preparing it on conn the first
// time it is seen. conn must be the connection this cache belongs to.
func (s *StatementCache) Prepare(ctx context.Context, conn Preparer, sql string) (string, error) {
	if name, ok := s.cache.Get(sql); ok {
		return name, nil
	}

	name := StatementName(sql)
	if _, err := conn.Prepare(ctx, name, sql); err != nil {
		return "", fmt.Errorf("prepare %s: %w", name, err)
	}
	s.cache.Add(sql, name)

	for _, old := range s.takeEvicted() {
		if err := conn.Deallocate(ctx, old); err != nil {
			return name, fmt.Errorf("deallocate %s: %w", old, err)
		}
	}
	return name, nil
}

// Len returns the number of cached statements.
func (s *StatementCache) Len() int {
	return s.cache.Len()
}

func (s *StatementCache) takeEvicted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := s.evicted
	s.evicted = nil
	return evicted
}

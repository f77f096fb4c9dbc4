package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned by any operation attempted after Close.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrPoolTimeout is returned when an acquire deadline elapses while queued.
	ErrPoolTimeout = errors.New("timed out waiting for a connection")
	// ErrPoolSaturated is returned when MaxWaiters is set and the wait queue is full.
	ErrPoolSaturated = errors.New("pool wait queue is full")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid pool config")
)

// ConnectionError reports a backend failure while creating or destroying a connection.
type ConnectionError struct {
	Op     string // "create" or "destroy"
	ConnID uint64 // zero when the connection was never created
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.ConnID == 0 {
		return fmt.Sprintf("connection %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("connection %d %s failed: %v", e.ConnID, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

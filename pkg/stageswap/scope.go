package stageswap

import (
	"context"
	"sync"
)

// ScopeOpener acquires the store resources a single run needs.
type ScopeOpener interface {
	OpenScope(ctx context.Context, connConfig *ConnectionConfig) (*Scope, error)
}

// Scope owns the connection a run uses and releases it exactly once.
//
// Lifecycle:
//  1. Created by a ScopeOpener.
//  2. Used by every stage of one run.
//  3. Released via Close() on every exit path (idempotent).
//
// Example usage:
//
//	scope, err := opener.OpenScope(ctx, connConfig)
//	if err != nil {
//	    return err
//	}
//	defer scope.Close()
type Scope struct {
	conn    Conn
	release func()
	once    sync.Once
}

// NewScope wraps conn; release is called once by Close.
// Panics if conn is nil.
func NewScope(conn Conn, release func()) *Scope {
	if conn == nil {
		panic("conn cannot be nil")
	}
	return &Scope{conn: conn, release: release}
}

// Conn returns the run's connection. Valid until Close is called.
func (s *Scope) Conn() Conn {
	return s.conn
}

// Close releases the connection and its pool. Safe to call multiple times.
func (s *Scope) Close() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// Package session tracks live database sessions. A session owns one MySQL
// connection and the schema snapshot taken when it connected.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrBusy         = errors.New("session is busy")
	ErrLimitReached = errors.New("session limit reached")
)

// Conn is the database handle a session holds. *sql.DB satisfies it.
type Conn interface {
	schema.DB
	query.Querier
	Close() error
}

type Session struct {
	ID        string           `json:"session_id"`
	Database  string           `json:"database"`
	Target    string           `json:"target"`
	CreatedAt time.Time        `json:"created_at"`
	Snapshot  *schema.Snapshot `json:"-"`

	conn     Conn
	executor *query.Executor
	// mu is held for the duration of a request and while closing; closed is
	// only read or written under it.
	mu       sync.Mutex
	closed   bool
	lastUsed atomic.Int64
}

func newSession(id, target string, conn Conn, snapshot *schema.Snapshot, now time.Time) *Session {
	s := &Session{
		ID:        id,
		Database:  snapshot.Database,
		Target:    target,
		CreatedAt: now,
		Snapshot:  snapshot,
		conn:      conn,
		executor:  query.NewExecutor(conn),
	}
	s.lastUsed.Store(now.UnixNano())
	return s
}

// Acquire claims the session for one request. A session serves a single
// request at a time; a concurrent caller gets ErrBusy instead of waiting.
// A session already disconnected or reaped reports ErrNotFound.
func (s *Session) Acquire() error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	s.touch(time.Now())
	return nil
}

func (s *Session) Release() {
	s.touch(time.Now())
	s.mu.Unlock()
}

func (s *Session) Executor() *query.Executor {
	return s.executor
}

func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// close must be called with mu held.
func (s *Session) close() error {
	s.closed = true
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Introspector builds the snapshot for a fresh connection.
type Introspector interface {
	Build(ctx context.Context, db schema.DB) (*schema.Snapshot, error)
}

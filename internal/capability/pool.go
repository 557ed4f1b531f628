package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned by Checkout after Close.
var ErrPoolClosed = errors.New("session pool is closed")

// Session is anything a pool can hand out and close.
type Session interface {
	Close() error
}

// SessionPool hands out at most size sessions at a time. Checked-in
// sessions are reused; a session is never handed to two holders at once.
type SessionPool[T Session] struct {
	newSession func(ctx context.Context) (T, error)
	slots      chan struct{}

	mu     sync.Mutex
	idle   []T
	closed bool
}

// NewSessionPool creates a pool that builds sessions with newSession.
func NewSessionPool[T Session](size int, newSession func(ctx context.Context) (T, error)) *SessionPool[T] {
	if size < 1 {
		size = 1
	}
	return &SessionPool[T]{
		newSession: newSession,
		slots:      make(chan struct{}, size),
	}
}

// Checkout returns an idle session or creates one, blocking while size
// sessions are out.
func (p *SessionPool[T]) Checkout(ctx context.Context) (T, error) {
	var zero T
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return zero, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	s, err := p.newSession(ctx)
	if err != nil {
		<-p.slots
		return zero, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// Checkin returns a session to the pool. A broken session should be
// discarded with Discard instead.
func (p *SessionPool[T]) Checkin(s T) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.Close()
	} else {
		p.idle = append(p.idle, s)
		p.mu.Unlock()
	}
	<-p.slots
}

// Discard closes a checked-out session and frees its slot.
func (p *SessionPool[T]) Discard(s T) error {
	defer func() { <-p.slots }()
	return s.Close()
}

// Close closes every idle session. Sessions still checked out are closed
// when checked in.
func (p *SessionPool[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var errs []error
	for _, s := range p.idle {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.idle = nil
	return errors.Join(errs...)
}

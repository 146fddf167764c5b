package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/phenrril/attarstore/internal/domain"
)

type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateCommitted
	StateCancelled
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Load is one started operation of a Loader.
type Load struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state LoadState
	err   error
	once  sync.Once
}

func (l *Load) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err is the operation error of a failed load.
func (l *Load) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Done is closed once the load reached a terminal state and its commit or
// fail callback has returned.
func (l *Load) Done() <-chan struct{} { return l.done }

// finish moves the load to a terminal state once; it reports whether this
// call did the transition.
func (l *Load) finish(state LoadState, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateLoading {
		return false
	}
	l.state = state
	l.err = err
	return true
}

func (l *Load) release() { l.once.Do(func() { close(l.done) }) }

// Loader runs fetch operations for one page and commits only the latest.
// A newer Start supersedes the in-flight load: its context is cancelled and
// its result is dropped when it arrives. After Dispose no callback starts.
//
// Callbacks are serialized and may call Start, but must not call Dispose.
type Loader[T any] struct {
	commit func(T)
	fail   func(error)

	mu       sync.Mutex
	gen      uint64
	current  *Load
	disposed bool

	cbMu sync.Mutex
}

func NewLoader[T any](commit func(T), fail func(error)) *Loader[T] {
	return &Loader[T]{commit: commit, fail: fail}
}

func (c *Loader[T]) Start(ctx context.Context, op func(context.Context) (T, error)) *Load {
	c.mu.Lock()
	c.gen++
	opCtx, cancel := context.WithCancel(ctx)
	l := &Load{gen: c.gen, cancel: cancel, done: make(chan struct{}), state: StateLoading}
	if c.disposed {
		c.mu.Unlock()
		cancel()
		l.finish(StateCancelled, nil)
		l.release()
		return l
	}
	if prev := c.current; prev != nil {
		prev.cancel()
	}
	c.current = l
	c.mu.Unlock()

	go c.run(opCtx, l, op)
	return l
}

func (c *Loader[T]) run(ctx context.Context, l *Load, op func(context.Context) (T, error)) {
	defer l.release()
	defer l.cancel()
	v, err := op(ctx)

	c.cbMu.Lock()
	defer c.cbMu.Unlock()

	c.mu.Lock()
	stale := c.disposed || c.current != l
	c.mu.Unlock()
	if stale {
		l.finish(StateCancelled, nil)
		return
	}

	if err != nil {
		err = asNetworkError(err)
		if l.finish(StateFailed, err) && c.fail != nil {
			c.fail(err)
		}
		return
	}
	if l.finish(StateCommitted, nil) && c.commit != nil {
		c.commit(v)
	}
}

// State reports Idle before the first Start, otherwise the latest load's state.
func (c *Loader[T]) State() LoadState {
	c.mu.Lock()
	l := c.current
	c.mu.Unlock()
	if l == nil {
		return StateIdle
	}
	return l.State()
}

// Dispose cancels the in-flight load and waits for a running callback to
// return.
func (c *Loader[T]) Dispose() {
	c.mu.Lock()
	c.disposed = true
	l := c.current
	c.mu.Unlock()
	if l != nil {
		l.cancel()
		l.finish(StateCancelled, nil)
	}
	c.cbMu.Lock()
	c.cbMu.Unlock() //nolint:staticcheck
	if l != nil {
		l.release()
	}
}

func asNetworkError(err error) error {
	var (
		mal  *domain.MalformedRecordError
		val  *domain.ValidationError
		nerr *domain.NetworkError
	)
	switch {
	case errors.As(err, &mal), errors.As(err, &val), errors.As(err, &nerr),
		errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDuplicateID):
		return err
	}
	return &domain.NetworkError{Op: "load", Err: err}
}

package dbconn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Pool hands out borrowed connections. The release func returned by Acquire
// must be called exactly once when the caller is done with the connection.
type Pool[C any] interface {
	Acquire(ctx context.Context) (C, func(), error)
	Close()
}

// Opener builds the shared pool from environment-sourced configuration.
type Opener[C any] func(ctx context.Context) (Pool[C], error)

// Acquirer is the narrow borrow-or-fail accessor generated code depends on.
type Acquirer[C any] interface {
	Acquire(ctx context.Context) (C, func(), error)
}

// Observer receives resolver lifecycle events, typically for metrics.
type Observer interface {
	InitStarted(name string)
	InitFinished(name string, err error, took time.Duration)
	Borrowed(name string)
	Released(name string)
}

type nopObserver struct{}

func (nopObserver) InitStarted(string)                        {}
func (nopObserver) InitFinished(string, error, time.Duration) {}
func (nopObserver) Borrowed(string)                           {}
func (nopObserver) Released(string)                           {}

type options struct {
	name     string
	logger   *zap.Logger
	observer Observer
	disabled bool
}

// Option configures a Resolver.
type Option func(*options)

// WithName labels the resolver in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used for initialization events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver installs a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithEnabled switches the resolver off at runtime. A disabled resolver
// behaves as if resolution were compiled out.
func WithEnabled(enabled bool) Option {
	return func(o *options) { o.disabled = !enabled }
}

var (
	errNoPool = errors.New("opener returned no pool")
	errClosed = errors.New("resolver closed during initialization")
)

type ready[C any] struct {
	pool Pool[C]
}

// Resolver lazily initializes one shared pool and lends connections from it.
// It has two states: Uninitialized and Ready. Concurrent first use results in
// a single Opener call whose outcome every waiter shares; a failed attempt
// leaves the resolver Uninitialized so a later call may retry.
type Resolver[C any] struct {
	open     Opener[C]
	enabled  bool
	name     string
	logger   *zap.Logger
	observer Observer

	group singleflight.Group
	state atomic.Pointer[ready[C]]

	// mu orders Close against publishing a freshly opened pool; gen counts
	// Close calls.
	mu  sync.Mutex
	gen uint64
}

// New returns an Uninitialized resolver. Nothing is opened until the first
// Acquire.
func New[C any](open Opener[C], opts ...Option) *Resolver[C] {
	o := options{name: "default"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	return &Resolver[C]{
		open:     open,
		enabled:  Enabled && !o.disabled,
		name:     o.name,
		logger:   o.logger.With(zap.String("resolver", o.name)),
		observer: o.observer,
	}
}

// Acquire borrows a connection, initializing the pool on first use.
func (r *Resolver[C]) Acquire(ctx context.Context) (C, func(), error) {
	var zero C
	if !r.enabled {
		return zero, nil, &ResolutionError{Kind: NotConfigured}
	}

	pool, err := r.pool(ctx)
	if err != nil {
		return zero, nil, err
	}

	conn, release, err := pool.Acquire(ctx)
	if err != nil {
		return zero, nil, &BorrowError{Err: err}
	}
	r.observer.Borrowed(r.name)
	return conn, r.releaser(release), nil
}

// Ready reports whether the pool has been initialized.
func (r *Resolver[C]) Ready() bool {
	return r.state.Load() != nil
}

// Close closes the pool, if any, and returns the resolver to Uninitialized.
// An initialization still in flight closes the pool it opened and fails
// with InitFailed.
func (r *Resolver[C]) Close() {
	r.mu.Lock()
	r.gen++
	st := r.state.Swap(nil)
	r.mu.Unlock()
	if st == nil {
		return
	}
	st.pool.Close()
	r.logger.Info("connection pool closed")
}

func (r *Resolver[C]) pool(ctx context.Context) (Pool[C], error) {
	if st := r.state.Load(); st != nil {
		return st.pool, nil
	}

	v, err, _ := r.group.Do("init", func() (interface{}, error) {
		// A flight that finished just before this one may already have stored
		// the pool.
		if st := r.state.Load(); st != nil {
			return st, nil
		}
		return r.initialize(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*ready[C]).pool, nil
}

func (r *Resolver[C]) initialize(ctx context.Context) (*ready[C], error) {
	if r.open == nil {
		return nil, &ResolutionError{Kind: InitFailed, Err: errors.New("no opener configured")}
	}

	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()

	start := time.Now()
	r.observer.InitStarted(r.name)
	pool, err := r.open(ctx)
	if err == nil && pool == nil {
		err = errNoPool
	}
	took := time.Since(start)

	var st *ready[C]
	if err == nil {
		st = &ready[C]{pool: pool}
		if !r.publish(gen, st) {
			pool.Close()
			err = errClosed
		}
	}
	r.observer.InitFinished(r.name, err, took)

	if err != nil {
		r.logger.Warn("connection pool initialization failed", zap.Duration("took", took), zap.Error(err))
		return nil, &ResolutionError{Kind: InitFailed, Err: err}
	}
	r.logger.Info("connection pool ready", zap.Duration("took", took))
	return st, nil
}

// publish stores st unless Close ran after generation gen was read.
func (r *Resolver[C]) publish(gen uint64, st *ready[C]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return false
	}
	r.state.Store(st)
	return true
}

func (r *Resolver[C]) releaser(release func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if release != nil {
				release()
			}
			r.observer.Released(r.name)
		})
	}
}

package dbconn_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/svckit/pkg/dbconn"
)

type fakeConn struct {
	id int
}

type fakePool struct {
	conn     *fakeConn
	err      error
	acquired atomic.Int32
	released atomic.Int32
	closed   atomic.Bool
}

func (p *fakePool) Acquire(context.Context) (*fakeConn, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	p.acquired.Add(1)
	return p.conn, func() { p.released.Add(1) }, nil
}

func (p *fakePool) Close() { p.closed.Store(true) }

type countingOpener struct {
	calls atomic.Int32
	gate  chan struct{}
	fail  func(call int32) error
	pools []*fakePool
	mu    sync.Mutex
}

func (o *countingOpener) open(context.Context) (dbconn.Pool[*fakeConn], error) {
	call := o.calls.Add(1)
	if o.gate != nil {
		<-o.gate
	}
	if o.fail != nil {
		if err := o.fail(call); err != nil {
			return nil, err
		}
	}
	p := &fakePool{conn: &fakeConn{id: int(call)}}
	o.mu.Lock()
	o.pools = append(o.pools, p)
	o.mu.Unlock()
	return p, nil
}

func TestResolver_lazy_initialization(t *testing.T) {
	t.Parallel()

	op := &countingOpener{}
	r := dbconn.New(op.open)
	assert.False(t, r.Ready())
	assert.Equal(t, int32(0), op.calls.Load())

	conn, release, err := r.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, conn.id)
	assert.True(t, r.Ready())
	release()

	conn, release, err = r.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, conn.id, "pool is reused, not rebuilt")
	release()

	assert.Equal(t, int32(1), op.calls.Load())
	require.Len(t, op.pools, 1)
	assert.Equal(t, int32(2), op.pools[0].acquired.Load())
	assert.Equal(t, int32(2), op.pools[0].released.Load())
}

func TestResolver_concurrent_first_use_builds_one_pool(t *testing.T) {
	t.Parallel()

	const n = 64
	op := &countingOpener{gate: make(chan struct{})}
	r := dbconn.New(op.open)

	var (
		entered sync.WaitGroup
		done    sync.WaitGroup
		errs    atomic.Int32
	)
	entered.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer done.Done()
			entered.Done()
			_, release, err := r.Acquire(context.Background())
			if err != nil {
				errs.Add(1)
				return
			}
			release()
		}()
	}
	entered.Wait()
	time.Sleep(50 * time.Millisecond)
	close(op.gate)
	done.Wait()

	assert.Equal(t, int32(0), errs.Load())
	assert.Equal(t, int32(1), op.calls.Load())
	require.Len(t, op.pools, 1)
	assert.Equal(t, int32(n), op.pools[0].acquired.Load())
	assert.Equal(t, int32(n), op.pools[0].released.Load())
}

func TestResolver_concurrent_first_use_failure_is_shared(t *testing.T) {
	t.Parallel()

	const n = 32
	boom := errors.New("connection refused")
	op := &countingOpener{
		gate: make(chan struct{}),
		fail: func(int32) error { return boom },
	}
	r := dbconn.New(op.open)

	var (
		entered sync.WaitGroup
		done    sync.WaitGroup
		mu      sync.Mutex
		got     []error
	)
	entered.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer done.Done()
			entered.Done()
			_, _, err := r.Acquire(context.Background())
			mu.Lock()
			got = append(got, err)
			mu.Unlock()
		}()
	}
	entered.Wait()
	time.Sleep(50 * time.Millisecond)
	close(op.gate)
	done.Wait()

	require.Len(t, got, n)
	for _, err := range got {
		require.Error(t, err)
		assert.ErrorIs(t, err, dbconn.ErrInitFailed)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int32(1), op.calls.Load())
	assert.False(t, r.Ready())
	assert.Empty(t, op.pools)
}

func TestResolver_failed_init_is_retried(t *testing.T) {
	t.Parallel()

	op := &countingOpener{
		fail: func(call int32) error {
			if call == 1 {
				return errors.New("DATABASE_URL is not set")
			}
			return nil
		},
	}
	r := dbconn.New(op.open)

	_, release, err := r.Acquire(context.Background())
	require.Error(t, err)
	assert.Nil(t, release)

	re, ok := dbconn.IsResolution(err)
	require.True(t, ok)
	assert.Equal(t, dbconn.InitFailed, re.Kind)
	assert.False(t, r.Ready())

	conn, release, err := r.Acquire(context.Background())
	require.NoError(t, err)
	defer release()
	assert.Equal(t, 2, conn.id)
	assert.True(t, r.Ready())
}

func TestResolver_nil_pool_is_init_failure(t *testing.T) {
	t.Parallel()

	r := dbconn.New(func(context.Context) (dbconn.Pool[*fakeConn], error) {
		return nil, nil
	})
	_, _, err := r.Acquire(context.Background())
	assert.ErrorIs(t, err, dbconn.ErrInitFailed)
	assert.NotErrorIs(t, err, dbconn.ErrNotConfigured)
}

func TestResolver_nil_opener_is_init_failure(t *testing.T) {
	t.Parallel()

	r := dbconn.New[*fakeConn](nil)
	_, _, err := r.Acquire(context.Background())
	assert.ErrorIs(t, err, dbconn.ErrInitFailed)
}

func TestResolver_borrow_failure_is_not_resolution_error(t *testing.T) {
	t.Parallel()

	exhausted := errors.New("pool exhausted")
	r := dbconn.New(func(context.Context) (dbconn.Pool[*fakeConn], error) {
		return &fakePool{err: exhausted}, nil
	})

	_, _, err := r.Acquire(context.Background())
	require.Error(t, err)

	var be *dbconn.BorrowError
	assert.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, exhausted)
	_, isResolution := dbconn.IsResolution(err)
	assert.False(t, isResolution)
	assert.True(t, r.Ready())
}

func TestResolver_release_is_idempotent(t *testing.T) {
	t.Parallel()

	op := &countingOpener{}
	r := dbconn.New(op.open)

	_, release, err := r.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	assert.Equal(t, int32(1), op.pools[0].released.Load())
}

func TestResolver_close_returns_to_uninitialized(t *testing.T) {
	t.Parallel()

	op := &countingOpener{}
	r := dbconn.New(op.open)

	_, release, err := r.Acquire(context.Background())
	require.NoError(t, err)
	release()

	r.Close()
	assert.False(t, r.Ready())
	assert.True(t, op.pools[0].closed.Load())
	r.Close()

	conn, release, err := r.Acquire(context.Background())
	require.NoError(t, err)
	release()
	assert.Equal(t, 2, conn.id)
}

func TestResolver_close_during_init_closes_the_new_pool(t *testing.T) {
	t.Parallel()

	op := &countingOpener{gate: make(chan struct{})}
	r := dbconn.New(op.open)

	done := make(chan error, 1)
	go func() {
		_, release, err := r.Acquire(context.Background())
		if release != nil {
			release()
		}
		done <- err
	}()
	require.Eventually(t, func() bool { return op.calls.Load() == 1 }, time.Second, time.Millisecond)

	r.Close()
	close(op.gate)

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, dbconn.ErrInitFailed)
	assert.False(t, r.Ready())
	op.mu.Lock()
	require.Len(t, op.pools, 1)
	assert.True(t, op.pools[0].closed.Load())
	op.mu.Unlock()

	conn, release, err := r.Acquire(context.Background())
	require.NoError(t, err)
	release()
	assert.Equal(t, 2, conn.id)
	assert.True(t, r.Ready())
}

func TestResolver_init_ignores_caller_cancellation(t *testing.T) {
	t.Parallel()

	r := dbconn.New(func(ctx context.Context) (dbconn.Pool[*fakeConn], error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &fakePool{conn: &fakeConn{id: 7}}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, release, err := r.Acquire(ctx)
	require.NoError(t, err)
	defer release()
	assert.Equal(t, 7, conn.id)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) record(ev string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) InitStarted(name string) { o.record("init_started:" + name) }
func (o *recordingObserver) InitFinished(name string, err error, _ time.Duration) {
	if err != nil {
		o.record("init_failed:" + name)
		return
	}
	o.record("init_ok:" + name)
}
func (o *recordingObserver) Borrowed(name string) { o.record("borrowed:" + name) }
func (o *recordingObserver) Released(name string) { o.record("released:" + name) }

func TestResolver_observer_sees_lifecycle(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	op := &countingOpener{}
	r := dbconn.New(op.open, dbconn.WithName("pg"), dbconn.WithObserver(obs))

	_, release, err := r.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	assert.Equal(t, []string{"init_started:pg", "init_ok:pg", "borrowed:pg", "released:pg"}, obs.events)
}

func TestResolver_disabled_at_runtime(t *testing.T) {
	t.Parallel()

	op := &countingOpener{}
	r := dbconn.New(op.open, dbconn.WithEnabled(false))

	_, _, err := r.Acquire(context.Background())
	assert.ErrorIs(t, err, dbconn.ErrNotConfigured)
	assert.Zero(t, op.calls.Load())
	assert.False(t, r.Ready())
}

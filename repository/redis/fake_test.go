package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/svckit/pkg/dbconn"
)

// fakeRedis answers the handful of commands the session repository sends.
type fakeRedis struct {
	goRedis.Cmdable

	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
	cmds []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) record(cmd string) {
	f.cmds = append(f.cmds, cmd)
}

func (f *fakeRedis) Get(_ context.Context, key string) *goRedis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get " + key)
	if f.err != nil {
		return goRedis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return goRedis.NewStringResult("", goRedis.Nil)
	}
	return goRedis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *goRedis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set " + key)
	if f.err != nil {
		return goRedis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return goRedis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *goRedis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		f.record("del " + key)
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			delete(f.ttl, key)
			n++
		}
	}
	return goRedis.NewIntResult(n, f.err)
}

// TxPipelined queues writes on a fake pipeline and applies them only when fn
// succeeds.
func (f *fakeRedis) TxPipelined(ctx context.Context, fn func(goRedis.Pipeliner) error) ([]goRedis.Cmder, error) {
	pipe := &fakePipe{target: f}
	if err := fn(pipe); err != nil {
		return nil, err
	}
	for _, op := range pipe.ops {
		op(ctx)
	}
	return nil, f.err
}

type fakePipe struct {
	goRedis.Pipeliner

	target *fakeRedis
	ops    []func(context.Context)
}

func (p *fakePipe) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *goRedis.StatusCmd {
	p.ops = append(p.ops, func(ctx context.Context) { p.target.Set(ctx, key, value, expiration) })
	return goRedis.NewStatusResult("", nil)
}

func (p *fakePipe) Del(_ context.Context, keys ...string) *goRedis.IntCmd {
	p.ops = append(p.ops, func(ctx context.Context) { p.target.Del(ctx, keys...) })
	return goRedis.NewIntResult(0, nil)
}

type fakePool struct {
	client   goRedis.Cmdable
	borrowed atomic.Int32
}

func (p *fakePool) Acquire(context.Context) (goRedis.Cmdable, func(), error) {
	p.borrowed.Add(1)
	return p.client, func() {}, nil
}

func (p *fakePool) Close() {}

func newResolver(client goRedis.Cmdable, openErr error) (*dbconn.Resolver[goRedis.Cmdable], *fakePool) {
	pool := &fakePool{client: client}
	resolver := dbconn.New(func(context.Context) (dbconn.Pool[goRedis.Cmdable], error) {
		if openErr != nil {
			return nil, openErr
		}
		return pool, nil
	})
	return resolver, pool
}

package postgres_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastygo/svckit/pkg/dbconn"
	repo "github.com/fastygo/svckit/repository/postgres"
)

type call struct {
	sql  string
	args []any
}

// fakeQuerier answers every statement from canned values and records calls.
type fakeQuerier struct {
	mu    sync.Mutex
	calls []call

	row  fakeRow
	rows *fakeRows
	tag  pgconn.CommandTag
	err  error
	tx   *fakeTx
}

func (q *fakeQuerier) record(sql string, args []any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, call{sql: sql, args: args})
}

func (q *fakeQuerier) Calls() []call {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]call(nil), q.calls...)
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.record(sql, args)
	return q.tag, q.err
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.record(sql, args)
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.record(sql, args)
	return q.row
}

func (q *fakeQuerier) Begin(context.Context) (pgx.Tx, error) {
	if q.tx == nil {
		return nil, errors.New("no transaction configured")
	}
	return q.tx, nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	pgx.Rows
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.idx < len(r.data) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeRows) Scan(dest ...any) error { return assign(dest, r.data[r.idx-1]) }
func (r *fakeRows) Err() error             { return r.err }
func (r *fakeRows) Close()                 { r.closed = true }

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return errors.New("fake: column count mismatch")
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		dv.Set(reflect.ValueOf(values[i]))
	}
	return nil
}

// fakeTx runs statements through its own querier and records the outcome.
type fakeTx struct {
	pgx.Tx
	q          *fakeQuerier
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.q.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.q.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.q.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

// fakePool lends the same querier on every Acquire.
type fakePool struct {
	q        repo.Querier
	released atomic.Int32
}

func (p *fakePool) Acquire(context.Context) (repo.Querier, func(), error) {
	return p.q, func() { p.released.Add(1) }, nil
}

func (p *fakePool) Close() {}

type resolverFixture struct {
	resolver *dbconn.Resolver[repo.Querier]
	pool     *fakePool
	opened   atomic.Int32
}

func newResolver(q repo.Querier, openErr error) *resolverFixture {
	f := &resolverFixture{pool: &fakePool{q: q}}
	f.resolver = dbconn.New(func(context.Context) (dbconn.Pool[repo.Querier], error) {
		f.opened.Add(1)
		if openErr != nil {
			return nil, openErr
		}
		return f.pool, nil
	})
	return f
}

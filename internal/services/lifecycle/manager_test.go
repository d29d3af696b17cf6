package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/svckit/internal/services/lifecycle"
)

func TestManager_runs_hooks_in_reverse(t *testing.T) {
	t.Parallel()

	m := lifecycle.New(time.Second, nil)
	var order []string
	m.Register("http", func(context.Context) error {
		order = append(order, "http")
		return nil
	})
	m.RegisterCloser("postgres", func() { order = append(order, "postgres") })
	m.RegisterCloser("redis", func() { order = append(order, "redis") })

	assert.Equal(t, []string{"redis", "postgres", "http"}, m.Names())
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"redis", "postgres", "http"}, order)
}

func TestManager_joins_hook_errors(t *testing.T) {
	t.Parallel()

	m := lifecycle.New(time.Second, nil)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := false
	m.Register("a", func(context.Context) error { return errA })
	m.Register("ok", func(context.Context) error {
		ran = true
		return nil
	})
	m.Register("b", func(context.Context) error { return errB })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, ran)
}

func TestManager_shutdown_once(t *testing.T) {
	t.Parallel()

	m := lifecycle.New(time.Second, nil)
	calls := 0
	m.RegisterCloser("pool", func() { calls++ })

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestManager_skips_hooks_after_deadline(t *testing.T) {
	t.Parallel()

	m := lifecycle.New(time.Second, nil)
	skipped := true
	m.Register("first", func(context.Context) error {
		skipped = false
		return nil
	})
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, skipped)
}

func TestManager_ignores_nil_hooks(t *testing.T) {
	t.Parallel()

	m := lifecycle.New(0, nil)
	m.Register("nil", nil)
	m.RegisterCloser("nil", nil)
	assert.Empty(t, m.Names())
}

package dbconn

import "context"

// Use runs fn with the supplied connection, or with one borrowed from r when
// conn is absent. The borrowed connection is released when fn returns. A
// resolution failure is returned without calling fn.
func Use[C, R any](ctx context.Context, r Acquirer[C], conn Optional[C], fn func(context.Context, C) (R, error)) (R, error) {
	if c, ok := conn.Get(); ok {
		return fn(ctx, c)
	}
	c, release, err := r.Acquire(ctx)
	if err != nil {
		var zero R
		return zero, err
	}
	defer release()
	return fn(ctx, c)
}

// Exec is Use for functions that only return an error.
func Exec[C any](ctx context.Context, r Acquirer[C], conn Optional[C], fn func(context.Context, C) error) error {
	_, err := Use(ctx, r, conn, func(ctx context.Context, c C) (struct{}, error) {
		return struct{}{}, fn(ctx, c)
	})
	return err
}

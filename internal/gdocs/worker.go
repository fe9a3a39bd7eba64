package gdocs

import "context"

// offload runs fn on its own goroutine and waits for it or for ctx to be
// done. fn must not touch state owned by the caller after ctx is canceled.
func offload[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

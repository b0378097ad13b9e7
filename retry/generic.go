package retry

import "context"

// DoWithResultTyped is a type-safe generic wrapper around Retryer.DoWithResult.
// It eliminates the need for type assertions on the return value.
func DoWithResultTyped[T any](r Retryer, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	result, err := r.DoWithResult(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

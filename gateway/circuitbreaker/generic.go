package circuitbreaker

import "context"

// CallWithResultTyped is a type-safe generic wrapper around CircuitBreaker.CallWithResult.
func CallWithResultTyped[T any](cb CircuitBreaker, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	result, err := cb.CallWithResult(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

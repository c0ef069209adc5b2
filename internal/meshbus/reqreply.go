package meshbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meshctl/internal/envelope"
)

// Match inspects one decoded bus payload and reports whether it is the
// response being awaited. A true return stops the wait and yields T.
type Match[T any] func(envelope.Envelope) (T, bool)

// Await subscribes to bus, publishes request through send, then waits
// for the first payload matching predicate, decoding each bus message
// as an Envelope along the way.
//
// Subscribing before publishing is load-bearing: a response published
// between send() and Subscribe() would otherwise be missed.
func Await[T any](ctx context.Context, bus *Bus, send func() error, timeout time.Duration, predicate Match[T]) (T, error) {
	var zero T

	sub := bus.Subscribe()
	defer sub.Close()

	if err := send(); err != nil {
		return zero, fmt.Errorf("meshbus: send request: %w", err)
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		data, err := sub.Recv(deadline)
		if err != nil {
			switch {
			case errors.Is(err, ErrLagged):
				return zero, ErrLagged
			case errors.Is(err, ErrClosed):
				return zero, ErrClosed
			case errors.Is(err, context.DeadlineExceeded):
				return zero, fmt.Errorf("Timed out waiting for mesh response after %d seconds", int(timeout.Seconds()))
			default:
				return zero, err
			}
		}

		env, err := envelope.Decode(data)
		if err != nil {
			return zero, fmt.Errorf("meshbus: decode response: %w", err)
		}

		if value, ok := predicate(env); ok {
			return value, nil
		}
	}
}

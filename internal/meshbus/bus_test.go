package meshbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	b := NewBus(4)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b.Publish([]byte("hello"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got1, err := s1.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got1)

	got2, err := s2.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got2)
}

func TestBus_SlowSubscriberIsMarkedLaggedNotBlocking(t *testing.T) {
	b := NewBus(1)
	slow := b.Subscribe()
	defer slow.Close()

	b.Publish([]byte("one"))
	b.Publish([]byte("two")) // slow's buffer (cap 1) is full; it gets dropped

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := slow.Recv(ctx)
	require.NoError(t, err) // "one" still delivered

	_, err = slow.Recv(ctx)
	require.ErrorIs(t, err, ErrLagged)
}

func TestBus_CloseSignalsClosedNotLagged(t *testing.T) {
	b := NewBus(4)
	sub := b.Subscribe()
	sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := sub.Recv(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	b := NewBus(4)
	sub := b.Subscribe()
	sub.Close()
	require.NotPanics(t, func() { sub.Close() })
}

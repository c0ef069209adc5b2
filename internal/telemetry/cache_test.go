package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"meshctl/internal/envelope"
)

func TestCache_ReplayIsOldestFirstAndBounded(t *testing.T) {
	c := NewCache(2)
	c.Record(envelope.Telemetry{NodeId: 1, TimestampMs: 1})
	c.Record(envelope.Telemetry{NodeId: 2, TimestampMs: 2})
	c.Record(envelope.Telemetry{NodeId: 3, TimestampMs: 3})

	got := c.Replay()
	require.Len(t, got, 2)
	require.Equal(t, envelope.NodeId(2), got[0].NodeId)
	require.Equal(t, envelope.NodeId(3), got[1].NodeId)
}

func TestCache_EmptyReplayWhenNothingRecorded(t *testing.T) {
	c := NewCache(5)
	require.Empty(t, c.Replay())
}

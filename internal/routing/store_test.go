package routing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"meshctl/internal/envelope"
)

func TestStore_IngestAccumulatesAndSnapshotIsolatesCaller(t *testing.T) {
	s := NewStore()
	s.Ingest(envelope.SignalData{
		To:        n(10),
		IsGateway: true,
		Links:     []envelope.Link{{From: n(1), Rssi: -60, Snr: 10}},
	})

	adjacency, gateways := s.Snapshot()
	require.Contains(t, adjacency, n(10))
	require.Equal(t, []envelope.NodeId{n(10)}, gateways)

	// Mutating the snapshot must not affect the store's own state.
	adjacency[n(10)][n(1)] = 999

	adjacency2, _ := s.Snapshot()
	require.NotEqual(t, EdgeWeight(999), adjacency2[n(10)][n(1)])
}

func TestStore_ResetClearsPreviousRound(t *testing.T) {
	s := NewStore()
	s.Ingest(envelope.SignalData{To: n(10), IsGateway: true})
	s.Reset()

	adjacency, gateways := s.Snapshot()
	require.Empty(t, adjacency)
	require.Empty(t, gateways)
}

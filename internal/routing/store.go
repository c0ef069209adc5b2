package routing

import (
	"sync"

	"meshctl/internal/envelope"
)

// Store accumulates the link-quality graph from incoming SignalData
// reports between route-update rounds. It is reset at the start of
// each round so a stale gateway or link from a previous round never
// leaks into the next computation.
type Store struct {
	mu        sync.Mutex
	adjacency AdjacencyMap
	gateways  map[envelope.NodeId]struct{}
}

// NewStore creates an empty graph accumulator.
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset clears all accumulated links and gateway flags.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjacency = make(AdjacencyMap)
	s.gateways = make(map[envelope.NodeId]struct{})
}

// Ingest records one node's reported links and gateway status.
func (s *Store) Ingest(sd envelope.SignalData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.adjacency[sd.To]; !ok {
		s.adjacency[sd.To] = make(map[envelope.NodeId]EdgeWeight)
	}
	for _, link := range sd.Links {
		s.adjacency[sd.To][link.From] = ComputeEdgeWeight(link.Rssi, link.Snr)
	}

	if sd.IsGateway {
		s.gateways[sd.To] = struct{}{}
	}
}

// Snapshot returns the accumulated adjacency map and the set of nodes
// flagged as gateways so far.
func (s *Store) Snapshot() (AdjacencyMap, []envelope.NodeId) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adjacency := make(AdjacencyMap, len(s.adjacency))
	for to, from := range s.adjacency {
		inner := make(map[envelope.NodeId]EdgeWeight, len(from))
		for f, w := range from {
			inner[f] = w
		}
		adjacency[to] = inner
	}

	gateways := make([]envelope.NodeId, 0, len(s.gateways))
	for g := range s.gateways {
		gateways = append(gateways, g)
	}

	return adjacency, gateways
}

// Package routing implements the mesh's forwarding-table computation:
// an edge-weight function over raw radio-link samples, and a
// multi-source shortest-path procedure that turns a link-quality graph
// into a per-node next-hop table.
package routing

import (
	"math"

	"meshctl/internal/envelope"
)

// EdgeWeight is 32-bit floating point, monotone in "badness": lower is
// better. PositiveInfinity marks an unusable link.
type EdgeWeight = float32

// AdjacencyMap maps a receiving node to the weights of links it has
// observed from each transmitter. Non-symmetric by design.
type AdjacencyMap map[envelope.NodeId]map[envelope.NodeId]EdgeWeight

const (
	MinRSSI float64 = -120
	MaxRSSI float64 = 0
	MinSNR  float64 = -20.0
	MaxSNR  float64 = 30.0
	MaxHops float64 = 10
)

// minWeight and maxWeight bound the raw (-rssi - snr) value over the
// valid RSSI/SNR domain, used to proportionalize weights into [roughly]
// the same scale as a hop count.
var (
	minWeight = -MaxRSSI - MaxSNR // best-case raw weight
	maxWeight = -MinRSSI - MinSNR // worst-case raw weight
)

// ComputeEdgeWeight turns a raw (rssi, snr) observation into a weight on
// a scale comparable to hop counts. An SNR below MinSNR marks the link
// unusable (+Inf).
func ComputeEdgeWeight(rssi int32, snr float32) EdgeWeight {
	if float64(snr) < MinSNR {
		return float32(math.Inf(1))
	}

	raw := -float64(rssi) - float64(snr)
	normalized := raw / (maxWeight - minWeight) * MaxHops
	return float32(normalized)
}

// sanitize defends against NaN reaching the shortest-path procedure:
// edge weights must come out finite or +Inf, so a NaN (e.g. from a
// malformed upstream sample) is treated as unusable.
func sanitize(w EdgeWeight) EdgeWeight {
	if w != w { // NaN
		return float32(math.Inf(1))
	}
	return w
}

package routing

import (
	"math"
	"sort"

	"meshctl/internal/envelope"
)

// CostWeights are the live-mutable composite-cost coefficients from
// AppSettings.
type CostWeights struct {
	RouteCostWeight float64
	RouteHopsWeight float64
}

// entry is the per-vertex Dijkstra record: cumulative raw distance,
// composite cost used for ordering and relaxation decisions, the
// predecessor on the best path found so far, and hop count.
type entry struct {
	totalDistance float64
	totalCost     float64
	previous      *envelope.NodeId
	hopCount      int
}

func compositeCost(distance float64, hops int, w CostWeights) float64 {
	return distance*w.RouteCostWeight + float64(hops)*w.RouteHopsWeight
}

// allVertices collects every node id appearing anywhere in the
// adjacency map, as either a receiver (outer key) or a transmitter
// (inner key).
func allVertices(adjacency AdjacencyMap) map[envelope.NodeId]struct{} {
	vertices := make(map[envelope.NodeId]struct{})
	for to, from := range adjacency {
		vertices[to] = struct{}{}
		for f := range from {
			vertices[f] = struct{}{}
		}
	}
	return vertices
}

// dijkstraFromGateway runs the multi-source shortest-path relaxation
// with gateway as the sole source, excluding all other gateways from
// the working vertex set so paths never relay through a non-source
// gateway.
func dijkstraFromGateway(adjacency AdjacencyMap, gateways map[envelope.NodeId]struct{}, gateway envelope.NodeId, w CostWeights) map[envelope.NodeId]entry {
	vertices := allVertices(adjacency)

	working := make(map[envelope.NodeId]struct{})
	records := make(map[envelope.NodeId]entry, len(vertices))

	for v := range vertices {
		_, isGateway := gateways[v]
		if v != gateway && isGateway {
			continue
		}
		working[v] = struct{}{}

		if v == gateway {
			records[v] = entry{totalDistance: 0, totalCost: 0, hopCount: 0}
		} else {
			records[v] = entry{totalDistance: math.Inf(1), totalCost: math.Inf(1), hopCount: 0}
		}
	}

	for len(working) > 0 {
		u, ok := extractMin(working, records)
		if !ok {
			break
		}
		delete(working, u)

		uRecord := records[u]
		if math.IsInf(uRecord.totalCost, 1) {
			// Everything left in `working` is unreachable from here on.
			continue
		}

		for neighbour, rawWeight := range adjacency[u] {
			if _, stillWorking := working[neighbour]; !stillWorking {
				continue
			}

			weight := float64(sanitize(EdgeWeight(rawWeight)))
			newDistance := uRecord.totalDistance + weight
			newHops := uRecord.hopCount + 1
			newCost := compositeCost(newDistance, newHops, w)

			if newCost < records[neighbour].totalCost {
				un := u
				records[neighbour] = entry{
					totalDistance: newDistance,
					totalCost:     newCost,
					previous:      &un,
					hopCount:      newHops,
				}
			}
		}
	}

	return records
}

// extractMin returns the vertex in working with the smallest totalCost.
// Ties break arbitrarily; callers should not rely on a specific tie order.
func extractMin(working map[envelope.NodeId]struct{}, records map[envelope.NodeId]entry) (envelope.NodeId, bool) {
	var best envelope.NodeId
	bestCost := math.Inf(1)
	found := false

	for v := range working {
		c := records[v].totalCost
		if !found || c < bestCost {
			best, bestCost, found = v, c, true
		}
	}
	return best, found
}

// candidate keeps the parts of a gateway-relative Dijkstra record the
// next-hop table needs (predecessor and composite cost), so candidates
// from different gateways can be compared and deduplicated.
type candidate struct {
	previous  envelope.NodeId
	totalCost float64
}

// ComputeNextHops builds the forwarding table: for each non-gateway
// node, the distinct next-hop candidates toward any gateway, sorted
// ascending by composite cost. If any gateway id is missing from the
// adjacency map, it returns an empty map so the caller can retry once
// more signal data arrives.
func ComputeNextHops(adjacency AdjacencyMap, gatewayIDs []envelope.NodeId, w CostWeights) map[envelope.NodeId][]envelope.NodeId {
	gateways := make(map[envelope.NodeId]struct{}, len(gatewayIDs))
	for _, g := range gatewayIDs {
		gateways[g] = struct{}{}
	}

	for _, g := range gatewayIDs {
		if _, ok := adjacency[g]; !ok {
			return map[envelope.NodeId][]envelope.NodeId{}
		}
	}

	perNode := make(map[envelope.NodeId][]candidate)

	for _, gateway := range gatewayIDs {
		records := dijkstraFromGateway(adjacency, gateways, gateway, w)

		for node, rec := range records {
			if node == gateway || rec.previous == nil {
				continue
			}

			cand := candidate{previous: *rec.previous, totalCost: rec.totalCost}
			if !containsCandidate(perNode[node], cand) {
				perNode[node] = append(perNode[node], cand)
			}
		}
	}

	result := make(map[envelope.NodeId][]envelope.NodeId, len(perNode))
	for node, candidates := range perNode {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].totalCost < candidates[j].totalCost
		})

		hops := make([]envelope.NodeId, len(candidates))
		for i, c := range candidates {
			hops[i] = c.previous
		}
		result[node] = hops
	}

	return result
}

func containsCandidate(list []candidate, c candidate) bool {
	for _, existing := range list {
		if existing.previous == c.previous && existing.totalCost == c.totalCost {
			return true
		}
	}
	return false
}

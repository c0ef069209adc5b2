package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"meshctl/internal/envelope"
	"meshctl/internal/meshbus"
	"meshctl/internal/routing"
	"meshctl/internal/settings"
	"meshctl/internal/telemetry"
)

// handlers holds the orchestration state shared by the HTTP
// endpoints: the broker bridge, live settings, telemetry cache and
// accumulated link-quality graph, plus the route-update concurrency
// gate.
type handlers struct {
	deps Deps

	// updateGate is a 1-capacity channel used as a non-blocking
	// try-lock: a successful non-blocking send acquires it, a receive
	// releases it.
	updateGate chan struct{}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().Unix(),
		"goroutines": runtime.NumGoroutine(),
	})
}

// handleGetMeshSettings fetches the mesh's current MeshSettings over
// the broker and returns them as JSON.
func (h *handlers) handleGetMeshSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := h.deps.Settings.Snapshot()

	send := func() error {
		data, err := envelope.Encode(envelope.NewMeshSettingsRequest())
		if err != nil {
			return err
		}
		return h.deps.Bridge.Enqueue(data)
	}

	predicate := func(e envelope.Envelope) (envelope.MeshSettings, bool) {
		if e.Kind == envelope.KindMeshSettings && e.MeshSettings != nil {
			return *e.MeshSettings, true
		}
		return envelope.MeshSettings{}, false
	}

	result, err := meshbus.Await(r.Context(), h.deps.Bridge.Bus(), send, snap.GetSettingsTimeout, predicate)
	if err != nil {
		writeJSONError(w, http.StatusGatewayTimeout, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSetMeshSettings pushes a field-wise MeshSettings update to the
// mesh over the broker.
func (h *handlers) handleSetMeshSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var update envelope.MeshSettings
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	data, err := envelope.Encode(envelope.NewMeshSettings(update))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode mesh settings")
		return
	}

	if err := h.deps.Bridge.Enqueue(data); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// handleGetServerSettings returns the control plane's own tuning
// knobs.
func (h *handlers) handleGetServerSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Settings.Snapshot())
}

// handleSetServerSettings field-wise updates the control plane's own
// tuning knobs; an omitted field is left untouched.
func (h *handlers) handleSetServerSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		GetSettingsTimeoutS *float64 `json:"get_settings_timeout_s"`
		SignalDataTimeoutS  *float64 `json:"signal_data_timeout_s"`
		RouteCostWeight     *float64 `json:"route_cost_weight"`
		RouteHopsWeight     *float64 `json:"route_hops_weight"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	update := settings.Update{
		RouteCostWeight: body.RouteCostWeight,
		RouteHopsWeight: body.RouteHopsWeight,
	}
	if body.GetSettingsTimeoutS != nil {
		d := time.Duration(*body.GetSettingsTimeoutS * float64(time.Second))
		update.GetSettingsTimeout = &d
	}
	if body.SignalDataTimeoutS != nil {
		d := time.Duration(*body.SignalDataTimeoutS * float64(time.Second))
		update.SignalDataTimeout = &d
	}

	if err := h.deps.Settings.Apply(update); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Settings.Snapshot())
}

// handleUpdateRoutes orchestrates a full route-update round: acquire
// the non-blocking concurrency gate, ask the mesh to report signal
// data, gather it for the configured window, recompute the next-hop
// table, and push it back to the mesh.
func (h *handlers) handleUpdateRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	select {
	case h.updateGate <- struct{}{}:
	default:
		writeJSONError(w, http.StatusConflict, "Next hops update has already been requested by another client")
		return
	}
	defer func() { <-h.updateGate }()

	start := time.Now()
	snap := h.deps.Settings.Snapshot()

	h.deps.Adjacency.Reset()

	sub := h.deps.Bridge.Bus().Subscribe()
	defer sub.Close()

	data, err := envelope.Encode(envelope.NewUpdateNextHopsRequest())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode update request")
		return
	}
	if err := h.deps.Bridge.Enqueue(data); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), snap.SignalDataTimeout)
	defer cancel()

	for {
		payload, err := sub.Recv(ctx)
		if err != nil {
			break // window elapsed, subscription lagged, or closed: stop gathering
		}
		env, err := envelope.Decode(payload)
		if err != nil {
			continue
		}
		if env.Kind == envelope.KindSignalData && env.SignalData != nil {
			h.deps.Adjacency.Ingest(*env.SignalData)
		}
	}

	adjacency, gateways := h.deps.Adjacency.Snapshot()
	nextHops := routing.ComputeNextHops(adjacency, gateways, routing.CostWeights{
		RouteCostWeight: snap.RouteCostWeight,
		RouteHopsWeight: snap.RouteHopsWeight,
	})

	h.deps.Metrics.RouteRecomputed(len(nextHops) == 0, time.Since(start))

	out, err := envelope.Encode(envelope.NewNextHopsMap(nextHops))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode next-hops map")
		return
	}
	if err := h.deps.Bridge.Enqueue(out); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope.NextHopsMap{Entries: nextHops})
}

func (h *handlers) handleLiveTelemetry(w http.ResponseWriter, r *http.Request) {
	telemetry.Serve(w, r, h.deps.Cache, h.deps.Bridge.Bus(), h.deps.Metrics, h.deps.Logger)
}

func (h *handlers) handleAdHocTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req envelope.GetAdHocTelemetry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	snap := h.deps.Settings.Snapshot()

	send := func() error {
		data, err := envelope.Encode(envelope.NewGetAdHocTelemetry(req.NodeId))
		if err != nil {
			return err
		}
		return h.deps.Bridge.Enqueue(data)
	}

	predicate := func(e envelope.Envelope) (envelope.Telemetry, bool) {
		if e.Kind == envelope.KindTelemetry && e.Telemetry != nil && e.Telemetry.NodeId == req.NodeId {
			return *e.Telemetry, true
		}
		return envelope.Telemetry{}, false
	}

	result, err := meshbus.Await(r.Context(), h.deps.Bridge.Bus(), send, snap.GetSettingsTimeout, predicate)
	if err != nil {
		writeJSONError(w, http.StatusGatewayTimeout, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

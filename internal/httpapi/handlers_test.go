package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"meshctl/internal/envelope"
	"meshctl/internal/meshbus"
	"meshctl/internal/metrics"
	"meshctl/internal/routing"
	"meshctl/internal/settings"
	"meshctl/internal/telemetry"
)

// fakeBroker records enqueued payloads instead of sending them, and
// exposes a real Bus so tests can publish mesh-side responses directly.
type fakeBroker struct {
	bus      *meshbus.Bus
	enqueued [][]byte
	failEnqueue bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{bus: meshbus.NewBus(8)}
}

func (f *fakeBroker) Enqueue(data []byte) error {
	if f.failEnqueue {
		return errFixture("enqueue failed")
	}
	f.enqueued = append(f.enqueued, data)
	return nil
}

func (f *fakeBroker) Bus() *meshbus.Bus { return f.bus }

type errFixture string

func (e errFixture) Error() string { return string(e) }

func newTestHandlers(broker *fakeBroker) *handlers {
	return &handlers{
		deps: Deps{
			Bridge:    broker,
			Settings:  settings.New(50*time.Millisecond, time.Second, 1.0, 0.25),
			Cache:     telemetry.NewCache(10),
			Metrics:   metrics.New(),
			Logger:    zerolog.Nop(),
			Adjacency: routing.NewStore(),
		},
		updateGate: make(chan struct{}, 1),
	}
}

func TestHandleGetMeshSettings_TimesOutWith504(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)

	req := httptest.NewRequest(http.MethodGet, "/get-mesh-settings", nil)
	w := httptest.NewRecorder()

	h.handleGetMeshSettings(w, req)

	require.Equal(t, http.StatusGatewayTimeout, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(t, body["error"], "Timed out waiting for mesh response after")
}

func TestHandleGetMeshSettings_ReturnsMeshReply(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)

	go func() {
		time.Sleep(5 * time.Millisecond)
		interval := uint32(30)
		data, _ := envelope.Encode(envelope.NewMeshSettings(envelope.MeshSettings{BroadcastIntervalS: &interval}))
		broker.bus.Publish(data)
	}()

	req := httptest.NewRequest(http.MethodGet, "/get-mesh-settings", nil)
	w := httptest.NewRecorder()

	h.handleGetMeshSettings(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, broker.enqueued, 1)
}

func TestHandleSetMeshSettings_RejectsUnknownFields(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)

	body := bytes.NewBufferString(`{"not_a_real_field": 1}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/set-mesh-settings", body)
	w := httptest.NewRecorder()

	h.handleSetMeshSettings(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, broker.enqueued)
}

func TestHandleSetServerSettings_RoundTripsPartialUpdate(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)

	body := bytes.NewBufferString(`{"route_cost_weight": 3.5}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/set-server-settings", body)
	w := httptest.NewRecorder()

	h.handleSetServerSettings(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	snap := h.deps.Settings.Snapshot()
	require.Equal(t, 3.5, snap.RouteCostWeight)
	require.Equal(t, 0.25, snap.RouteHopsWeight) // untouched
}

func TestHandleSetServerSettings_RejectsInvalidUpdate(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)

	body := bytes.NewBufferString(`{"route_cost_weight": -1}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/set-server-settings", body)
	w := httptest.NewRecorder()

	h.handleSetServerSettings(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSetServerSettings_RejectsUnknownFields(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)

	body := bytes.NewBufferString(`{"not_a_real_field": 1}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/set-server-settings", body)
	w := httptest.NewRecorder()

	h.handleSetServerSettings(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetServerSettings_ReturnsSnapshot(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)

	req := httptest.NewRequest(http.MethodGet, "/get-server-settings", nil)
	w := httptest.NewRecorder()

	h.handleGetServerSettings(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleUpdateRoutes_RefusesConcurrentRequestsWith409(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)

	// Occupy the gate directly, as a concurrent in-flight round would.
	h.updateGate <- struct{}{}
	defer func() { <-h.updateGate }()

	req := httptest.NewRequest(http.MethodGet, "/admin/update-routes", nil)
	w := httptest.NewRecorder()

	h.handleUpdateRoutes(w, req)
	require.Equal(t, http.StatusConflict, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Next hops update has already been requested by another client", body["error"])
}

func TestHandleUpdateRoutes_ComputesAndPublishesNextHops(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)
	h.deps.Settings = settings.New(time.Second, 30*time.Millisecond, 1.0, 0.0)

	go func() {
		time.Sleep(5 * time.Millisecond)
		sd, _ := envelope.Encode(envelope.Envelope{
			Kind: envelope.KindSignalData,
			SignalData: &envelope.SignalData{
				To:        10,
				IsGateway: true,
				Links:     []envelope.Link{{From: 1, Rssi: -60, Snr: 10}},
			},
		})
		broker.bus.Publish(sd)
	}()

	req := httptest.NewRequest(http.MethodGet, "/admin/update-routes", nil)
	w := httptest.NewRecorder()

	h.handleUpdateRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var result envelope.NextHopsMap
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Equal(t, []envelope.NodeId{10}, result.Entries[1])

	require.Len(t, broker.enqueued, 2) // the update-next-hops request, then the computed map
}

func TestHandleUpdateRoutes_RejectsWrongMethod(t *testing.T) {
	broker := newFakeBroker()
	h := newTestHandlers(broker)

	req := httptest.NewRequest(http.MethodPost, "/admin/update-routes", nil)
	w := httptest.NewRecorder()

	h.handleUpdateRoutes(w, req)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"meshctl/internal/envelope"
	"meshctl/internal/meshbus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// sessionGauge is the subset of metrics.Metrics a session needs,
// kept narrow so this package doesn't import metrics directly.
type sessionGauge interface {
	LiveTelemetrySessionOpened()
	LiveTelemetrySessionClosed()
}

// Serve upgrades r to a websocket and runs a live-telemetry session:
// replay the cache, then follow the bus until the client disconnects
// or the bus drops it for lagging.
func Serve(w http.ResponseWriter, r *http.Request, cache *Cache, bus *meshbus.Bus, gauge sessionGauge, logger zerolog.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Str("component", "telemetry_session").Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	gauge.LiveTelemetrySessionOpened()
	defer gauge.LiveTelemetrySessionClosed()

	sub := bus.Subscribe()
	defer sub.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client reads on their own goroutine purely to notice
	// disconnects and respond to pings; this session never accepts
	// client-initiated commands over the socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := writeCache(conn, cache.Replay()); err != nil {
		return
	}

	busErr := make(chan error, 1)
	busMsg := make(chan []byte)
	go func() {
		for {
			data, err := sub.Recv(ctx)
			if err != nil {
				busErr <- err
				return
			}
			select {
			case busMsg <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-busErr:
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case data := <-busMsg:
			env, err := envelope.Decode(data)
			if err != nil {
				if err := writeError(conn, "malformed mesh payload"); err != nil {
					return
				}
				continue
			}

			if env.Kind != envelope.KindTelemetry || env.Telemetry == nil {
				continue
			}

			cache.Record(*env.Telemetry)
			if err := writeTelemetry(conn, *env.Telemetry); err != nil {
				return
			}
		}
	}
}

func writeTelemetry(conn *websocket.Conn, t envelope.Telemetry) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(struct {
		Telemetry envelope.Telemetry `json:"telemetry"`
	}{Telemetry: t})
}

func writeCache(conn *websocket.Conn, cached []envelope.Telemetry) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(struct {
		Cache []envelope.Telemetry `json:"cache"`
	}{Cache: cached})
}

func writeError(conn *websocket.Conn, message string) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(struct {
		Error string `json:"error"`
	}{Error: message})
}

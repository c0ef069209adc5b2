// Package telemetry serves live mesh telemetry to websocket clients: a
// bounded replay cache backing new live sessions, and the websocket
// session itself.
package telemetry

import (
	"meshctl/internal/envelope"
	"meshctl/internal/ringbuffer"
)

// Cache retains the most recent telemetry reports for replay to a
// live-telemetry session on connect.
type Cache struct {
	buf *ringbuffer.RingBuffer[envelope.Telemetry]
}

// NewCache creates a cache retaining up to capacity reports.
func NewCache(capacity int) *Cache {
	return &Cache{buf: ringbuffer.New[envelope.Telemetry](capacity)}
}

// Record stores a telemetry report, evicting the oldest once full.
func (c *Cache) Record(t envelope.Telemetry) {
	c.buf.Write(t)
}

// Replay returns cached reports oldest-first.
func (c *Cache) Replay() []envelope.Telemetry {
	return c.buf.Snapshot()
}

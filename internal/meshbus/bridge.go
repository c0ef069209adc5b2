// Bridge owns the connection to the mesh's message broker: a sink
// worker drains an outbound queue and publishes to the mesh, and a
// source worker pulls inbound mesh traffic and fans it out over a Bus
// for the rest of the control plane to consume.
//
// The sink worker logs and continues on a publish failure rather than
// retrying the same message, and the source worker backs off
// sourceRetryBackoff on a poll error and retries forever, never
// exiting on its own.
package meshbus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"meshctl/internal/config"
	"meshctl/internal/metrics"
)

// sourceRetryBackoff mirrors the fixed 3-second retry delay confirmed
// in the original subscriber loop.
const sourceRetryBackoff = 3 * time.Second

const jetStreamDurableName = "meshctl-bridge"

// Bridge is the broker-facing half of the control plane.
type Bridge struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics

	conn *nats.Conn
	js   nats.JetStreamContext

	outbound chan []byte
	bus      *Bus
}

// NewBridge connects to the broker and prepares the outbound queue and
// inbound fan-out bus. It does not start the worker goroutines; call
// Start for that.
func NewBridge(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*Bridge, error) {
	opts := []nats.Option{
		nats.Name("meshctl"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ConnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("connected to broker")
			m.SetBrokerConnected(true)
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("disconnected from broker")
			m.SetBrokerConnected(false)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("reconnected to broker")
			m.SetBrokerConnected(true)
		}),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("broker error")
		}),
	}
	if cfg.BrokerUsername != "" {
		opts = append(opts, nats.UserInfo(cfg.BrokerUsername, cfg.BrokerPassword))
	}

	conn, err := nats.Connect(cfg.BrokerURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init jetstream context: %w", err)
	}

	m.SetBrokerConnected(true)

	return &Bridge{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		conn:     conn,
		js:       js,
		outbound: make(chan []byte, cfg.OutboundQueueCapacity),
		bus:      NewBus(cfg.BusCapacity),
	}, nil
}

// Bus exposes the inbound fan-out bus for subscribers.
func (b *Bridge) Bus() *Bus { return b.bus }

// Enqueue queues data for delivery to the mesh. It never blocks: a
// full queue is reported as an error rather than applying backpressure
// to the caller.
func (b *Bridge) Enqueue(data []byte) error {
	select {
	case b.outbound <- data:
		return nil
	default:
		return fmt.Errorf("meshbus: outbound queue full (capacity %d)", b.cfg.OutboundQueueCapacity)
	}
}

// Start launches the sink and source workers. Both run until ctx is
// done.
func (b *Bridge) Start(ctx context.Context) {
	go b.sinkWorker(ctx)
	go b.sourceWorker(ctx)
}

// Close releases the broker connection. Call after Start's context has
// been cancelled.
func (b *Bridge) Close() {
	b.conn.Drain()
}

func (b *Bridge) sinkWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-b.outbound:
			if err := b.publish(data); err != nil {
				b.logger.Error().Err(err).Str("component", "meshbus_sink").Msg("publish to mesh failed")
				b.metrics.BrokerPublishFailed(string(b.cfg.BrokerQoS))
			} else {
				b.metrics.BrokerPublished(string(b.cfg.BrokerQoS))
			}
		}
	}
}

func (b *Bridge) publish(data []byte) error {
	switch b.cfg.BrokerQoS {
	case config.QoSAtMostOnce:
		return b.conn.Publish(b.cfg.BrokerOutTopic, data)
	default:
		msg := &nats.Msg{
			Subject: b.cfg.BrokerOutTopic,
			Data:    data,
			Header:  nats.Header{},
		}
		if b.cfg.BrokerQoS == config.QoSExactlyOnce {
			msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
		}
		_, err := b.js.PublishMsg(msg)
		return err
	}
}

// sourceWorker pulls inbound mesh traffic and republishes it on the
// in-process bus. On any read failure it waits sourceRetryBackoff and
// tries again; it only returns when ctx is cancelled.
func (b *Bridge) sourceWorker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := b.consumeOnce(ctx); err != nil {
			b.logger.Error().Err(err).Str("component", "meshbus_source").Msg("inbound subscription failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(sourceRetryBackoff):
			}
		}
	}
}

// consumeOnce establishes the inbound subscription for the configured
// QoS and forwards messages to the bus until an error occurs or ctx is
// cancelled.
func (b *Bridge) consumeOnce(ctx context.Context) error {
	if b.cfg.BrokerQoS == config.QoSAtMostOnce {
		return b.consumeCore(ctx)
	}
	return b.consumeJetStream(ctx)
}

func (b *Bridge) consumeCore(ctx context.Context) error {
	msgs := make(chan *nats.Msg, b.cfg.BusCapacity)
	sub, err := b.conn.ChanSubscribe(b.cfg.BrokerInTopic, msgs)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.cfg.BrokerInTopic, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			b.bus.Publish(msg.Data)
			b.metrics.BrokerConsumed()
		}
	}
}

func (b *Bridge) consumeJetStream(ctx context.Context) error {
	sub, err := b.js.PullSubscribe(b.cfg.BrokerInTopic, jetStreamDurableName, nats.ManualAck())
	if err != nil {
		return fmt.Errorf("pull-subscribe to %s: %w", b.cfg.BrokerInTopic, err)
	}
	defer sub.Unsubscribe()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(1*time.Second))
		if err != nil {
			if err == nats.ErrTimeout {
				continue
			}
			return fmt.Errorf("fetch from %s: %w", b.cfg.BrokerInTopic, err)
		}

		for _, msg := range msgs {
			b.bus.Publish(msg.Data)
			b.metrics.BrokerConsumed()
			if err := msg.Ack(); err != nil {
				b.logger.Warn().Err(err).Str("component", "meshbus_source").Msg("ack failed")
			}
		}
	}
}

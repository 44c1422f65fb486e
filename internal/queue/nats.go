package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/nats-io/nats.go"

	"github.com/smukkama/drone-defense/internal/protocol"
)

// NATSPublisher publishes alerts to a NATS subject.
type NATSPublisher struct {
	mu      sync.Mutex
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher creates a publisher for subject. Call Connect before use.
func NewNATSPublisher(subject string) *NATSPublisher {
	return &NATSPublisher{subject: subject}
}

// Connect dials the NATS server with automatic reconnects.
func (p *NATSPublisher) Connect(url string) error {
	opts := []nats.Option{
		nats.Name("drone-defense-monitor"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("nats connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	log.WithField("url", url).Info("nats connected")
	return nil
}

// Name identifies the publisher in logs.
func (p *NATSPublisher) Name() string {
	return "nats:" + p.subject
}

// PublishAlert encodes and publishes an alert. A publisher that never
// connected is a no-op.
func (p *NATSPublisher) PublishAlert(_ context.Context, alert *protocol.AlertNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}

	data, err := protocol.EncodeAlertNotification(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn = nil
	return err
}

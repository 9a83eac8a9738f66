package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"microgrid/internal/config"
	"microgrid/internal/types"
)

// NATSPublisher is the subset of *nats.Conn used by NATSSink.
type NATSPublisher interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSSink publishes each tick as JSON on a single subject.
type NATSSink struct {
	conn    NATSPublisher
	subject string
}

// ConnectNATS dials the broker with the configured reconnect policy.
func ConnectNATS(cfg config.NATSConfig, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNATSSink creates a sink on subject.
func NewNATSSink(conn NATSPublisher, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

// Name implements Sink.
func (s *NATSSink) Name() string { return "nats" }

// Publish sends res. The client buffers while reconnecting, so this only
// fails when the connection is closed or the buffer is full.
func (s *NATSSink) Publish(_ context.Context, res types.DispatchResult) error {
	msg, err := encodeTick(res)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", s.subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}

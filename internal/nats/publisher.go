package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"typesense-sync/internal/models"
)

// Conn is the part of a NATS connection the publisher uses
type Conn interface {
	Publish(subj string, data []byte) error
	Close()
}

// Publisher publishes applied sync operations to NATS
type Publisher struct {
	conn    Conn
	subject string
	logger  *logrus.Logger
}

// NewPublisher creates a new NATS publisher
func NewPublisher(url, subject string, maxReconnect int, reconnectWait time.Duration, logger *logrus.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("typesense-sync"),
		nats.MaxReconnects(maxReconnect),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Warn("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Infof("Connected to NATS at %s", url)

	return NewPublisherWithConn(conn, subject, logger), nil
}

// NewPublisherWithConn wraps an existing connection
func NewPublisherWithConn(conn Conn, subject string, logger *logrus.Logger) *Publisher {
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}
}

// Subject returns the subject an operation is published on, e.g.
// typesense.sync.blog-abc123.upsert
func (p *Publisher) Subject(op *models.SyncOperation) string {
	return fmt.Sprintf("%s.%s.%s", p.subject, op.Collection, op.Action)
}

// Notify publishes an applied sync operation
func (p *Publisher) Notify(op *models.SyncOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal sync operation: %w", err)
	}

	subject := p.Subject(op)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}

	p.logger.Debugf("Published %s of %s to %s", op.Action, op.DocumentID, subject)
	return nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

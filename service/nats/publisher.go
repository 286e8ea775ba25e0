package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/mintwatch/service/metrics"
	"github.com/brojonat/mintwatch/service/stream"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject prefix used when none is configured.
const DefaultSubjectPrefix = "buys"

// Publisher fans buy events out to subscribers.
type Publisher interface {
	// PublishEvents publishes each event to the subject "{prefix}.{mint}".
	PublishEvents(ctx context.Context, events []stream.BuyEvent) error

	// Close drains and closes the connection to NATS.
	Close() error
}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// CorePublisher publishes buy events with core NATS. Messages are fire and
// forget: subscribers that are not connected miss them.
type CorePublisher struct {
	nc      conn
	prefix  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Subject returns the subject events for mint are published on.
func Subject(prefix, mint string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, mint)
}

// NewPublisher connects to NATS and returns a publisher.
// If metrics is nil, no metrics will be recorded.
func NewPublisher(natsURL, prefix string, m *metrics.Metrics, logger *slog.Logger) (*CorePublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("mintwatch-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"subject", Subject(prefix, "*"),
	)

	return newPublisher(nc, prefix, m, logger), nil
}

func newPublisher(nc conn, prefix string, m *metrics.Metrics, logger *slog.Logger) *CorePublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &CorePublisher{
		nc:      nc,
		prefix:  prefix,
		logger:  logger,
		metrics: m,
	}
}

// PublishEvents publishes every event, continuing past individual failures.
// It returns the first error encountered, if any.
func (p *CorePublisher) PublishEvents(ctx context.Context, events []stream.BuyEvent) error {
	var firstErr error
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "failed to publish buy event",
				"transaction_id", event.TransactionID,
				"account", event.Account,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *CorePublisher) publish(ctx context.Context, event stream.BuyEvent) error {
	subject := Subject(p.prefix, event.Mint)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal buy event: %w", err)
	}

	start := time.Now()
	err = p.nc.Publish(subject, data)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.DebugContext(ctx, "published buy event",
		"subject", subject,
		"transaction_id", event.TransactionID,
	)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *CorePublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	p.logger.Info("NATS publisher closed")
	return nil
}

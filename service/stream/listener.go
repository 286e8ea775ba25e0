package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/brojonat/mintwatch/service/metrics"
	"github.com/jpillora/backoff"
)

// ErrTransport marks a failure of the stream connection itself: dial errors,
// failed registration writes, and read errors on an open connection.
var ErrTransport = errors.New("stream transport failure")

// BatchHandler receives each decoded record batch in delivery order.
// It runs on the listener's read loop, so the next batch is not read until it returns.
type BatchHandler func(ctx context.Context, records []TransactionChangeRecord)

// State is the connection state of a Listener.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ListenerConfig configures a Listener. SubscriptionID must refer to an
// already created subscription; the listener never creates or deletes one.
type ListenerConfig struct {
	URL            string
	APIKey         string
	SubscriptionID string

	// Delay bounds between connection attempts. The delay grows
	// exponentially with jitter while attempts keep failing and drops back
	// to ReconnectMin after every successful registration.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// subscribeRequest binds a connection to an existing subscription.
type subscribeRequest struct {
	Action         string `json:"action"`
	APIKey         string `json:"apiKey"`
	SubscriptionID string `json:"subscriptionId"`
}

// Listener keeps a stream connection alive for one subscription and feeds
// decoded batches to a BatchHandler. Delivery is at-most-once per
// connection: records sent while disconnected are lost.
type Listener struct {
	cfg     ListenerConfig
	dialer  Dialer
	handler BatchHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
	state   atomic.Int32
}

// NewListener creates a listener. Zero reconnect bounds default to 250ms and 30s.
// If metrics is nil, no metrics will be recorded.
func NewListener(cfg ListenerConfig, dialer Dialer, handler BatchHandler, m *metrics.Metrics, logger *slog.Logger) *Listener {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 250 * time.Millisecond
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = max(30*time.Second, cfg.ReconnectMin)
	}
	return &Listener{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		logger:  logger,
		metrics: m,
	}
}

// State returns the current connection state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

func (l *Listener) setState(s State) {
	l.state.Store(int32(s))
}

// Run connects and reconnects until ctx is done, which is the only way it
// returns. Transport and decode failures are logged and never surfaced.
//
// A connection that stayed registered for at least ReconnectMin is replaced
// immediately when it closes. Failed attempts and connections that drop
// sooner back off.
func (l *Listener) Run(ctx context.Context) error {
	b := &backoff.Backoff{
		Min:    l.cfg.ReconnectMin,
		Max:    l.cfg.ReconnectMax,
		Factor: 2,
		Jitter: true,
	}

	for {
		l.setState(StateConnecting)
		registered, uptime := l.connectAndServe(ctx)
		l.setState(StateClosed)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if registered {
			if l.metrics != nil {
				l.metrics.RecordReconnect()
			}
			if uptime >= l.cfg.ReconnectMin {
				b.Reset()
				l.logger.InfoContext(ctx, "reconnecting to stream",
					"subscription_id", l.cfg.SubscriptionID,
					"uptime", uptime,
				)
				continue
			}
		}

		wait := b.Duration()
		l.logger.InfoContext(ctx, "reconnecting to stream",
			"subscription_id", l.cfg.SubscriptionID,
			"attempt", int(b.Attempt()),
			"wait", wait,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// connectAndServe runs one connection from dial to close. It reports whether
// the connection got as far as sending the registration message and, if so,
// how long it stayed open afterwards.
func (l *Listener) connectAndServe(ctx context.Context) (bool, time.Duration) {
	conn, err := l.dialer.Dial(ctx, l.cfg.URL)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.WarnContext(ctx, "failed to dial stream",
				"url", l.cfg.URL,
				"error", fmt.Errorf("%w: %w", ErrTransport, err),
			)
		}
		l.recordAttempt("dial_error")
		return false, 0
	}
	defer conn.Close()

	// Unblock ReadMessage when the process is shutting down.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Routing on the server is per connection, so every new connection
	// registers again.
	err = conn.WriteJSON(subscribeRequest{
		Action:         "subscribe",
		APIKey:         l.cfg.APIKey,
		SubscriptionID: l.cfg.SubscriptionID,
	})
	if err != nil {
		l.logger.WarnContext(ctx, "failed to register subscription on stream",
			"subscription_id", l.cfg.SubscriptionID,
			"error", fmt.Errorf("%w: %w", ErrTransport, err),
		)
		l.recordAttempt("register_error")
		return false, 0
	}

	l.recordAttempt("success")
	l.setState(StateOpen)
	openedAt := time.Now()
	if l.metrics != nil {
		l.metrics.SetConnected(true)
		defer l.metrics.SetConnected(false)
	}
	l.logger.InfoContext(ctx, "stream connection open",
		"url", l.cfg.URL,
		"subscription_id", l.cfg.SubscriptionID,
	)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				l.logger.WarnContext(ctx, "stream connection closed",
					"subscription_id", l.cfg.SubscriptionID,
					"error", fmt.Errorf("%w: %w", ErrTransport, err),
				)
			}
			return true, time.Since(openedAt)
		}
		l.dispatch(ctx, payload)
	}
}

// dispatch decodes one payload and forwards record batches to the handler.
func (l *Listener) dispatch(ctx context.Context, payload []byte) {
	msg := Decode(payload)
	if l.metrics != nil {
		l.metrics.RecordMessage(msg.Kind.String())
	}

	switch msg.Kind {
	case Acknowledgment:
		l.logger.DebugContext(ctx, "subscription acknowledged",
			"subscription_id", l.cfg.SubscriptionID,
		)
	case RecordBatch:
		if l.metrics != nil {
			l.metrics.RecordRecords(len(msg.Records))
		}
		l.handler(ctx, msg.Records)
	default:
		l.logger.WarnContext(ctx, "skipping malformed stream message",
			"bytes", len(payload),
			"error", msg.Err,
		)
	}
}

func (l *Listener) recordAttempt(status string) {
	if l.metrics != nil {
		l.metrics.RecordConnectAttempt(status)
	}
}

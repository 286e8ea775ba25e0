package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brojonat/mintwatch/service/stream"
)

// Broadcaster fans buy events out to in-process subscribers such as SSE
// clients. Publishing never blocks: a subscriber whose buffer is full misses
// the event.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[chan stream.BuyEvent]struct{}
	bufSize int
	logger  *slog.Logger
}

// NewBroadcaster creates a broadcaster whose subscribers buffer up to
// bufSize events.
func NewBroadcaster(bufSize int, logger *slog.Logger) *Broadcaster {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Broadcaster{
		subs:    make(map[chan stream.BuyEvent]struct{}),
		bufSize: bufSize,
		logger:  logger,
	}
}

// Subscribe registers a new subscriber. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan stream.BuyEvent, func()) {
	ch := make(chan stream.BuyEvent, b.bufSize)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// PublishEvents delivers events to every current subscriber.
func (b *Broadcaster) PublishEvents(ctx context.Context, events []stream.BuyEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		for _, event := range events {
			select {
			case ch <- event:
			default:
				b.logger.WarnContext(ctx, "dropping buy event for slow subscriber",
					"transaction_id", event.TransactionID,
				)
			}
		}
	}
	return nil
}

// Close unsubscribes everyone.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

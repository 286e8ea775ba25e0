package nats

import (
	"context"
	"sync"

	"github.com/brojonat/mintwatch/service/stream"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []stream.BuyEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishEvents records the events and returns any configured error.
func (m *MockPublisher) PublishEvents(ctx context.Context, events []stream.BuyEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, events...)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns a copy of all published events.
func (m *MockPublisher) GetPublishedEvents() []stream.BuyEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]stream.BuyEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventsForMint returns events published for a specific mint.
func (m *MockPublisher) GetPublishedEventsForMint(mint string) []stream.BuyEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []stream.BuyEvent
	for _, event := range m.publishedEvents {
		if event.Mint == mint {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on PublishEvents.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

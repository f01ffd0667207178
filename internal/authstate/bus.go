package authstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/id"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
)

// EventType names an auth-state change.
type EventType string

const (
	EventSignedIn  EventType = "auth.signed_in"
	EventSignedOut EventType = "auth.signed_out"
)

// Event is an auth-state change notification. For SignedOut, User is the
// user that was signed in before, if known.
type Event struct {
	Type     EventType
	User     *domain.User
	AuthType AuthType
}

// SignedIn returns the event published when user signs in.
func SignedIn(user *domain.User, authType AuthType) Event {
	return Event{Type: EventSignedIn, User: user, AuthType: authType}
}

// SignedOut returns the event published when user signs out.
func SignedOut(user *domain.User) Event {
	return Event{Type: EventSignedOut, User: user}
}

// Subscription receives events from a Bus until it is unsubscribed or the
// bus shuts down, at which point C is closed.
type Subscription struct {
	ID string
	C  <-chan Event

	ch chan Event
}

// Bus fans auth events out to subscribers.
type Bus struct {
	subs    map[string]*Subscription
	events  chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
	mu      sync.RWMutex

	// Shutdown state - protected by shutdownMu
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewBus creates a bus. Call Start to begin delivery.
func NewBus(logger *slog.Logger, m *metrics.Metrics) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:    make(map[string]*Subscription),
		events:  make(chan Event, 64),
		logger:  logger,
		metrics: m,
	}
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() (*Subscription, error) {
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}
	ch := make(chan Event, 16)
	sub := &Subscription{ID: subID, C: ch, ch: ch}

	b.mu.Lock()
	b.subs[subID] = sub
	b.mu.Unlock()
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	sub, ok := b.subs[subID]
	if ok {
		delete(b.subs, subID)
	}
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish queues an event for delivery. Events published after Shutdown are
// dropped.
func (b *Bus) Publish(event Event) {
	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()

	if b.shutdown {
		return
	}
	b.metrics.AuthEvent(string(event.Type))

	select {
	case b.events <- event:
	default:
		b.logger.Error("auth event channel full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}

// Start runs the delivery loop until ctx is done or the bus shuts down.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	defer b.wg.Done()

	for {
		select {
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops accepting events, delivers the ones already queued and
// closes every subscription.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.shutdownMu.Lock()
	if b.shutdown {
		b.shutdownMu.Unlock()
		return nil
	}
	b.shutdown = true
	close(b.events)
	b.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range b.events {
			b.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("auth event drain timeout, some events may be lost")
	}
	b.wg.Wait()

	b.mu.Lock()
	for subID, sub := range b.subs {
		delete(b.subs, subID)
		close(sub.ch)
	}
	b.mu.Unlock()
	return nil
}

// broadcast delivers event to every subscriber without blocking.
func (b *Bus) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("dropped auth event for slow subscriber",
				slog.String("subscription_id", sub.ID),
				slog.String("event_type", string(event.Type)))
		}
	}
}

package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/clinvera/regflow/internal/domain/event"
)

// Handler processes lifecycle events. Errors returned by a handler are
// logged at the bus boundary and never propagated to the publisher or to
// other subscribers.
type Handler func(ctx context.Context, evt *event.Event) error

// Subscription is the opaque handle returned by Subscribe and consumed by
// Unsubscribe. A workflow-scoped subscription only filters dispatch; it does
// not own the workflow, and deleting the workflow simply means no further
// events for it will fire.
type Subscription struct {
	ID         string
	EventType  event.Type
	WorkflowID string // empty means global scope

	handler Handler
	ch      chan *event.Event
	done    chan struct{}
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventBus distributes workflow- and task-level lifecycle events to
// subscribers
type EventBus interface {
	// Subscribe registers a global handler for an event type
	Subscribe(eventType event.Type, handler Handler) *Subscription

	// SubscribeWorkflow registers a handler scoped to one workflow id
	SubscribeWorkflow(eventType event.Type, workflowID string, handler Handler) *Subscription

	// Unsubscribe removes a subscription; a nil or already-removed
	// subscription is a no-op
	Unsubscribe(sub *Subscription)

	// Publish enqueues the event for every matching subscriber and returns
	// without waiting for handler execution. Each subscriber drains its own
	// queue sequentially, so one subscriber observes events for a workflow
	// in publish order. Delivery is best-effort: when a subscriber's queue
	// is full the event is dropped for that subscriber and logged, so a slow
	// subscriber may see gaps in the order rather than stalling publishers.
	Publish(ctx context.Context, evt *event.Event)

	// Close stops delivery and waits for in-flight handlers to finish
	Close() error
}

// eventBus is the concrete implementation of EventBus
type eventBus struct {
	mu     sync.RWMutex
	subs   map[event.Type]map[string]*Subscription
	logger Logger

	bufferSize int
	wg         sync.WaitGroup
	closed     atomic.Bool
}

// Option configures the bus
type Option func(*eventBus)

// WithLogger sets a logger for the bus
func WithLogger(logger Logger) Option {
	return func(b *eventBus) {
		b.logger = logger
	}
}

// WithBufferSize sets the per-subscriber queue capacity
func WithBufferSize(n int) Option {
	return func(b *eventBus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// NewEventBus creates a new event bus
func NewEventBus(opts ...Option) EventBus {
	b := &eventBus{
		subs:       make(map[event.Type]map[string]*Subscription),
		bufferSize: 128,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers a global handler for an event type
func (b *eventBus) Subscribe(eventType event.Type, handler Handler) *Subscription {
	return b.add(eventType, "", handler)
}

// SubscribeWorkflow registers a handler scoped to one workflow id
func (b *eventBus) SubscribeWorkflow(eventType event.Type, workflowID string, handler Handler) *Subscription {
	return b.add(eventType, workflowID, handler)
}

func (b *eventBus) add(eventType event.Type, workflowID string, handler Handler) *Subscription {
	sub := &Subscription{
		ID:         uuid.NewString(),
		EventType:  eventType,
		WorkflowID: workflowID,
		handler:    handler,
		ch:         make(chan *event.Event, b.bufferSize),
		done:       make(chan struct{}),
	}

	b.mu.Lock()
	byID, ok := b.subs[eventType]
	if !ok {
		byID = make(map[string]*Subscription)
		b.subs[eventType] = byID
	}
	byID[sub.ID] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go b.deliver(sub)

	if b.logger != nil {
		b.logger.Info("Subscriber registered",
			"event_type", eventType,
			"subscription_id", sub.ID,
			"workflow_id", workflowID,
		)
	}

	return sub
}

// Unsubscribe removes a subscription
func (b *eventBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	byID, ok := b.subs[sub.EventType]
	if ok {
		if _, present := byID[sub.ID]; present {
			delete(byID, sub.ID)
			close(sub.done)
		}
	}
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Info("Subscriber removed",
			"event_type", sub.EventType,
			"subscription_id", sub.ID,
		)
	}
}

// Publish enqueues the event for every matching subscriber
func (b *eventBus) Publish(ctx context.Context, evt *event.Event) {
	if b.closed.Load() {
		if b.logger != nil {
			b.logger.Error("Cannot publish event, bus is closed",
				"event_type", evt.Type,
				"event_id", evt.ID,
			)
		}
		return
	}

	b.mu.RLock()
	matched := make([]*Subscription, 0, len(b.subs[evt.Type]))
	for _, sub := range b.subs[evt.Type] {
		if sub.WorkflowID == "" || sub.WorkflowID == evt.WorkflowID {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		select {
		case sub.ch <- evt:
		default:
			// A stuck subscriber must not block the mutating caller
			if b.logger != nil {
				b.logger.Error("Subscriber queue full, dropping event",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"subscription_id", sub.ID,
				)
			}
		}
	}
}

// Close stops delivery and waits for in-flight handlers to finish
func (b *eventBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("event bus already closed")
	}

	b.mu.Lock()
	for _, byID := range b.subs {
		for id, sub := range byID {
			delete(byID, id)
			close(sub.done)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()

	if b.logger != nil {
		b.logger.Info("Event bus closed")
	}

	return nil
}

// deliver drains one subscriber's queue sequentially
func (b *eventBus) deliver(sub *Subscription) {
	defer b.wg.Done()

	for {
		select {
		case evt := <-sub.ch:
			b.safeExecute(sub, evt)
		case <-sub.done:
			// Drain anything enqueued before removal
			for {
				select {
				case evt := <-sub.ch:
					b.safeExecute(sub, evt)
				default:
					return
				}
			}
		}
	}
}

// safeExecute runs a handler with panic recovery; failures are logged, never
// propagated
func (b *eventBus) safeExecute(sub *Subscription, evt *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Error("Subscriber panic recovered",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"subscription_id", sub.ID,
					"panic", r,
				)
			}
		}
	}()

	if err := sub.handler(context.Background(), evt); err != nil {
		if b.logger != nil {
			b.logger.Error("Subscriber error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"subscription_id", sub.ID,
				"error", err,
			)
		}
	}
}

// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ecf-service/internal/model"
)

const (
	busBuffer        = 1000
	subscriberBuffer = 100
)

// EventBus fans device events out to subscribers. It implements
// service.EventPublisher.
type EventBus struct {
	subscribers map[*Subscription]struct{}
	events      chan model.DeviceEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// Subscription receives the events of the types it was created for, or
// every event when created without types.
type Subscription struct {
	C     <-chan model.DeviceEvent
	ch    chan model.DeviceEvent
	types map[model.EventType]bool
	bus   *EventBus
	once  sync.Once
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[*Subscription]struct{}),
		events:      make(chan model.DeviceEvent, busBuffer),
		logger:      logger.With(zap.String("component", "event_bus")),
	}
}

// Run distributes events until ctx is done, then closes every
// subscription.
func (eb *EventBus) Run(ctx context.Context) error {
	defer eb.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-eb.events:
			eb.distribute(event)
		}
	}
}

// Publish queues an event. It never blocks; events are dropped when the
// queue is full.
func (eb *EventBus) Publish(event model.DeviceEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
			zap.String("device_id", event.DeviceID.String()),
		)
	}
}

// Subscribe registers a subscriber for the given event types.
func (eb *EventBus) Subscribe(types ...model.EventType) *Subscription {
	ch := make(chan model.DeviceEvent, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, bus: eb}
	if len(types) > 0 {
		sub.types = make(map[model.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	eb.mutex.Lock()
	eb.subscribers[sub] = struct{}{}
	eb.mutex.Unlock()
	return sub
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mutex.Lock()
	defer s.bus.mutex.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		delete(s.bus.subscribers, s)
		close(s.ch)
	})
}

func (s *Subscription) wants(t model.EventType) bool {
	return s.types == nil || s.types[t]
}

// Subscribers returns the number of live subscriptions.
func (eb *EventBus) Subscribers() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

func (eb *EventBus) distribute(event model.DeviceEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for sub := range eb.subscribers {
		if !sub.wants(event.EventType) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// slow subscriber
			eb.logger.Debug("Subscriber full, event skipped", zap.String("event_type", string(event.EventType)))
		}
	}
}

func (eb *EventBus) closeAll() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	for sub := range eb.subscribers {
		sub.closeLocked()
	}
}

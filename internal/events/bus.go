package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventScanStarted    EventType = "SCAN_STARTED"
	EventScanCompleted  EventType = "SCAN_COMPLETED"
	EventScanSkipped    EventType = "SCAN_SKIPPED"
	EventSnapshotReady  EventType = "SNAPSHOT_READY"
	EventEarlyMomentum  EventType = "EARLY_MOMENTUM"
	EventTradeReady     EventType = "TRADE_READY"
	EventCandidateError EventType = "CANDIDATE_ERROR"
	EventError          EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishScanStarted publishes the start of a scan run
func (eb *EventBus) PublishScanStarted(runID string) {
	eb.Publish(Event{
		Type: EventScanStarted,
		Data: map[string]interface{}{
			"run_id": runID,
		},
	})
}

// PublishScanCompleted publishes the summary of a finished scan run
func (eb *EventBus) PublishScanCompleted(runID string, candidates, earlyMomentum, tradeReady int, duration time.Duration) {
	eb.Publish(Event{
		Type: EventScanCompleted,
		Data: map[string]interface{}{
			"run_id":         runID,
			"candidates":     candidates,
			"early_momentum": earlyMomentum,
			"trade_ready":    tradeReady,
			"duration_ms":    duration.Milliseconds(),
		},
	})
}

// PublishScanSkipped publishes a run that never started, with the reason
func (eb *EventBus) PublishScanSkipped(reason string) {
	eb.Publish(Event{
		Type: EventScanSkipped,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishTradeReady publishes a confirmed breakout setup
func (eb *EventBus) PublishTradeReady(runID, symbol string, entry, stop, target, rsi float64) {
	eb.Publish(Event{
		Type: EventTradeReady,
		Data: map[string]interface{}{
			"run_id": runID,
			"symbol": symbol,
			"entry":  entry,
			"stop":   stop,
			"target": target,
			"rsi":    rsi,
		},
	})
}

// PublishEarlyMomentum publishes a candidate building toward a setup
func (eb *EventBus) PublishEarlyMomentum(runID, symbol string, close, vwap, rsi float64) {
	eb.Publish(Event{
		Type: EventEarlyMomentum,
		Data: map[string]interface{}{
			"run_id": runID,
			"symbol": symbol,
			"close":  close,
			"vwap":   vwap,
			"rsi":    rsi,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}

package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventSnapshot        EventType = "session.snapshot"
	EventRestarting      EventType = "session.restarting"
	EventHistoryApplied  EventType = "session.history_applied"
	EventConnected       EventType = "stream.connected"
	EventDisconnected    EventType = "stream.disconnected"
	EventFrameRejected   EventType = "stream.frame_rejected"
	EventTransportFailed EventType = "stream.error"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RestartingPayload is the payload for EventRestarting events.
type RestartingPayload struct {
	NumRestarts int  `json:"num_restarts"`
	Silent      bool `json:"silent"`
}

// HistoryAppliedPayload is the payload for EventHistoryApplied events.
type HistoryAppliedPayload struct {
	Messages int `json:"messages"`
	Lines    int `json:"lines"`
}

// ErrorPayload is the payload for EventFrameRejected and EventTransportFailed.
type ErrorPayload struct {
	Code  ErrorCode `json:"code"`
	Error string    `json:"error"`
}

// DecodeSnapshot extracts a Snapshot from an EventSnapshot payload.
func DecodeSnapshot(event Event) (Snapshot, error) {
	var snap Snapshot
	err := json.Unmarshal(event.Payload, &snap)
	return snap, err
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}

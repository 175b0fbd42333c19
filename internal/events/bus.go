// Package events provides the in-process pub/sub bus for job lifecycle
// notifications. Handlers run synchronously on the emitter's goroutine;
// they must not block.
package events

import (
	"sync"
	"time"
)

// EventType identifies a category of event
type EventType string

const (
	JobStarted     EventType = "JOB_STARTED"
	JobSucceeded   EventType = "JOB_SUCCEEDED"
	JobFailed      EventType = "JOB_FAILED"
	DatasetRefresh EventType = "DATASET_REFRESHED"
	BackupDone     EventType = "BACKUP_COMPLETED"
)

// Event is a single emitted event
type Event struct {
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Handler receives emitted events
type Handler func(event *Event)

// Bus is a minimal synchronous pub/sub bus
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers a handler for one event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type (used by the SSE stream)
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Emit delivers an event to all matching handlers
func (b *Bus) Emit(eventType EventType, source string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	typed := b.handlers[eventType]
	all := b.all
	b.mu.RUnlock()

	for _, handler := range typed {
		handler(event)
	}
	for _, handler := range all {
		handler(event)
	}
}

package eventbus

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventNotification carries a user-facing notification.
	EventNotification EventType = "notification"
	// EventConnection carries a transport status change.
	EventConnection EventType = "connection"
	// EventHealth carries a server health probe result.
	EventHealth EventType = "health"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notification is a user-facing toast.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// ConnectionStatus is a transport state change.
type ConnectionStatus struct {
	URL     string
	State   string
	Attempt int
	Err     string
}

// HealthStatus is the result of one server health probe.
type HealthStatus struct {
	Healthy bool
	Err     string
}

// Event represents a client-facing event.
type Event struct {
	Type         EventType
	At           time.Time
	Notification Notification
	Connection   ConnectionStatus
	Health       HealthStatus
}

// Bus fans events out to subscribers without blocking publishers.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
	now   func() time.Time
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: 256,
		now:   time.Now,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			close(ch)
			b.mu.Unlock()
			b.log.Debug("eventbus unsubscribe")
		})
	}
}

// Notify publishes a notification.
func (b *Bus) Notify(level Level, title, message string) {
	b.publish(Event{Type: EventNotification, Notification: Notification{Level: level, Title: title, Message: message}})
}

// Success publishes a success notification.
func (b *Bus) Success(title, message string) { b.Notify(LevelSuccess, title, message) }

// Error publishes an error notification.
func (b *Bus) Error(title, message string) { b.Notify(LevelError, title, message) }

// Warning publishes a warning notification.
func (b *Bus) Warning(title, message string) { b.Notify(LevelWarning, title, message) }

// Info publishes an informational notification.
func (b *Bus) Info(title, message string) { b.Notify(LevelInfo, title, message) }

// OnConnection publishes a transport status change.
func (b *Bus) OnConnection(status ConnectionStatus) {
	b.publish(Event{Type: EventConnection, Connection: status})
}

// OnHealth publishes a health probe result.
func (b *Bus) OnHealth(status HealthStatus) {
	b.publish(Event{Type: EventHealth, Health: status})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	if event.At.IsZero() {
		event.At = b.now()
	}
	dropped := 0
	b.mu.Lock()
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}

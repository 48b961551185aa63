package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies an event class.
type Type string

const (
	ScanCompleted       Type = "scan:completed"
	BreakoutDetected    Type = "breakout:detected"
	AcquisitionProgress Type = "acquisition:progress"
	ScanError           Type = "scan:error"
	TrackerStarted      Type = "tracker:started"
	TrackerStopped      Type = "tracker:stopped"
)

// Event is what the core publishes. Data carries the typed payload
// (types.ScanResult, types.BreakoutAlert, ...).
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Source    string    `json:"source"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives published events. Handlers must not block for long;
// the bus dispatches from a single goroutine.
type Handler func(Event)

// Bus is an in-process publish/subscribe bus decoupling the core from the
// UI and notification layers. Publishing never blocks the publisher beyond
// the buffer; events published after Stop are dropped.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Type][]Handler
	ch     chan Event
	done   chan struct{}
	closed bool
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs: make(map[Type][]Handler),
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Subscribe registers a handler for one event type. Not safe to call after
// Start from multiple goroutines concurrently with Publish delivery only in
// the sense that late subscribers may miss in-flight events.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Start begins dispatching published events.
func (b *Bus) Start() {
	go b.loop()
}

func (b *Bus) loop() {
	for {
		select {
		case ev := <-b.ch:
			b.dispatch(ev)
		case <-b.done:
			// drain what is already buffered
			for {
				select {
				case ev := <-b.ch:
					b.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.RLock()
	handlers := b.subs[ev.Type]
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

// Publish enqueues an event for dispatch. If the buffer is full the event
// is dropped rather than blocking the core.
func (b *Bus) Publish(t Type, source string, data any) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}
	ev := Event{
		ID:        uuid.NewString(),
		Type:      t,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
	}
	select {
	case b.ch <- ev:
	default:
	}
}

// Stop halts dispatch after draining the buffer.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	close(b.done)
}

// Package eventbus fans coordinator events out to subscribers on a bounded
// worker pool.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType names an event.
type EventType string

const (
	EventTypeStateChanged     EventType = "state_changed"
	EventTypeDeviceDiscovered EventType = "device_discovered"
	EventTypeCommandFailed    EventType = "command_failed"
)

const (
	DefaultWorkerCount = 2
	DefaultQueueSize   = 100
)

// Event is one coordinator event.
type Event struct {
	Type   EventType
	Serial string
	Time   time.Time
	Data   map[string]any
}

// Handler handles one event.
type Handler func(Event)

type delivery struct {
	event   Event
	handler Handler
}

// Bus delivers events asynchronously. Publish never blocks: when the queue is
// full or the bus is closed the event is dropped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	any      []Handler
	closed   bool

	queue chan delivery
	wg    sync.WaitGroup
}

// New creates a bus with the default pool size.
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a bus with workers goroutines and a queue of
// queueSize pending deliveries.
func NewWithConfig(workers, queueSize int) *Bus {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		handlers: make(map[EventType][]Handler),
		queue:    make(chan delivery, queueSize),
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.run(i)
	}

	log.Debug().Int("workers", workers).Int("queue_size", queueSize).Msg("Event bus started")
	return b
}

func (b *Bus) run(worker int) {
	defer b.wg.Done()
	for d := range b.queue {
		deliver(worker, d)
	}
}

func deliver(worker int, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event_type", string(d.event.Type)).
				Int("worker", worker).
				Msg("Event handler panicked")
		}
	}()
	d.handler(d.event)
}

// Subscribe registers h for one event type.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.any = append(b.any, h)
}

// Publish queues event for every matching handler.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closed, dropping event")
		return
	}

	typed := b.handlers[event.Type]
	targets := make([]Handler, 0, len(typed)+len(b.any))
	targets = append(targets, typed...)
	targets = append(targets, b.any...)
	for _, h := range targets {
		select {
		case b.queue <- delivery{event: event, handler: h}:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Str("serial", event.Serial).
				Msg("Event bus queue full, dropping event")
		}
	}
}

// Close stops accepting events and waits for queued deliveries until ctx ends.
func (b *Bus) Close(ctx context.Context) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus stopped")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}

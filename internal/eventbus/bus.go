// Package eventbus is an in-memory fan-out of small signals between
// components (notifier deliveries, daily runs, plan extensions).
//
// Publish never blocks. Subscribers get buffered channels and lose events
// when they fall behind.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by housebot components.
const (
	TypeNotifierQueued  = "notifier.queued"
	TypeNotifierSent    = "notifier.sent"
	TypeNotifierFailed  = "notifier.failed"
	TypeNotifierDropped = "notifier.dropped"
	TypeNotifierDeduped = "notifier.deduped"

	TypeDayHandled   = "household.day_handled"
	TypePlanExtended = "dinner.plan_extended"
	TypeRSVPRecorded = "dinner.rsvp_recorded"

	TypeConfigReloaded = "config.reloaded"
)

type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a bus without background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a buffered subscriber. unsubscribe closes the channel
// and is safe to call more than once.
func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Publish is a nil-safe helper for optional buses.
func Publish(b Bus, typ string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: typ, Data: data})
}

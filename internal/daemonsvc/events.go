package daemonsvc

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is one published lifecycle notification: a container or
// network action plus whatever attributes the emitter attached.
type Event struct {
	Kind    string            `json:"kind"`
	ActorID string            `json:"actorId"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Time    time.Time         `json:"time"`
}

// EventBus implements collab.EventEmitter with the same
// never-block-the-writer fanout discipline as logfan.BroadcastWriter:
// every event is always logged, and is additionally handed to each
// live subscriber's channel on a best-effort basis.
type EventBus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewEventBus returns an empty bus with no subscribers.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)}
}

// Emit implements collab.EventEmitter.
func (b *EventBus) Emit(kind, actorID string, attrs map[string]string) {
	ev := Event{Kind: kind, ActorID: actorID, Attrs: attrs, Time: time.Now()}

	logrus.WithFields(logrus.Fields{
		"kind":  kind,
		"actor": actorID,
	}).Debug("daemonsvc: event")

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new event listener and returns an unsubscribe
// func the caller must defer-call when done.
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
}

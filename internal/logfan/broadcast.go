package logfan

import (
	"io"
	"sync"
)

// BroadcastWriter fans writes out to a dynamic set of subscribers, used
// to let multiple concurrent `logs -f`/attach sessions for the same
// container share a single read of the guest's console stream instead
// of each opening their own fd. A subscriber that can't keep up misses
// the writes its buffer cannot hold rather than blocking the others; it
// stays subscribed.
type BroadcastWriter struct {
	mu   sync.Mutex
	subs map[int]chan []byte
	next int
	closed bool
}

// NewBroadcastWriter returns an empty fanout with no subscribers.
func NewBroadcastWriter() *BroadcastWriter {
	return &BroadcastWriter{subs: make(map[int]chan []byte)}
}

// Write implements io.Writer by copying p to every current subscriber.
// It never blocks: a subscriber whose channel is full is skipped for
// this write rather than stalling the writer (and, by extension, the
// guest's console pump goroutine).
func (b *BroadcastWriter) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- cp:
		default:
		}
	}
	return len(p), nil
}

// Subscribe registers a new reader and returns it plus an unsubscribe
// func the caller must defer-call when done.
func (b *BroadcastWriter) Subscribe(buffer int) (<-chan []byte, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan []byte, buffer)
	if !b.closed {
		b.subs[id] = ch
	} else {
		close(ch)
	}
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

// Close closes every live subscriber channel; subsequent Subscribe
// calls get an already-closed channel.
func (b *BroadcastWriter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}

var _ io.Writer = (*BroadcastWriter)(nil)

package server

import (
	"log"
	"sync"

	"topchat/pkg/protocol"
)

// Broadcaster fans one snapshot per tick out to every connected client's
// writer. Each subscriber gets its own buffered channel; a subscriber that
// cannot keep up loses ticks rather than stalling the generator or its
// peers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan protocol.Snapshot
	buffer int
}

// NewBroadcaster creates a broadcaster whose subscriber channels hold up to
// buffer pending snapshots.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{
		subs:   make(map[int]chan protocol.Snapshot),
		buffer: buffer,
	}
}

// Subscribe registers a client writer. The channel closes on Unsubscribe.
func (b *Broadcaster) Subscribe(id int) <-chan protocol.Snapshot {
	ch := make(chan protocol.Snapshot, b.buffer)

	b.mu.Lock()
	if old, ok := b.subs[id]; ok {
		close(old)
	}
	b.subs[id] = ch
	b.mu.Unlock()

	return ch
}

// Unsubscribe drops a client writer and closes its channel.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers one snapshot to every subscriber, dropping it for any
// whose buffer is full.
func (b *Broadcaster) Publish(snap protocol.Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			log.Printf("Dropping snapshot for slow client %d", id)
		}
	}
}

// Subscribers reports how many writers are attached.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

package relay

import "sync"

// NoticeResponseReady is the type tag on terminal notices.
const NoticeResponseReady = "apiResponseReady"

// Notice announces a turn's terminal state. A popup that reopens after
// the worker was suspended subscribes to learn the outcome without
// polling the stream record.
type Notice struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Broadcaster fans terminal notices out to subscribers. Publishing is
// best-effort and never blocks: a subscriber that stops draining misses
// notices instead of stalling turns.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Notice
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Notice)}
}

// Subscribe registers a listener and returns its channel plus a cancel
// func. The channel closes on cancel; cancelling twice is fine.
func (b *Broadcaster) Subscribe() (<-chan Notice, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Notice, 8)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish delivers n to every subscriber with buffer room.
func (b *Broadcaster) Publish(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Package progress is a small in-memory pub/sub for generation lifecycle
// events, feeding the websocket progress stream.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one progress update for a generation.
type Event struct {
	GenerationID uuid.UUID `json:"generation_id"`
	Stage        string    `json:"stage"` // enriching, provider_attempt, succeeded, failed
	Provider     string    `json:"provider,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	At           time.Time `json:"at"`
}

// Broker fans events out to subscribers keyed by generation id. Slow
// subscribers drop events rather than block the generation path.
type Broker struct {
	mu   sync.Mutex
	subs map[uuid.UUID][]chan Event
}

// NewBroker creates a Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[uuid.UUID][]chan Event)}
}

// Publish sends an event to all subscribers of the generation. Non-blocking.
func (b *Broker) Publish(ev Event) {
	ev.At = time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.GenerationID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel of events for the generation and a cancel
// function that must be called when the subscriber is done.
func (b *Broker) Subscribe(id uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[id] = append(b.subs[id], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[id]
		for i, c := range chans {
			if c == ch {
				b.subs[id] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(b.subs[id]) == 0 {
			delete(b.subs, id)
		}
	}
	return ch, cancel
}

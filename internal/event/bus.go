package event

import (
	"sync"
)

// Handler receives events published on the bus.
type Handler func(Event)

// Bus is a synchronous publish/subscribe dispatcher with per-kind
// subscriber lists. Handlers run inline in subscription order, so a
// subscriber observing a specific event always runs before the paired
// stateChanged event is delivered. The bus is safe for use from the AI
// pipeline's streaming goroutines.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Kind][]subscription
}

type subscription struct {
	id int
	fn Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers a handler for a single event kind and returns an
// unsubscribe function.
func (b *Bus) Subscribe(kind Kind, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[kind]
		for i, sub := range list {
			if sub.id == id {
				b.subs[kind] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event synchronously to all subscribers of its kind.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	list := b.subs[ev.Kind]
	handlers := make([]Handler, len(list))
	for i, sub := range list {
		handlers[i] = sub.fn
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Emit publishes the specific event followed by the generic stateChanged
// event. Mutation operations use Emit so listeners can rely on the fixed
// order: specific first, stateChanged second.
func (b *Bus) Emit(ev Event) {
	b.Publish(ev)
	b.Publish(Event{Kind: KindStateChanged})
}

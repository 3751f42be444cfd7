package event

import "sync"

// Handler receives a notification.
type Handler func(Notification)

// Observer is implemented by long-lived consumers such as the journal.
type Observer interface {
	Observe(Notification)
}

type subscription struct {
	id      int
	typ     Type
	handler Handler
}

// Bus delivers notifications to subscribers in subscription order.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for notifications of typ and returns a func
// that removes it.
func (b *Bus) Subscribe(typ Type, handler Handler) func() {
	return b.add(typ, handler)
}

// SubscribeAll registers handler for every notification.
func (b *Bus) SubscribeAll(handler Handler) func() {
	return b.add("", handler)
}

// Attach subscribes o to every notification.
func (b *Bus) Attach(o Observer) func() {
	return b.add("", o.Observe)
}

func (b *Bus) add(typ Type, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, typ: typ, handler: handler})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers each notification to every matching handler. Handlers
// run outside the bus lock and may subscribe or unsubscribe.
func (b *Bus) Publish(notifications ...Notification) {
	for _, n := range notifications {
		b.mu.Lock()
		subs := append([]subscription(nil), b.subs...)
		b.mu.Unlock()
		for _, s := range subs {
			if s.typ == "" || s.typ == n.Type {
				s.handler(n)
			}
		}
	}
}

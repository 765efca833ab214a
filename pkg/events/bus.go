package events

import "sync"

// Event is what handlers receive.
type Event struct {
	Type string
	Args []any
}

// Handler handles a single event.
type Handler func(Event)

// Subscription is a registered handler. It is returned by On and One and
// identifies the registration for Off.
type Subscription struct {
	typ     string
	fn      Handler
	once    bool
	removed bool
}

// Type returns the event type the subscription listens to.
func (s *Subscription) Type() string { return s.typ }

// Bus is a synchronous multi-consumer event bus. The zero value is not
// usable; create one with New.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*Subscription)}
}

// On registers a persistent handler for typ.
func (b *Bus) On(typ string, fn Handler) *Subscription {
	return b.add(typ, fn, false)
}

// One registers a handler that is removed after its first invocation.
func (b *Bus) One(typ string, fn Handler) *Subscription {
	return b.add(typ, fn, true)
}

func (b *Bus) add(typ string, fn Handler, once bool) *Subscription {
	s := &Subscription{typ: typ, fn: fn, once: once}
	b.mu.Lock()
	b.subs[typ] = append(b.subs[typ], s)
	b.mu.Unlock()
	return s
}

// Off removes handlers.
//
//   - Off("") clears every type.
//   - Off(typ) clears all handlers of typ.
//   - Off(typ, subs...) removes only the given subscriptions of typ.
//   - Off("", subs...) removes the given subscriptions whatever their type.
func (b *Bus) Off(typ string, subs ...*Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(subs) == 0 {
		if typ == "" {
			for _, list := range b.subs {
				markRemoved(list)
			}
			b.subs = make(map[string][]*Subscription)
			return
		}
		markRemoved(b.subs[typ])
		delete(b.subs, typ)
		return
	}

	for _, s := range subs {
		if s == nil || (typ != "" && s.typ != typ) {
			continue
		}
		b.removeLocked(s)
	}
}

// Emit invokes every handler registered for typ, in registration order.
// A handler panic propagates to the caller.
func (b *Bus) Emit(typ string, args ...any) {
	b.mu.Lock()
	list := b.subs[typ]
	if len(list) == 0 {
		b.mu.Unlock()
		return
	}
	snapshot := make([]*Subscription, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	ev := Event{Type: typ, Args: args}
	for _, s := range snapshot {
		b.mu.Lock()
		if s.removed {
			b.mu.Unlock()
			continue
		}
		if s.once {
			b.removeLocked(s)
		}
		b.mu.Unlock()

		s.fn(ev)
	}
}

// Len returns the number of handlers registered for typ.
func (b *Bus) Len(typ string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[typ])
}

func (b *Bus) removeLocked(s *Subscription) {
	if s.removed {
		return
	}
	s.removed = true
	list := b.subs[s.typ]
	for i, cur := range list {
		if cur == s {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.subs, s.typ)
		return
	}
	b.subs[s.typ] = list
}

func markRemoved(list []*Subscription) {
	for _, s := range list {
		s.removed = true
	}
}

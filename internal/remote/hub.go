package remote

import "sync"

// Hub fans values out to subscribers grouped by key (a user id).
//
// Every subscriber channel holds at most one value. Publishing to a
// subscriber that has not consumed its previous value replaces it, so a slow
// reader only ever sees the newest snapshot.
type Hub[T any] struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan T
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]map[int]chan T)}
}

// Subscribe registers a listener for key. The returned function removes it
// and closes the channel; calling it more than once is safe.
func (h *Hub[T]) Subscribe(key string) (<-chan T, func()) {
	return h.subscribe(key, make(chan T, 1))
}

// SubscribeWith is Subscribe with v already waiting on the channel.
func (h *Hub[T]) SubscribeWith(key string, v T) (<-chan T, func()) {
	ch := make(chan T, 1)
	ch <- v
	return h.subscribe(key, ch)
}

func (h *Hub[T]) subscribe(key string, ch chan T) (<-chan T, func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]chan T)
	}
	h.subs[key][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[key][id]; !ok {
				return
			}
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			close(ch)
		})
	}
}

// Publish delivers v to every subscriber of key and returns how many there were.
func (h *Hub[T]) Publish(key string, v T) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[key] {
		Offer(ch, v)
	}
	return len(h.subs[key])
}

// CloseAll removes every subscriber and closes its channel. Unsubscribe
// functions handed out earlier become no-ops.
func (h *Hub[T]) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, subs := range h.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subs, key)
	}
}

// Keys returns the keys that currently have subscribers.
func (h *Hub[T]) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.subs))
	for k := range h.subs {
		keys = append(keys, k)
	}
	return keys
}

// Count returns the number of subscribers for key.
func (h *Hub[T]) Count(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}

// Offer performs a non-blocking send on a one-slot channel, replacing any
// value still waiting. ch must have a single producer.
func Offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

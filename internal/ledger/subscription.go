package ledger

import (
	"context"
	"sync"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/remote"
)

// Snapshot is one full copy of a user's entry collection as delivered by the
// remote store. It is never modified after creation.
type Snapshot struct {
	UserID     string
	Version    uint64 // 1 for the first snapshot of a subscription, 0 when empty
	ReceivedAt time.Time
	entries    []core.Entry
}

// Entries returns a copy of the entries. Order is unspecified.
func (s Snapshot) Entries() []core.Entry {
	out := make([]core.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries in the snapshot.
func (s Snapshot) Len() int {
	return len(s.entries)
}

// Find returns the entry with id, if present.
func (s Snapshot) Find(id string) (core.Entry, bool) {
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return core.Entry{}, false
}

// Subscription delivers snapshots of one user's collection on C.
//
// C holds at most one pending snapshot; a reader that falls behind skips
// straight to the newest. C is closed after Close, once the remote listener
// has been released, or when the store ends the stream.
type Subscription struct {
	C <-chan Snapshot

	userID string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe starts watching userID's collection. An empty userID yields an
// inert subscription that never emits.
func Subscribe(ctx context.Context, w remote.EntryWatcher, userID string) (*Subscription, error) {
	out := make(chan Snapshot, 1)
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{C: out, userID: userID, cancel: cancel, done: make(chan struct{})}

	if userID == "" {
		go func() {
			defer close(s.done)
			defer close(out)
			<-ctx.Done()
		}()
		return s, nil
	}

	src, err := w.Watch(ctx, userID)
	if err != nil {
		cancel()
		return nil, err
	}
	go s.pump(ctx, src, out)
	return s, nil
}

func (s *Subscription) pump(ctx context.Context, src <-chan []core.Entry, out chan Snapshot) {
	defer close(s.done)
	defer close(out)

	var version uint64
	for {
		select {
		case <-ctx.Done():
			// The store closes src after releasing its listener.
			for range src {
			}
			return
		case entries, ok := <-src:
			if !ok {
				return
			}
			version++
			remote.Offer(out, Snapshot{
				UserID:     s.userID,
				Version:    version,
				ReceivedAt: time.Now(),
				entries:    entries,
			})
		}
	}
}

// UserID returns the identity the subscription watches.
func (s *Subscription) UserID() string {
	return s.userID
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops delivery and returns after the remote listener is released.
// It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

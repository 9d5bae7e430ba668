// Package ledger keeps a local mirror of one user's entry collection in step
// with the remote store and sends user mutations to it.
//
// The mirror is only ever replaced by a snapshot pushed from the store. A
// mutation does not touch it; its effect shows up when the store pushes the
// next snapshot.
package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/remote"
	"kakeibo/internal/task"
)

// ErrAuthRequired is returned by mutations attempted without an active user.
var ErrAuthRequired = errors.New("no active user")

// DefaultWriteTimeout bounds a single remote write.
const DefaultWriteTimeout = 10 * time.Second

const listenKey = ""

// Ledger is the session-scoped synced mirror.
type Ledger struct {
	store        remote.EntryStore
	logger       *log.Logger
	writeTimeout time.Duration

	session sync.Mutex // serializes SetUser and Close
	sub     *Subscription
	applied chan struct{} // closed when the apply loop for sub exits

	mu      sync.RWMutex
	current Snapshot

	listeners *remote.Hub[Snapshot]
}

// New returns a ledger with no active user. A writeTimeout of zero or less
// leaves writes unbounded.
func New(store remote.EntryStore, logger *log.Logger, writeTimeout time.Duration) *Ledger {
	if logger == nil {
		logger = log.Discard()
	}
	return &Ledger{
		store:        store,
		logger:       logger.WithComponent(log.ComponentLedger),
		writeTimeout: writeTimeout,
		listeners:    remote.NewHub[Snapshot](),
	}
}

// SetUser switches the session to userID. The previous subscription is
// fully released before the new one starts. An empty userID logs out and
// leaves an empty mirror, as does a failed subscribe.
func (l *Ledger) SetUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)

	l.session.Lock()
	defer l.session.Unlock()

	l.teardownLocked()
	l.replace(Snapshot{UserID: userID})
	if userID == "" {
		l.logger.InfoContext(ctx, "Ledger logged out")
		return nil
	}

	sub, err := Subscribe(ctx, l.store, userID)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to subscribe to entries",
			log.FieldOperation, log.OpSubscribe,
			log.FieldUserID, userID,
			log.FieldError, err)
		l.replace(Snapshot{})
		return err
	}
	l.sub = sub
	l.applied = make(chan struct{})
	go l.apply(sub, l.applied)

	l.logger.InfoContext(ctx, "Ledger subscribed", log.FieldUserID, userID)
	return nil
}

func (l *Ledger) apply(sub *Subscription, applied chan struct{}) {
	defer close(applied)
	for snap := range sub.C {
		l.replace(snap)
		l.logger.Debug("Snapshot applied",
			log.FieldUserID, snap.UserID,
			log.FieldVersion, snap.Version,
			log.FieldCount, snap.Len())
	}
}

func (l *Ledger) teardownLocked() {
	if l.sub == nil {
		return
	}
	l.sub.Close()
	<-l.applied
	l.sub, l.applied = nil, nil
}

func (l *Ledger) replace(snap Snapshot) {
	l.mu.Lock()
	l.current = snap
	l.mu.Unlock()
	l.listeners.Publish(listenKey, snap)
}

// User returns the active user id, or "" when logged out.
func (l *Ledger) User() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.UserID
}

// Current returns the latest snapshot.
func (l *Ledger) Current() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Listen returns a channel that receives the mirror each time it is
// replaced, conflated to the newest value. Call the returned function to stop.
func (l *Ledger) Listen() (<-chan Snapshot, func()) {
	return l.listeners.Subscribe(listenKey)
}

// Ready waits until the first snapshot for the active user has arrived.
func (l *Ledger) Ready(ctx context.Context) (Snapshot, error) {
	ch, stop := l.Listen()
	defer stop()
	for {
		snap := l.Current()
		if snap.UserID == "" {
			return snap, ErrAuthRequired
		}
		if snap.Version > 0 {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Add sends a new entry to the store. Any id on e is ignored; the store
// assigns one.
func (l *Ledger) Add(ctx context.Context, e core.Entry) *task.Task {
	e.ID = ""
	if err := e.Validate(); err != nil {
		return l.reject(ctx, log.OpCreate, e, err)
	}
	return l.write(ctx, log.OpCreate, e, func(ctx context.Context, userID string) error {
		return l.store.Create(ctx, userID, e)
	})
}

// Update overwrites the entry with e.ID, creating it if it does not exist.
func (l *Ledger) Update(ctx context.Context, e core.Entry) *task.Task {
	if strings.TrimSpace(e.ID) == "" {
		return l.reject(ctx, log.OpReplace, e, core.ErrMissingID)
	}
	if err := e.Validate(); err != nil {
		return l.reject(ctx, log.OpReplace, e, err)
	}
	return l.write(ctx, log.OpReplace, e, func(ctx context.Context, userID string) error {
		return l.store.Replace(ctx, userID, e)
	})
}

// Delete removes the entry with id. Deleting an unknown id succeeds.
func (l *Ledger) Delete(ctx context.Context, id string) *task.Task {
	e := core.Entry{ID: id}
	if strings.TrimSpace(id) == "" {
		return l.reject(ctx, log.OpDelete, e, core.ErrMissingID)
	}
	return l.write(ctx, log.OpDelete, e, func(ctx context.Context, userID string) error {
		return l.store.Delete(ctx, userID, id)
	})
}

func (l *Ledger) reject(ctx context.Context, op string, e core.Entry, err error) *task.Task {
	l.logger.WarnContext(ctx, "Entry rejected",
		append(entryFields(e).WithOperation(op).WithError(err).ToSlice(),
			"error_type", log.ErrorTypeValidation)...)
	return task.Failed(err)
}

// write runs fn for the active user on its own goroutine. The write is not
// cancelled when ctx is; it is only bounded by the write timeout.
func (l *Ledger) write(ctx context.Context, op string, e core.Entry, fn func(context.Context, string) error) *task.Task {
	userID := l.User()
	if userID == "" {
		l.logger.WarnContext(ctx, "Mutation without active user",
			log.FieldOperation, op,
			"error_type", log.ErrorTypeAuth)
		return task.Failed(ErrAuthRequired)
	}

	wctx := context.WithoutCancel(ctx)
	return task.Run(func() error {
		var cancel context.CancelFunc = func() {}
		if l.writeTimeout > 0 {
			wctx, cancel = context.WithTimeout(wctx, l.writeTimeout)
		}
		defer cancel()

		start := time.Now()
		err := fn(wctx, userID)
		if err != nil && !errors.Is(err, remote.ErrUnavailable) {
			err = remote.WrapWrite(op, err)
		}
		if err != nil {
			log.LogMutationFailed(wctx, l.logger, op, userID, err, entryFields(e))
			return err
		}
		l.logger.DebugContext(wctx, "Mutation sent",
			log.FieldOperation, op,
			log.FieldUserID, userID,
			log.FieldDuration, time.Since(start).Milliseconds())
		return nil
	})
}

// Close ends the session subscription. The ledger keeps its last snapshot.
func (l *Ledger) Close() {
	l.session.Lock()
	defer l.session.Unlock()
	l.teardownLocked()
}

func entryFields(e core.Entry) log.LogFields {
	if e.Date == "" && e.Category == "" {
		f := log.NewFields()
		if e.ID != "" {
			f[log.FieldEntryID] = e.ID
		}
		return f
	}
	return log.NewFields().WithEntry(e.ID, e.Date, e.Category, e.SubCategory, int64(e.Amount), e.Type.English())
}

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/remote"
	"kakeibo/internal/remote/memory"
)

func waitFor(t *testing.T, l *Ledger, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	ch, stop := l.Listen()
	defer stop()
	deadline := time.After(2 * time.Second)
	for {
		if snap := l.Current(); cond(snap) {
			return snap
		}
		select {
		case <-ch:
		case <-deadline:
			t.Fatalf("condition not met; current snapshot has %d entries", l.Current().Len())
		}
	}
}

func newEntry(date, cat string, amount core.Amount, typ core.EntryType) core.Entry {
	return core.Entry{Date: date, Category: cat, Amount: amount, Type: typ}
}

func TestLedgerAddShowsUpInNextSnapshot(t *testing.T) {
	store := memory.New(nil)
	l := New(store, nil, time.Second)
	defer l.Close()
	ctx := context.Background()

	if err := l.SetUser(ctx, "u1"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	snap, err := l.Ready(ctx)
	if err != nil || snap.Len() != 0 || snap.Version != 1 {
		t.Fatalf("Ready = %+v, %v", snap, err)
	}

	if err := l.Add(ctx, newEntry("2024-01-05", "給与", 1000, core.Income)).Wait(ctx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	snap = waitFor(t, l, func(s Snapshot) bool { return s.Len() == 1 })
	got := snap.Entries()[0]
	if got.ID == "" || got.Category != "給与" || snap.UserID != "u1" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if snap.Version < 2 {
		t.Fatalf("expected a newer version, got %d", snap.Version)
	}
}

func TestLedgerRejectsBeforeWriting(t *testing.T) {
	store := memory.New(nil)
	l := New(store, nil, time.Second)
	defer l.Close()
	ctx := context.Background()

	if err := l.Add(ctx, newEntry("2024-01-05", "食費", 100, core.Expense)).Wait(ctx); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired without user, got %v", err)
	}

	_ = l.SetUser(ctx, "u1")
	tests := []struct {
		name string
		e    core.Entry
	}{
		{"missing date", newEntry("", "食費", 100, core.Expense)},
		{"bad date", newEntry("2024/01/05", "食費", 100, core.Expense)},
		{"missing category", newEntry("2024-01-05", " ", 100, core.Expense)},
		{"zero amount", newEntry("2024-01-05", "食費", 0, core.Expense)},
		{"bad type", newEntry("2024-01-05", "食費", 100, "transfer")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := l.Add(ctx, tt.e).Wait(ctx); !errors.Is(err, core.ErrInvalidEntry) {
				t.Fatalf("expected ErrInvalidEntry, got %v", err)
			}
		})
	}
	if err := l.Update(ctx, newEntry("2024-01-05", "食費", 100, core.Expense)).Wait(ctx); !errors.Is(err, core.ErrMissingID) {
		t.Fatalf("update without id: %v", err)
	}
	if err := l.Delete(ctx, "").Wait(ctx); !errors.Is(err, core.ErrInvalidEntry) {
		t.Fatalf("delete without id: %v", err)
	}
	if n := len(store.Entries("u1")); n != 0 {
		t.Fatalf("rejected mutations reached the store: %d entries", n)
	}
}

func TestLedgerUpdateUpsertsAndDeleteIsIdempotent(t *testing.T) {
	store := memory.New(nil)
	l := New(store, nil, time.Second)
	defer l.Close()
	ctx := context.Background()
	_ = l.SetUser(ctx, "u1")

	e := newEntry("2024-01-05", "食費", 300, core.Expense)
	e.ID = "external"
	if err := l.Update(ctx, e).Wait(ctx); err != nil {
		t.Fatalf("Update of unknown id: %v", err)
	}
	waitFor(t, l, func(s Snapshot) bool { _, ok := s.Find("external"); return ok })

	e.Amount = 500
	e.Memo = "lunch"
	_ = l.Update(ctx, e).Wait(ctx)
	snap := waitFor(t, l, func(s Snapshot) bool { got, _ := s.Find("external"); return got.Amount == 500 })
	if got, _ := snap.Find("external"); got.Memo != "lunch" {
		t.Fatalf("update is a full replace, got %+v", got)
	}

	if err := l.Delete(ctx, "external").Wait(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := l.Delete(ctx, "external").Wait(ctx); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	waitFor(t, l, func(s Snapshot) bool { return s.Len() == 0 })
}

func TestLedgerSwitchUserReleasesPreviousListener(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	_ = store.Create(ctx, "alice", newEntry("2024-01-05", "給与", 1000, core.Income))
	_ = store.Create(ctx, "bob", newEntry("2024-02-01", "食費", 200, core.Expense))

	l := New(store, nil, time.Second)
	defer l.Close()

	_ = l.SetUser(ctx, "alice")
	if snap, _ := l.Ready(ctx); snap.Len() != 1 {
		t.Fatalf("alice should see her entry")
	}

	if err := l.SetUser(ctx, "bob"); err != nil {
		t.Fatalf("SetUser bob: %v", err)
	}
	if n := store.Watchers("alice"); n != 0 {
		t.Fatalf("alice listener still registered: %d", n)
	}
	snap, _ := l.Ready(ctx)
	if snap.UserID != "bob" || snap.Len() != 1 || snap.Entries()[0].Category != "食費" {
		t.Fatalf("unexpected snapshot after switch: %+v", snap.Entries())
	}

	_ = store.Create(ctx, "alice", newEntry("2024-01-06", "副業", 50, core.Income))
	time.Sleep(20 * time.Millisecond)
	if cur := l.Current(); cur.UserID != "bob" || cur.Len() != 1 {
		t.Fatalf("alice's change leaked into bob's mirror")
	}

	_ = l.SetUser(ctx, "")
	if store.Watchers("bob") != 0 || l.Current().Len() != 0 || l.User() != "" {
		t.Fatalf("logout should release the listener and clear the mirror")
	}
	if _, err := l.Ready(ctx); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("Ready after logout = %v", err)
	}
}

type failingStore struct {
	*memory.Store
	err error
}

func (f failingStore) Create(context.Context, string, core.Entry) error { return f.err }

type unwatchableStore struct {
	*memory.Store
}

func (unwatchableStore) Watch(context.Context, string) (<-chan []core.Entry, error) {
	return nil, remote.ErrUnavailable
}

func TestLedgerFailedSubscribeLeavesNoUser(t *testing.T) {
	ctx := context.Background()
	store := unwatchableStore{memory.New(nil)}
	l := New(store, nil, time.Second)
	defer l.Close()

	if err := l.SetUser(ctx, "alice"); !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("SetUser = %v, want ErrUnavailable", err)
	}
	if got := l.User(); got != "" {
		t.Fatalf("User() after failed SetUser = %q", got)
	}
	err := l.Add(ctx, newEntry("2024-01-05", "食費", 100, core.Expense)).Wait(ctx)
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("Add after failed SetUser = %v, want ErrAuthRequired", err)
	}
	if n := len(store.Entries("alice")); n != 0 {
		t.Fatalf("write reached the store: %d entries", n)
	}
}

func TestLedgerWriteFailures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		cause error
		check func(error) bool
	}{
		{"rejected", errors.New("quota exceeded"), remote.IsWriteError},
		{"unavailable", remote.ErrUnavailable, func(err error) bool { return errors.Is(err, remote.ErrUnavailable) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(failingStore{memory.New(nil), tt.cause}, nil, time.Second)
			defer l.Close()
			_ = l.SetUser(ctx, "u1")
			err := l.Add(ctx, newEntry("2024-01-05", "食費", 100, core.Expense)).Wait(ctx)
			if !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestSubscribeInertForEmptyUser(t *testing.T) {
	store := memory.New(nil)
	sub, err := Subscribe(context.Background(), store, "")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	select {
	case snap := <-sub.C:
		t.Fatalf("inert subscription emitted %+v", snap)
	case <-time.After(30 * time.Millisecond):
	}
	sub.Close()
	sub.Close()
	if _, ok := <-sub.C; ok {
		t.Fatalf("C should be closed")
	}
}

func TestSubscribeVersionsAndClose(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	sub, err := Subscribe(ctx, store, "u1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	first := <-sub.C
	if first.Version != 1 || first.UserID != "u1" {
		t.Fatalf("unexpected first snapshot %+v", first)
	}

	_ = store.Create(ctx, "u1", newEntry("2024-01-05", "食費", 100, core.Expense))
	second := <-sub.C
	if second.Version != 2 || second.Len() != 1 {
		t.Fatalf("unexpected second snapshot %+v", second)
	}

	entries := second.Entries()
	entries[0].Category = "changed"
	if again := second.Entries(); again[0].Category != "食費" {
		t.Fatalf("Entries must return a copy")
	}

	sub.Close()
	if store.Watchers("u1") != 0 {
		t.Fatalf("Close did not release the remote listener")
	}
	if _, err := Subscribe(ctx, closedStore(), "u1"); !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from closed store, got %v", err)
	}
}

func closedStore() *memory.Store {
	s := memory.New(nil)
	_ = s.Close()
	return s
}

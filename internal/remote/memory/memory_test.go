package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/remote"
)

func recv(t *testing.T, ch <-chan []core.Entry) []core.Entry {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("watch channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return nil
}

func entry(date, cat string, amount core.Amount, typ core.EntryType) core.Entry {
	return core.Entry{Date: date, Category: cat, Amount: amount, Type: typ}
}

func TestWatchEmitsInitialAndFullSnapshots(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, "u1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if got := recv(t, ch); len(got) != 0 {
		t.Fatalf("expected empty initial snapshot, got %v", got)
	}

	if err := s.Create(ctx, "u1", entry("2024-01-05", "給与", 1000, core.Income)); err != nil {
		t.Fatalf("create: %v", err)
	}
	first := recv(t, ch)
	if len(first) != 1 || first[0].ID == "" {
		t.Fatalf("expected one entry with assigned id, got %+v", first)
	}

	if err := s.Create(ctx, "u1", entry("2024-01-06", "食費", 300, core.Expense)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := recv(t, ch); len(got) != 2 {
		t.Fatalf("expected full snapshot with 2 entries, got %d", len(got))
	}
}

func TestReplaceUpsertsAndDeleteIsIdempotent(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	e := entry("2024-01-05", "食費", 300, core.Expense)
	e.ID = "fixed-id"
	if err := s.Replace(ctx, "u1", e); err != nil {
		t.Fatalf("replace of unknown id should create it: %v", err)
	}
	e.Amount = 450
	if err := s.Replace(ctx, "u1", e); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got := s.Entries("u1")
	if len(got) != 1 || got[0].Amount != 450 {
		t.Fatalf("unexpected entries after replace: %+v", got)
	}

	if err := s.Delete(ctx, "u1", "fixed-id"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "u1", "fixed-id"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if err := s.Delete(ctx, "nobody", "x"); err != nil {
		t.Fatalf("delete for unknown user should be a no-op: %v", err)
	}
	if len(s.Entries("u1")) != 0 {
		t.Fatalf("entry not deleted")
	}
}

func TestWatchIsolatesUsersAndReleasesListener(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Watch(ctx, "alice")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	recv(t, ch)
	if s.Watchers("alice") != 1 {
		t.Fatalf("expected one watcher")
	}

	_ = s.Create(context.Background(), "bob", entry("2024-01-05", "食費", 300, core.Expense))
	select {
	case v := <-ch:
		t.Fatalf("alice received bob's snapshot: %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		if _, ok := <-ch; !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("channel not closed after cancel")
		default:
		}
	}
	if s.Watchers("alice") != 0 {
		t.Fatalf("listener not released")
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s := New(nil)
	_ = s.Close()
	ctx := context.Background()
	if err := s.Create(ctx, "u", entry("2024-01-05", "c", 1, core.Income)); !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("create: expected ErrUnavailable, got %v", err)
	}
	if _, err := s.Watch(ctx, "u"); !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("watch: expected ErrUnavailable, got %v", err)
	}
	if _, err := s.List(ctx); !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("list: expected ErrUnavailable, got %v", err)
	}
}

func TestCloseEndsWatchStreams(t *testing.T) {
	s := New(nil)
	ch, err := s.Watch(context.Background(), "u")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	<-ch
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("watch channel still open after Close")
	}
	if s.Watchers("u") != 0 {
		t.Fatalf("watchers left after Close")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestCategoriesPutAndDelete(t *testing.T) {
	s := New([]core.Category{{Name: "食費", Sub: []string{"外食", "外食", " "}}, {Name: "食費"}, {Name: " "}})
	cats := s.Categories()
	ctx := context.Background()

	got, err := cats.List(ctx)
	if err != nil || len(got) != 1 || len(got[0].Sub) != 1 {
		t.Fatalf("unexpected seed: %+v err=%v", got, err)
	}

	if err := cats.Put(ctx, core.Category{Name: "交通費", Sub: []string{"電車"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := cats.Put(ctx, core.Category{Name: "食費", Sub: []string{"外食", "食料品"}}); err != nil {
		t.Fatalf("put replace: %v", err)
	}
	got, _ = cats.List(ctx)
	if len(got) != 2 || len(got[0].Sub) != 2 || got[1].Name != "交通費" {
		t.Fatalf("unexpected categories: %+v", got)
	}

	got[0].Sub[0] = "mutated"
	again, _ := cats.List(ctx)
	if again[0].Sub[0] != "外食" {
		t.Fatalf("List must return copies")
	}

	if err := cats.Delete(ctx, "食費"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = cats.List(ctx)
	if len(got) != 1 || got[0].Name != "交通費" {
		t.Fatalf("unexpected categories after delete: %+v", got)
	}
	if err := cats.Put(ctx, core.Category{Name: ""}); !remote.IsWriteError(err) {
		t.Fatalf("expected write error for blank name, got %v", err)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	if cats, _ := s.List(context.Background()); len(cats) != 0 {
		t.Fatalf("expected empty collection when seed file missing, got %v", cats)
	}

	content := "# header\n食費: 外食, 食料品, 外食\n\n交通費\n食費: 弁当\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	cats, _ := s.List(context.Background())
	if len(cats) != 2 || cats[0].Name != "食費" || cats[1].Name != "交通費" {
		t.Fatalf("unexpected cats: %+v", cats)
	}
	if want := []string{"外食", "食料品", "弁当"}; len(cats[0].Sub) != 3 || cats[0].Sub[2] != want[2] {
		t.Fatalf("unexpected subs: %v", cats[0].Sub)
	}
	if len(cats[1].Sub) != 0 {
		t.Fatalf("expected no subs for 交通費, got %v", cats[1].Sub)
	}
}

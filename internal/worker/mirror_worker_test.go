package worker

import (
	"context"
	"errors"
	"testing"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
)

type fakeLister struct {
	entries map[string][]core.Entry
	err     error
	calls   []string
}

func (f *fakeLister) ListEntries(_ context.Context, userID string) ([]core.Entry, error) {
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[userID], nil
}

type fakeMirror struct {
	written [][]core.Entry
	err     error
}

func (f *fakeMirror) ReplaceEntries(_ context.Context, entries []core.Entry) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.written = append(f.written, entries)
	return "Entries!A1:G3", nil
}

func TestHandleEntriesChanged(t *testing.T) {
	lister := &fakeLister{entries: map[string][]core.Entry{
		"alice": {
			{ID: "1", Date: "2024-01-05", Category: "給与", Amount: 1000, Type: core.Income},
			{ID: "2", Date: "2024-01-10", Category: "食費", Amount: 300, Type: core.Expense},
		},
	}}
	mirror := &fakeMirror{}
	w := NewMirrorWorker(lister, mirror, "alice")
	ctx := context.Background()

	if err := w.HandleEntriesChanged(ctx, amqp.NewEntriesChangedMessage("bob", "cli")); err != nil {
		t.Fatalf("other user: %v", err)
	}
	if len(lister.calls) != 0 || len(mirror.written) != 0 {
		t.Fatalf("changes for other users must not be mirrored")
	}

	if err := w.HandleEntriesChanged(ctx, amqp.NewEntriesChangedMessage("alice", "cli")); err != nil {
		t.Fatalf("HandleEntriesChanged: %v", err)
	}
	if len(mirror.written) != 1 || len(mirror.written[0]) != 2 {
		t.Fatalf("expected full collection mirrored, got %+v", mirror.written)
	}
	if n, last := w.Stats(); n != 1 || last.IsZero() {
		t.Fatalf("Stats = %d, %v", n, last)
	}
}

func TestSyncFailures(t *testing.T) {
	listErr := errors.New("database is locked")
	writeErr := errors.New("quota exceeded")

	tests := []struct {
		name    string
		lister  *fakeLister
		mirror  *fakeMirror
		wantErr error
	}{
		{"list fails", &fakeLister{err: listErr}, &fakeMirror{}, listErr},
		{"mirror fails", &fakeLister{}, &fakeMirror{err: writeErr}, writeErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewMirrorWorker(tt.lister, tt.mirror, "alice")
			err := w.StartupSync(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("StartupSync error = %v, want %v", err, tt.wantErr)
			}
			if n, _ := w.Stats(); n != 0 {
				t.Fatalf("failed sync counted as success")
			}
		})
	}
}

func TestStartupSyncEmptyCollection(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewMirrorWorker(&fakeLister{}, mirror, "alice")
	if err := w.StartupSync(context.Background()); err != nil {
		t.Fatalf("StartupSync: %v", err)
	}
	if len(mirror.written) != 1 || len(mirror.written[0]) != 0 {
		t.Fatalf("empty collection should still clear the mirror, got %+v", mirror.written)
	}
}

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
)

type (
	// EntryLister reads a user's full entry collection.
	EntryLister interface {
		ListEntries(ctx context.Context, userID string) ([]core.Entry, error)
	}

	// EntryMirror overwrites an external copy of one user's entries and
	// returns a reference to what was written.
	EntryMirror interface {
		ReplaceEntries(ctx context.Context, entries []core.Entry) (string, error)
	}
)

// MirrorWorker keeps one user's entries copied to a spreadsheet. Change
// messages carry no data, so every relevant message triggers a full rewrite.
type MirrorWorker struct {
	storage EntryLister
	mirror  EntryMirror
	userID  string

	mu       sync.Mutex
	lastSync time.Time
	syncs    int
}

func NewMirrorWorker(storage EntryLister, mirror EntryMirror, userID string) *MirrorWorker {
	return &MirrorWorker{
		storage: storage,
		mirror:  mirror,
		userID:  userID,
	}
}

// HandleEntriesChanged processes one change message from AMQP. Messages for
// other users are acknowledged without work.
func (w *MirrorWorker) HandleEntriesChanged(ctx context.Context, msg *amqp.EntriesChangedMessage) error {
	if msg.UserID != w.userID {
		slog.DebugContext(ctx, "Ignoring change for unmirrored user",
			"user_id", msg.UserID,
			"origin", msg.Origin)
		return nil
	}

	slog.InfoContext(ctx, "Processing entries changed message",
		"user_id", msg.UserID,
		"origin", msg.Origin,
		"timestamp", msg.Timestamp)

	return w.Sync(ctx)
}

// StartupSync mirrors the current collection once, covering changes missed
// while the worker was down.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	if err := w.Sync(ctx); err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	return nil
}

// Sync copies the configured user's collection to the mirror.
func (w *MirrorWorker) Sync(ctx context.Context) error {
	start := time.Now()

	entries, err := w.storage.ListEntries(ctx, w.userID)
	if err != nil {
		return fmt.Errorf("list entries for %s: %w", w.userID, err)
	}

	ref, err := w.mirror.ReplaceEntries(ctx, entries)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to mirror entries",
			"user_id", w.userID,
			"count", len(entries),
			"error", err)
		return fmt.Errorf("replace mirrored entries: %w", err)
	}

	w.mu.Lock()
	w.lastSync = time.Now()
	w.syncs++
	w.mu.Unlock()

	slog.InfoContext(ctx, "Successfully mirrored entries",
		"user_id", w.userID,
		"count", len(entries),
		"sheets_ref", ref,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Stats reports how many syncs succeeded and when the last one finished.
func (w *MirrorWorker) Stats() (int, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncs, w.lastSync
}

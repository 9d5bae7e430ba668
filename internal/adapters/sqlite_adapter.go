package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/remote"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

// SQLiteAdapter turns the SQLite repository and EntryService into a
// remote.EntryStore. Writes go through the service; every change it
// announces, locally or from another process over AMQP, makes the watchers of
// that user refetch the full collection.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.EntryService
	origin  string

	changes *remote.Hub[struct{}]
	fetches singleflight.Group
}

// Ensure interface conformance
var (
	_ remote.EntryStore    = (*SQLiteAdapter)(nil)
	_ remote.CategoryStore = categoryStore{}
)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.EntryService) *SQLiteAdapter {
	a := &SQLiteAdapter{
		storage: storage,
		service: service,
		changes: remote.NewHub[struct{}](),
	}
	service.AddNotifier(services.NotifierFunc(a.notifyLocal))
	return a
}

// SetOrigin names the AMQP publisher that shares this process, so its own
// messages are not handled twice.
func (a *SQLiteAdapter) SetOrigin(origin string) {
	a.origin = origin
}

// Create implements remote.EntryWriter
func (a *SQLiteAdapter) Create(ctx context.Context, userID string, e core.Entry) error {
	_, err := a.service.CreateEntry(ctx, userID, e)
	return remote.WrapWrite("create", err)
}

// Replace implements remote.EntryWriter
func (a *SQLiteAdapter) Replace(ctx context.Context, userID string, e core.Entry) error {
	return remote.WrapWrite("replace", a.service.ReplaceEntry(ctx, userID, e))
}

// Delete implements remote.EntryWriter
func (a *SQLiteAdapter) Delete(ctx context.Context, userID, id string) error {
	return remote.WrapWrite("delete", a.service.DeleteEntry(ctx, userID, id))
}

// Watch implements remote.EntryWatcher
func (a *SQLiteAdapter) Watch(ctx context.Context, userID string) (<-chan []core.Entry, error) {
	changes, stop := a.changes.Subscribe(userID)

	initial, err := a.fetch(ctx, userID)
	if err != nil {
		stop()
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}

	out := make(chan []core.Entry, 1)
	out <- initial
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				stop()
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				entries, err := a.fetch(ctx, userID)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						slog.ErrorContext(ctx, "Failed to refetch entries", "user_id", userID, "error", err)
					}
					continue
				}
				remote.Offer(out, entries)
			}
		}
	}()
	return out, nil
}

// fetch coalesces concurrent reads of the same user's collection. Each caller
// gets its own copy of the shared result.
func (a *SQLiteAdapter) fetch(ctx context.Context, userID string) ([]core.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shareable := context.WithoutCancel(ctx)
	v, err, _ := a.fetches.Do(userID, func() (any, error) {
		return a.storage.ListEntries(shareable, userID)
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]core.Entry)
	out := make([]core.Entry, len(shared))
	copy(out, shared)
	return out, nil
}

func (a *SQLiteAdapter) notifyLocal(_ context.Context, userID string) error {
	a.changed(userID)
	return nil
}

// changed wakes the user's watchers. A read already in flight may predate
// the change, so later fetches must not join it.
func (a *SQLiteAdapter) changed(userID string) int {
	a.fetches.Forget(userID)
	return a.changes.Publish(userID, struct{}{})
}

// HandleEntriesChanged is the amqp.Handler for change messages from other
// processes sharing the database.
func (a *SQLiteAdapter) HandleEntriesChanged(ctx context.Context, msg *amqp.EntriesChangedMessage) error {
	if a.origin != "" && msg.Origin == a.origin {
		return nil
	}
	if n := a.changed(msg.UserID); n > 0 {
		slog.DebugContext(ctx, "Remote change triggered refetch", "user_id", msg.UserID, "watchers", n)
	}
	return nil
}

// Watchers returns the number of live watchers for a user.
func (a *SQLiteAdapter) Watchers(userID string) int {
	return a.changes.Count(userID)
}

// Categories returns the category collection stored alongside the entries.
func (a *SQLiteAdapter) Categories() remote.CategoryStore {
	return categoryStore{a.storage}
}

// Close ends every watch stream and closes the service, which owns the
// repository and notifiers.
func (a *SQLiteAdapter) Close() error {
	a.changes.CloseAll()
	return a.service.Close()
}

type categoryStore struct{ repo *storage.SQLiteRepository }

func (c categoryStore) List(ctx context.Context) ([]core.Category, error) {
	cats, err := c.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return cats, nil
}

func (c categoryStore) Put(ctx context.Context, cat core.Category) error {
	return remote.WrapWrite("put", c.repo.PutCategory(ctx, cat))
}

func (c categoryStore) Delete(ctx context.Context, name string) error {
	return remote.WrapWrite("delete", c.repo.DeleteCategory(ctx, name))
}

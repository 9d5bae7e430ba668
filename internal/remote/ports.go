// Package remote defines the boundary between the ledger core and the
// stores that hold the authoritative entry and category collections.
package remote

import (
	"context"

	"kakeibo/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryWriter mutates a user's entry collection.
	EntryWriter interface {
		// Create stores a new entry. The store assigns the id; it is not
		// returned and becomes visible through the next snapshot.
		Create(ctx context.Context, userID string, e core.Entry) error
		// Replace overwrites the entry with e.ID, creating it if absent.
		Replace(ctx context.Context, userID string, e core.Entry) error
		// Delete removes an entry. Unknown ids are not an error.
		Delete(ctx context.Context, userID, id string) error
	}

	// EntryWatcher streams full snapshots of a user's entry collection.
	EntryWatcher interface {
		// Watch sends the current collection immediately and again after
		// every change. The channel is closed once ctx is done, after the
		// listener has been released. Entry order is unspecified.
		Watch(ctx context.Context, userID string) (<-chan []core.Entry, error)
	}

	EntryStore interface {
		EntryWriter
		EntryWatcher
	}

	// CategoryStore is the global taxonomy collection, keyed by name.
	CategoryStore interface {
		List(ctx context.Context) ([]core.Category, error)
		// Put creates or replaces the category with c.Name.
		Put(ctx context.Context, c core.Category) error
		Delete(ctx context.Context, name string) error
	}
)

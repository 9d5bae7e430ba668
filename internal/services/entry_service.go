package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"kakeibo/internal/core"
)

// EntryRepository is the persistence the service writes through to.
type EntryRepository interface {
	CreateEntry(ctx context.Context, userID string, e core.Entry) (core.Entry, error)
	ReplaceEntry(ctx context.Context, userID string, e core.Entry) error
	DeleteEntry(ctx context.Context, userID, id string) (bool, error)
	ListEntries(ctx context.Context, userID string) ([]core.Entry, error)
}

// Notifier is told after a user's collection changed.
type Notifier interface {
	NotifyEntriesChanged(ctx context.Context, userID string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID string) error

func (f NotifierFunc) NotifyEntriesChanged(ctx context.Context, userID string) error {
	return f(ctx, userID)
}

// EntryService saves entries to storage, then fans out change notifications.
// A failed notification never fails the write: the entry is already stored.
type EntryService struct {
	storage   EntryRepository
	notifiers []Notifier
}

func NewEntryService(storage EntryRepository, notifiers ...Notifier) *EntryService {
	s := &EntryService{storage: storage}
	for _, n := range notifiers {
		s.AddNotifier(n)
	}
	return s
}

// AddNotifier registers n. Nil notifiers are ignored.
func (s *EntryService) AddNotifier(n Notifier) {
	if n != nil {
		s.notifiers = append(s.notifiers, n)
	}
}

// CreateEntry stores e and returns it with its assigned id.
func (s *EntryService) CreateEntry(ctx context.Context, userID string, e core.Entry) (core.Entry, error) {
	created, err := s.storage.CreateEntry(ctx, userID, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}
	s.notify(ctx, userID)
	return created, nil
}

// ReplaceEntry overwrites or inserts e.
func (s *EntryService) ReplaceEntry(ctx context.Context, userID string, e core.Entry) error {
	if err := s.storage.ReplaceEntry(ctx, userID, e); err != nil {
		return fmt.Errorf("replace entry: %w", err)
	}
	s.notify(ctx, userID)
	return nil
}

// DeleteEntry removes an entry. Nothing is announced when the id was unknown.
func (s *EntryService) DeleteEntry(ctx context.Context, userID, id string) error {
	deleted, err := s.storage.DeleteEntry(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if deleted {
		s.notify(ctx, userID)
	}
	return nil
}

// ListEntries returns the user's full collection.
func (s *EntryService) ListEntries(ctx context.Context, userID string) ([]core.Entry, error) {
	return s.storage.ListEntries(ctx, userID)
}

func (s *EntryService) notify(ctx context.Context, userID string) {
	for _, n := range s.notifiers {
		if err := n.NotifyEntriesChanged(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish change notification",
				"user_id", userID, "error", err)
		}
	}
}

// Close closes the storage and any notifier that holds a connection.
func (s *EntryService) Close() error {
	var errs []error

	if c, ok := s.storage.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	for _, n := range s.notifiers {
		if c, ok := n.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("notifier: %w", err))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close entry service: %w", err)
	}
	return nil
}

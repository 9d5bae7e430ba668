package memory

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"kakeibo/internal/core"
	"kakeibo/internal/remote"
)

// Store is an in-process remote store. It keeps per-user entry collections
// and the global category collection, and pushes a full snapshot to every
// watcher of a user after each change.
type Store struct {
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	entries map[string]map[string]core.Entry
	cats    []core.Category
	hub     *remote.Hub[[]core.Entry]
}

// Ensure interface conformance
var (
	_ remote.EntryStore    = (*Store)(nil)
	_ remote.CategoryStore = categoryStore{}
)

var (
	errEmptyUser     = errors.New("empty user id")
	errEmptyCategory = errors.New("empty category name")
)

func New(cats []core.Category) *Store {
	return &Store{
		entries: make(map[string]map[string]core.Entry),
		cats:    dedupeCategories(cats),
		hub:     remote.NewHub[[]core.Entry](),
		done:    make(chan struct{}),
	}
}

// NewFromFiles seeds the category collection from base/seed_categories.txt.
// Each line is "Category: sub1, sub2"; blank lines and # comments are skipped.
// A missing file leaves the collection empty, which callers treat as
// "use the built-in defaults".
func NewFromFiles(base string) *Store {
	return New(readCategories(filepath.Join(base, "seed_categories.txt")))
}

// Create implements remote.EntryWriter.
func (s *Store) Create(_ context.Context, userID string, e core.Entry) error {
	e.ID = uuid.NewString()
	return s.put(userID, e, "create")
}

// Replace implements remote.EntryWriter.
func (s *Store) Replace(_ context.Context, userID string, e core.Entry) error {
	if strings.TrimSpace(e.ID) == "" {
		return remote.WrapWrite("replace", core.ErrInvalidEntry)
	}
	return s.put(userID, e, "replace")
}

func (s *Store) put(userID string, e core.Entry, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrUnavailable
	}
	if strings.TrimSpace(userID) == "" {
		return remote.WrapWrite(op, errEmptyUser)
	}
	if s.entries[userID] == nil {
		s.entries[userID] = make(map[string]core.Entry)
	}
	s.entries[userID][e.ID] = e
	s.publishLocked(userID)
	return nil
}

// Delete implements remote.EntryWriter.
func (s *Store) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrUnavailable
	}
	if _, ok := s.entries[userID][id]; !ok {
		return nil
	}
	delete(s.entries[userID], id)
	s.publishLocked(userID)
	return nil
}

// Watch implements remote.EntryWatcher.
func (s *Store) Watch(ctx context.Context, userID string) (<-chan []core.Entry, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, remote.ErrUnavailable
	}
	ch, unsubscribe := s.hub.SubscribeWith(userID, s.snapshotLocked(userID))
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		unsubscribe()
	}()
	return ch, nil
}

// Watchers returns the number of live watchers for a user.
func (s *Store) Watchers(userID string) int {
	return s.hub.Count(userID)
}

// Entries returns a copy of a user's collection.
func (s *Store) Entries(userID string) []core.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(userID)
}

func (s *Store) publishLocked(userID string) {
	if s.hub.Count(userID) == 0 {
		return
	}
	s.hub.Publish(userID, s.snapshotLocked(userID))
}

// snapshotLocked builds a fresh slice from the map, so order is unspecified.
func (s *Store) snapshotLocked(userID string) []core.Entry {
	out := make([]core.Entry, 0, len(s.entries[userID]))
	for _, e := range s.entries[userID] {
		out = append(out, e)
	}
	return out
}

// List implements remote.CategoryStore.
func (s *Store) List(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrUnavailable
	}
	out := make([]core.Category, len(s.cats))
	for i, c := range s.cats {
		out[i] = c.Clone()
	}
	return out, nil
}

// Put implements remote.CategoryStore.
func (s *Store) Put(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrUnavailable
	}
	if strings.TrimSpace(c.Name) == "" {
		return remote.WrapWrite("put", errEmptyCategory)
	}
	for i := range s.cats {
		if s.cats[i].Name == c.Name {
			s.cats[i] = c.Clone()
			return nil
		}
	}
	s.cats = append(s.cats, c.Clone())
	return nil
}

// DeleteCategory removes a category by name. Store.Delete removes entries, so
// the remote.CategoryStore view is provided by Categories.
func (s *Store) DeleteCategory(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrUnavailable
	}
	for i := range s.cats {
		if s.cats[i].Name == name {
			s.cats = append(s.cats[:i], s.cats[i+1:]...)
			return nil
		}
	}
	return nil
}

// Categories adapts the store to remote.CategoryStore.
func (s *Store) Categories() remote.CategoryStore {
	return categoryStore{s}
}

type categoryStore struct{ s *Store }

func (c categoryStore) List(ctx context.Context) ([]core.Category, error) { return c.s.List(ctx) }
func (c categoryStore) Put(ctx context.Context, cat core.Category) error  { return c.s.Put(ctx, cat) }
func (c categoryStore) Delete(ctx context.Context, name string) error {
	return c.s.DeleteCategory(ctx, name)
}

// Close makes every later call fail with remote.ErrUnavailable and ends the
// stream of every watcher.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	s.hub.CloseAll()
	return nil
}

func readCategories(path string) []core.Category {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.Category
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, subs, _ := strings.Cut(line, ":")
		out = append(out, core.Category{Name: name, Sub: strings.Split(subs, ",")})
	}
	return dedupeCategories(out)
}

// dedupeCategories trims names, drops blanks and merges duplicates while
// preserving first-seen order.
func dedupeCategories(in []core.Category) []core.Category {
	index := map[string]int{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, core.Category{Name: name, Sub: []string{}})
		}
		for _, sub := range c.Sub {
			sub = strings.TrimSpace(sub)
			if sub == "" || out[i].HasSub(sub) {
				continue
			}
			out[i].Sub = append(out[i].Sub, sub)
		}
	}
	return out
}

// Package taxonomy maintains the two-level category list offered when tagging
// entries.
//
// The list is fetched from the remote store once, at Load. Additions are
// written back on a best-effort basis. Deletions only change local state and
// are recorded so that the divergence from the remote collection can be
// inspected with Divergence and pushed explicitly with Reconcile. Entries are
// never touched: a deleted category stays on the entries that carry it.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/remote"
	"kakeibo/internal/task"
)

var ErrEmptyName = errors.New("empty category name")

// DefaultCategories is the starter set used when the remote collection is empty.
func DefaultCategories() []core.Category {
	return []core.Category{
		{Name: "食費", Sub: []string{"食料品", "外食", "カフェ"}},
		{Name: "日用品", Sub: []string{}},
		{Name: "交通費", Sub: []string{"電車", "バス", "タクシー"}},
		{Name: "住居", Sub: []string{"家賃"}},
		{Name: "水道光熱費", Sub: []string{"電気", "ガス", "水道"}},
		{Name: "通信費", Sub: []string{"携帯", "インターネット"}},
		{Name: "娯楽", Sub: []string{}},
		{Name: "給与", Sub: []string{}},
		{Name: "副業", Sub: []string{}},
	}
}

// Divergence lists local deletions that the remote collection does not reflect.
type Divergence struct {
	Categories    []string            // deleted locally, still present remotely
	SubCategories map[string][]string // category -> subs deleted locally
}

// Empty reports whether local and remote agree as far as deletions go.
func (d Divergence) Empty() bool {
	return len(d.Categories) == 0 && len(d.SubCategories) == 0
}

// Taxonomy is safe for concurrent use.
type Taxonomy struct {
	store  remote.CategoryStore
	logger *log.Logger

	mu          sync.Mutex
	cats        []core.Category
	deletedCats []string
	deletedSubs map[string][]string
}

func New(store remote.CategoryStore, logger *log.Logger) *Taxonomy {
	if logger == nil {
		logger = log.Discard()
	}
	return &Taxonomy{
		store:       store,
		logger:      logger.WithComponent(log.ComponentTaxonomy),
		cats:        DefaultCategories(),
		deletedSubs: map[string][]string{},
	}
}

// Load fetches the remote collection once and replaces the local list with
// it. When the remote collection is empty the defaults are used. A fetch
// error also leaves the defaults in place and is returned so the caller can
// report it.
func (t *Taxonomy) Load(ctx context.Context) ([]core.Category, error) {
	remoteCats, err := t.store.List(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.deletedCats = nil
	t.deletedSubs = map[string][]string{}

	switch {
	case err != nil:
		t.cats = DefaultCategories()
		t.logger.ErrorContext(ctx, "Failed to load categories, using defaults",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err)
		return cloneAll(t.cats), fmt.Errorf("load categories: %w", err)
	case len(remoteCats) == 0:
		t.cats = DefaultCategories()
		t.logger.InfoContext(ctx, "Remote category collection empty, using defaults",
			log.FieldCount, len(t.cats))
	default:
		t.cats = cloneAll(remoteCats)
		t.logger.InfoContext(ctx, "Categories loaded",
			log.FieldOperation, log.OpLoad,
			log.FieldCount, len(t.cats))
	}
	return cloneAll(t.cats), nil
}

// Categories returns a copy of the current list.
func (t *Taxonomy) Categories() []core.Category {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneAll(t.cats)
}

// Names returns the category names in display order.
func (t *Taxonomy) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.cats))
	for i, c := range t.cats {
		out[i] = c.Name
	}
	return out
}

// Has reports whether name is a category (exact, case-sensitive match).
func (t *Taxonomy) Has(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.indexLocked(name) >= 0
}

// SubCategories returns the subs of name, or nil if it is not a category.
func (t *Taxonomy) SubCategories(name string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(name)
	if i < 0 {
		return nil
	}
	return append([]string{}, t.cats[i].Sub...)
}

// AddCategory appends {name, []} and persists it. It is a no-op when the
// category already exists.
func (t *Taxonomy) AddCategory(ctx context.Context, name string) *task.Task {
	name = strings.TrimSpace(name)
	if name == "" {
		return task.Failed(ErrEmptyName)
	}

	t.mu.Lock()
	if t.indexLocked(name) >= 0 {
		t.mu.Unlock()
		return task.Completed()
	}
	c := core.Category{Name: name, Sub: []string{}}
	t.cats = append(t.cats, c)
	t.deletedCats = remove(t.deletedCats, name)
	delete(t.deletedSubs, name)
	t.mu.Unlock()

	return t.put(ctx, c)
}

// AddSubCategory appends sub to category and persists the updated list. It
// is a no-op when the sub already exists or the category does not.
func (t *Taxonomy) AddSubCategory(ctx context.Context, category, sub string) *task.Task {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return task.Failed(ErrEmptyName)
	}

	t.mu.Lock()
	i := t.indexLocked(category)
	if i < 0 || t.cats[i].HasSub(sub) {
		t.mu.Unlock()
		return task.Completed()
	}
	t.cats[i].Sub = append(t.cats[i].Sub, sub)
	if subs := remove(t.deletedSubs[category], sub); len(subs) > 0 {
		t.deletedSubs[category] = subs
	} else {
		delete(t.deletedSubs, category)
	}
	c := t.cats[i].Clone()
	t.mu.Unlock()

	return t.put(ctx, c)
}

// DeleteCategory removes name from the local list only.
func (t *Taxonomy) DeleteCategory(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(name)
	if i < 0 {
		return false
	}
	t.cats = append(t.cats[:i], t.cats[i+1:]...)
	t.deletedCats = append(remove(t.deletedCats, name), name)
	delete(t.deletedSubs, name)
	t.logger.Info("Category deleted locally", log.FieldCategory, name)
	return true
}

// DeleteSubCategory removes sub from category in the local list only.
func (t *Taxonomy) DeleteSubCategory(category, sub string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(category)
	if i < 0 || !t.cats[i].HasSub(sub) {
		return false
	}
	t.cats[i].Sub = remove(t.cats[i].Sub, sub)
	t.deletedSubs[category] = append(remove(t.deletedSubs[category], sub), sub)
	t.logger.Info("Sub-category deleted locally",
		log.FieldCategory, category,
		log.FieldSubCategory, sub)
	return true
}

// Divergence reports local deletions not yet pushed to the remote store.
func (t *Taxonomy) Divergence() Divergence {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := Divergence{
		Categories:    append([]string{}, t.deletedCats...),
		SubCategories: make(map[string][]string, len(t.deletedSubs)),
	}
	for k, v := range t.deletedSubs {
		d.SubCategories[k] = append([]string{}, v...)
	}
	return d
}

// Reconcile pushes pending local deletions to the remote store. Deletions
// that fail stay pending; the returned error joins every failure.
func (t *Taxonomy) Reconcile(ctx context.Context) error {
	t.mu.Lock()
	cats := append([]string{}, t.deletedCats...)
	var updates []core.Category
	pending := make(map[string][]string, len(t.deletedSubs))
	for name, subs := range t.deletedSubs {
		if i := t.indexLocked(name); i >= 0 {
			updates = append(updates, t.cats[i].Clone())
			pending[name] = append([]string{}, subs...)
		}
	}
	t.mu.Unlock()

	var errs []error
	for _, name := range cats {
		if err := t.store.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, remote.WrapWrite("delete", err)))
			continue
		}
		t.mu.Lock()
		t.deletedCats = remove(t.deletedCats, name)
		t.mu.Unlock()
	}
	for _, c := range updates {
		if err := t.store.Put(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("put %s: %w", c.Name, remote.WrapWrite("put", err)))
			continue
		}
		// A sub deleted or restored while the put was in flight stays pending.
		t.mu.Lock()
		if slices.Equal(t.deletedSubs[c.Name], pending[c.Name]) {
			delete(t.deletedSubs, c.Name)
		}
		t.mu.Unlock()
	}

	err := errors.Join(errs...)
	if err != nil {
		t.logger.ErrorContext(ctx, "Taxonomy reconcile incomplete",
			log.FieldOperation, log.OpReconcile,
			log.FieldError, err)
	} else {
		t.logger.InfoContext(ctx, "Taxonomy reconciled",
			log.FieldOperation, log.OpReconcile,
			log.FieldCount, len(cats)+len(updates))
	}
	return err
}

func (t *Taxonomy) put(ctx context.Context, c core.Category) *task.Task {
	wctx := context.WithoutCancel(ctx)
	return task.Run(func() error {
		if err := t.store.Put(wctx, c); err != nil {
			err = remote.WrapWrite("put", err)
			t.logger.ErrorContext(wctx, "Failed to persist category",
				log.FieldCategory, c.Name,
				log.FieldError, err)
			return err
		}
		return nil
	})
}

func (t *Taxonomy) indexLocked(name string) int {
	for i := range t.cats {
		if t.cats[i].Name == name {
			return i
		}
	}
	return -1
}

func cloneAll(in []core.Category) []core.Category {
	out := make([]core.Category, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func remove(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/badrabdoph/sitekeeper/internal/common"
	"github.com/badrabdoph/sitekeeper/internal/logging"
)

// Collection is the generic keyed-JSON persistence layer for one entity
// type. All operations are safe for concurrent use; the collection file is
// read at most once per process lifetime.
type Collection[T any, PT Document[T]] struct {
	name       string
	path       string
	legacyPath string
	log        logging.Logger
	queue      Enqueuer
	now        func() time.Time
	sorted     bool

	mu     sync.Mutex
	loaded bool
	items  []PT
}

// Option configures a Collection.
type Option[T any, PT Document[T]] func(*Collection[T, PT])

// WithEnqueuer mirrors every successful write to the given sync queue.
func WithEnqueuer[T any, PT Document[T]](q Enqueuer) Option[T, PT] {
	return func(c *Collection[T, PT]) { c.queue = q }
}

// WithClock overrides the time source, for tests.
func WithClock[T any, PT Document[T]](now func() time.Time) Option[T, PT] {
	return func(c *Collection[T, PT]) { c.now = now }
}

// WithLegacyPath consults a legacy file location once when the canonical
// file is absent; the canonical file is rewritten immediately after a
// successful migration read.
func WithLegacyPath[T any, PT Document[T]](path string) Option[T, PT] {
	return func(c *Collection[T, PT]) { c.legacyPath = path }
}

// NewCollection creates a collection persisted at dir/name.
func NewCollection[T any, PT Document[T]](name, dir string, log logging.Logger, opts ...Option[T, PT]) *Collection[T, PT] {
	c := &Collection[T, PT]{
		name: name,
		path: filepath.Join(dir, name),
		log:  log.With("module", "store", "collection", name),
		now:  time.Now,
	}
	_, c.sorted = any(PT(new(T))).(Ordered)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the collection file name.
func (c *Collection[T, PT]) Name() string { return c.name }

// ensureLoaded loads the collection file under the collection mutex, so
// concurrent first callers observe exactly one disk read. Read failures are
// absorbed: a missing file yields an empty collection, any other failure
// yields an empty collection and a warning.
func (c *Collection[T, PT]) ensureLoaded(ctx context.Context) {
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) && c.legacyPath != "" {
		if legacy, legacyErr := os.ReadFile(c.legacyPath); legacyErr == nil {
			c.migrate(ctx, legacy)
			return
		}
	}
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn(ctx, "read failed, starting empty", "path", c.path, "error", err)
		}
		return
	}

	var items []PT
	if err := json.Unmarshal(data, &items); err != nil {
		c.log.Warn(ctx, "corrupt collection file, starting empty", "path", c.path, "error", err)
		return
	}
	c.items = items
}

// migrate loads the legacy payload and rewrites the canonical file.
func (c *Collection[T, PT]) migrate(ctx context.Context, data []byte) {
	var items []PT
	if err := json.Unmarshal(data, &items); err != nil {
		c.log.Warn(ctx, "corrupt legacy file, starting empty", "path", c.legacyPath, "error", err)
		return
	}
	if err := c.commit(ctx, items); err != nil {
		c.log.Warn(ctx, "migration rewrite failed", "path", c.path, "error", err)
		return
	}
	c.log.Info(ctx, "migrated legacy collection file", "from", c.legacyPath, "to", c.path)
}

// commit serializes next, writes it to disk, and only then swaps the
// in-memory slice and mirrors the content to the sync queue. A failed write
// leaves the previous in-memory state intact and consistent with disk.
func (c *Collection[T, PT]) commit(ctx context.Context, next []PT) error {
	if next == nil {
		next = []PT{}
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.name, err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(c.path), err)
	}
	if err := os.WriteFile(c.path, data, 0o660); err != nil {
		return fmt.Errorf("write %s: %w", c.name, err)
	}
	c.items = next
	if c.queue != nil {
		c.queue.Enqueue(c.name, string(data))
	}
	return nil
}

// snapshot returns a copy of the live slice, sorted when the entity defines
// a sort order.
func (c *Collection[T, PT]) snapshot() []PT {
	out := make([]PT, len(c.items))
	copy(out, c.items)
	if c.sorted {
		sort.SliceStable(out, func(i, j int) bool {
			return any(out[i]).(Ordered).Order() < any(out[j]).(Ordered).Order()
		})
	}
	return out
}

// List returns all documents, sorted ascending by sort order where the
// entity defines one, otherwise in load order. Returned documents are
// shared with the collection and must be treated as read-only; mutations
// go through Update or UpsertByKey.
func (c *Collection[T, PT]) List(ctx context.Context) []PT {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)
	return c.snapshot()
}

// GetByID returns the document with the given id, or nil. The returned
// document is shared with the collection and must be treated as read-only.
func (c *Collection[T, PT]) GetByID(ctx context.Context, id int) PT {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)
	for _, item := range c.items {
		if item.DocMeta().ID == id {
			return item
		}
	}
	return nil
}

// GetByKey returns the document with the given unique key, or nil. The
// returned document is shared with the collection and must be treated as
// read-only.
func (c *Collection[T, PT]) GetByKey(ctx context.Context, key string) PT {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)
	return c.findByKey(key)
}

func (c *Collection[T, PT]) findByKey(key string) PT {
	for _, item := range c.items {
		if item.DocKey() == key {
			return item
		}
	}
	return nil
}

// nextID allocates max(existing ids)+1 over the remaining rows.
func (c *Collection[T, PT]) nextID() int {
	max := 0
	for _, item := range c.items {
		if id := item.DocMeta().ID; id > max {
			max = id
		}
	}
	return max + 1
}

// Create inserts input as a new document, assigning the next id and setting
// both timestamps to now.
func (c *Collection[T, PT]) Create(ctx context.Context, input PT) (PT, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)

	input.DocMeta().ID = c.nextID()
	input.Stamp(c.now())

	next := append(c.snapshotUnsorted(), input)
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}
	return input, nil
}

// deepCopy clones a document through its JSON form, so mutating the copy
// can never reach slices or maps shared with the original.
func deepCopy[T any, PT Document[T]](item PT) (PT, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	clone := PT(new(T))
	if err := json.Unmarshal(data, clone); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	return clone, nil
}

// Update applies mutate to a deep copy of the document with the given id,
// refreshes UpdatedAt, and persists. Previously returned documents and
// history snapshots are unaffected by the mutation. Returns
// common.ErrNotFound when the id is absent.
func (c *Collection[T, PT]) Update(ctx context.Context, id int, mutate func(PT)) (PT, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)

	next := c.snapshotUnsorted()
	for i, item := range next {
		if item.DocMeta().ID != id {
			continue
		}
		updated, err := deepCopy[T, PT](item)
		if err != nil {
			return nil, err
		}
		mutate(updated)
		updated.DocMeta().ID = id
		updated.DocMeta().CreatedAt = item.DocMeta().CreatedAt
		updated.Touch(c.now())
		next[i] = updated
		if err := c.commit(ctx, next); err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, common.ErrNotFound
}

// UpsertByKey updates the document whose key matches input, preserving its
// id and CreatedAt; on a new key it behaves like Create.
func (c *Collection[T, PT]) UpsertByKey(ctx context.Context, input PT) (PT, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)

	existing := c.findByKey(input.DocKey())
	if existing == nil {
		input.DocMeta().ID = c.nextID()
		input.Stamp(c.now())
		next := append(c.snapshotUnsorted(), input)
		if err := c.commit(ctx, next); err != nil {
			return nil, err
		}
		return input, nil
	}

	*input.DocMeta() = *existing.DocMeta()
	input.Touch(c.now())

	next := c.snapshotUnsorted()
	for i, item := range next {
		if item.DocMeta().ID == existing.DocMeta().ID {
			next[i] = input
		}
	}
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}
	return input, nil
}

// Put inserts the snapshot if its id is absent, overwrites in place if
// present, and refreshes UpdatedAt. Used by history restore.
func (c *Collection[T, PT]) Put(ctx context.Context, snapshot PT) (PT, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)

	snapshot.Touch(c.now())

	next := c.snapshotUnsorted()
	replaced := false
	for i, item := range next {
		if item.DocMeta().ID == snapshot.DocMeta().ID {
			next[i] = snapshot
			replaced = true
		}
	}
	if !replaced {
		next = append(next, snapshot)
	}
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Delete removes the document with the given id and returns it, so callers
// needing a pre-deletion snapshot get one from inside the critical section.
// Deleting a non-existent id is not an error; it returns nil.
func (c *Collection[T, PT]) Delete(ctx context.Context, id int) (PT, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)

	next := make([]PT, 0, len(c.items))
	var removed PT
	for _, item := range c.items {
		if item.DocMeta().ID == id {
			removed = item
			continue
		}
		next = append(next, item)
	}
	if removed == nil {
		return nil, nil
	}
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}
	return removed, nil
}

func (c *Collection[T, PT]) snapshotUnsorted() []PT {
	out := make([]PT, len(c.items))
	copy(out, c.items)
	return out
}

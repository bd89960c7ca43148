// Package history implements the append-only snapshot ledger recorded for
// every package mutation, enabling restore of prior state.
package history

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

	"github.com/badrabdoph/sitekeeper/internal/content"
	"github.com/badrabdoph/sitekeeper/internal/logging"
	"github.com/badrabdoph/sitekeeper/internal/store"
)

// Action classifies the mutation a ledger entry records.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionRestore  Action = "restore"
	ActionSnapshot Action = "snapshot"
)

// Entry is one immutable ledger record. The snapshot is taken from the
// post-mutation state for create/update and the pre-deletion state for
// delete, so a restore can always reconstruct the exact prior row.
type Entry struct {
	ID        int64           `json:"id"`
	PackageID int             `json:"packageId"`
	Action    Action          `json:"action"`
	Snapshot  content.Package `json:"snapshot"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Ledger is the file-backed entry log. Entries are never evicted; Clear is
// the only way to drop them.
type Ledger struct {
	name  string
	path  string
	log   logging.Logger
	queue store.Enqueuer
	now   func() time.Time

	mu      sync.Mutex
	loaded  bool
	lastID  int64
	entries []Entry
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithEnqueuer mirrors every successful ledger write to the sync queue.
func WithEnqueuer(q store.Enqueuer) Option {
	return func(l *Ledger) { l.queue = q }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a ledger persisted at dir/name.
func NewLedger(name, dir string, log logging.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		name: name,
		path: filepath.Join(dir, name),
		log:  log.With("module", "history"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) ensureLoaded(ctx context.Context) {
	if l.loaded {
		return
	}
	l.loaded = true

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.log.Warn(ctx, "read failed, starting empty", "path", l.path, "error", err)
		}
		return
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.log.Warn(ctx, "corrupt ledger file, starting empty", "path", l.path, "error", err)
		return
	}
	l.entries = entries
	for _, e := range entries {
		if e.ID > l.lastID {
			l.lastID = e.ID
		}
	}
}

func (l *Ledger) commit(ctx context.Context, next []Entry) error {
	if next == nil {
		next = []Entry{}
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", l.name, err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(l.path), err)
	}
	if err := os.WriteFile(l.path, data, 0o660); err != nil {
		return fmt.Errorf("write %s: %w", l.name, err)
	}
	l.entries = next
	if l.queue != nil {
		l.queue.Enqueue(l.name, string(data))
	}
	return nil
}

// Record appends an entry for the given action and snapshot. Entry ids are
// time-based and bumped on collision so two records in the same millisecond
// stay distinct.
func (l *Ledger) Record(ctx context.Context, action Action, snapshot content.Package) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	now := l.now()
	id := now.UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}

	entry := Entry{
		ID:        id,
		PackageID: snapshot.ID,
		Action:    action,
		Snapshot:  snapshot.Clone(),
		CreatedAt: now,
	}

	next := make([]Entry, len(l.entries), len(l.entries)+1)
	copy(next, l.entries)
	next = append(next, entry)

	if err := l.commit(ctx, next); err != nil {
		return Entry{}, err
	}
	l.lastID = id
	return entry, nil
}

// List returns all entries sorted newest-first.
func (l *Ledger) List(ctx context.Context) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// GetByID returns the entry with the given id, or false.
func (l *Ledger) GetByID(ctx context.Context, id int64) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Clear drops all entries. This is the only eviction the ledger supports.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	return l.commit(ctx, nil)
}

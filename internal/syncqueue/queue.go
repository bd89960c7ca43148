// Package syncqueue implements the debounced, coalescing write-behind layer
// that mirrors local collection writes to the remote durable backend.
package syncqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/badrabdoph/sitekeeper/internal/logging"
)

// File is one pending payload. The queue keeps at most one per name; a
// newer write for the same name replaces the older pending payload.
type File struct {
	Name    string
	Content string
}

// Committer pushes one batch of files to the remote backend atomically.
// Implemented by github.Client.
type Committer interface {
	Commit(ctx context.Context, files []File) error
}

// Queue coalesces writes per file name and flushes them in one remote
// commit after a fixed debounce window. Remote sync is best-effort: commit
// errors are logged and the batch is dropped; local files are unaffected.
type Queue struct {
	debounce  time.Duration
	committer Committer
	log       logging.Logger

	mu      sync.Mutex
	pending map[string]string
	timer   *time.Timer
}

// New creates a queue. A nil committer disables remote sync entirely:
// Enqueue becomes a no-op.
func New(committer Committer, debounce time.Duration, log logging.Logger) *Queue {
	return &Queue{
		debounce:  debounce,
		committer: committer,
		log:       log.With("module", "syncqueue"),
		pending:   make(map[string]string),
	}
}

// Enqueue stores content under name, replacing any prior pending value, and
// restarts the debounce timer. All enqueues inside one debounce window are
// coalesced into a single flush. Fire-and-forget.
func (q *Queue) Enqueue(name, content string) {
	if q.committer == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending[name] = content
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.debounce, q.flush)
}

// flush drains the entire pending map synchronously before any network I/O,
// so writes that arrive during the in-flight commit start a fresh debounce
// cycle instead of being lost or duplicated into this batch.
func (q *Queue) flush() {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	files := make([]File, 0, len(q.pending))
	for name, content := range q.pending {
		files = append(files, File{Name: name, Content: content})
	}
	q.pending = make(map[string]string)
	q.mu.Unlock()

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	ctx := context.Background()
	if err := q.committer.Commit(ctx, files); err != nil {
		q.log.Error(ctx, "remote sync failed, dropping batch", "files", len(files), "error", err)
		return
	}
	q.log.Info(ctx, "remote sync complete", "files", len(files))
}

// Close cancels the debounce timer and flushes anything still pending.
// Intended for graceful shutdown.
func (q *Queue) Close() {
	if q.committer == nil {
		return
	}
	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
	}
	q.mu.Unlock()
	q.flush()
}

// Package store implements the file-backed keyed document store shared by
// every entity collection: one JSON array file per entity, loaded lazily
// into memory, reads served from memory, writes written through to disk and
// mirrored to the remote sync queue.
package store

import "time"

// Meta holds the fields shared by every persisted document. Entity types
// embed it to satisfy the Document constraint.
type Meta struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocMeta returns the embedded metadata block.
func (m *Meta) DocMeta() *Meta { return m }

// DocKey returns the entity-dependent unique key. The default is no key;
// keyed entity types shadow this method.
func (m *Meta) DocKey() string { return "" }

// Stamp initializes both timestamps at creation time.
func (m *Meta) Stamp(now time.Time) {
	m.CreatedAt = now
	m.UpdatedAt = now
}

// Touch refreshes UpdatedAt. CreatedAt is immutable after creation.
func (m *Meta) Touch(now time.Time) {
	m.UpdatedAt = now
}

// Document is the constraint every collection element must satisfy. It is
// implemented for free by embedding Meta; keyed types additionally shadow
// DocKey.
type Document[T any] interface {
	*T
	DocMeta() *Meta
	DocKey() string
	Stamp(now time.Time)
	Touch(now time.Time)
}

// Ordered is implemented by entity types that define an explicit sort
// order; List returns such collections sorted ascending by Order.
type Ordered interface {
	Order() int
}

// Enqueuer receives the serialized content of every successful collection
// write, keyed by file name. Implemented by syncqueue.Queue.
type Enqueuer interface {
	Enqueue(name, content string)
}

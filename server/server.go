// Package server holds the backend-facing command sinks of the engine.
//
// Scene code never talks to a renderer, physics engine or window directly.
// It submits declarative state to a [Rendering], [Physics] or [Display]
// server: "this drawable has this mesh, material and transform", "this
// collider has this shape". Submissions are buffered for the current frame
// and handed to the backend in one batch by Flush, which the tree calls
// once per frame. Swapping the backend never touches scene code.
//
// Within a frame the last write for an id wins, and removing an id cancels
// any pending write for it. Batches are delivered sorted by id.
package server

import (
	"cmp"
	"errors"
	"slices"
)

// Errors returned by submission calls.
var (
	ErrUnknownID   = errors.New("server: unknown id")
	ErrInvalidSize = errors.New("server: invalid size")
)

// Color is an RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default tint.
var ColorWhite = Color{1, 1, 1, 1}

// Update is one buffered write: the latest value submitted for ID.
type Update[ID ~uint32, V any] struct {
	ID    ID
	Value V
}

// batch buffers one frame of submissions keyed by id.
type batch[ID ~uint32, V any] struct {
	set     map[ID]V
	removed map[ID]struct{}
	created map[ID]struct{}
}

func newBatch[ID ~uint32, V any]() *batch[ID, V] {
	return &batch[ID, V]{
		set:     make(map[ID]V),
		removed: make(map[ID]struct{}),
		created: make(map[ID]struct{}),
	}
}

func (b *batch[ID, V]) create(id ID) {
	b.created[id] = struct{}{}
}

func (b *batch[ID, V]) put(id ID, v V) {
	b.set[id] = v
}

// remove cancels a pending write. An id created and removed within the
// same frame never reaches the backend.
func (b *batch[ID, V]) remove(id ID) {
	delete(b.set, id)
	if _, ok := b.created[id]; ok {
		delete(b.created, id)
		return
	}
	b.removed[id] = struct{}{}
}

func (b *batch[ID, V]) empty() bool {
	return len(b.set) == 0 && len(b.removed) == 0
}

// drain appends the buffered writes and removals, sorted by id, and resets
// the batch.
func (b *batch[ID, V]) drain(updates []Update[ID, V], removed []ID) ([]Update[ID, V], []ID) {
	for id, v := range b.set {
		updates = append(updates, Update[ID, V]{ID: id, Value: v})
	}
	for id := range b.removed {
		removed = append(removed, id)
	}
	slices.SortFunc(updates, func(a, b Update[ID, V]) int { return cmp.Compare(a.ID, b.ID) })
	slices.Sort(removed)
	clear(b.set)
	clear(b.removed)
	clear(b.created)
	return updates, removed
}

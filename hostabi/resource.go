package hostabi

import (
	"sync"
)

// Handle identifies a resource held on the host side of the boundary.
// Handle 0 is never allocated and always refers to nothing.
type Handle = uint32

// Table[T] is a thread-safe handle table for resources that are
// exclusively owned by the foreign caller: the caller holds the only
// handle and must eventually Remove it (free) or Take it (consume).
// T should be the concrete Go type of the resource (e.g. *Builder).
type Table[T any] struct {
	mu      sync.RWMutex
	handles map[Handle]T
	nextID  Handle
	destroy func(T)
}

// NewTable creates a handle table for exclusively owned resources.
// destroy, if non-nil, runs when a resource is removed via Remove; it
// does not run on Take, because Take transfers ownership to the caller.
func NewTable[T any](destroy func(T)) *Table[T] {
	return &Table[T]{
		handles: make(map[Handle]T),
		destroy: destroy,
	}
}

// Add stores a new resource and returns a handle to it.
func (t *Table[T]) Add(resource T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.handles[t.nextID] = resource
	return t.nextID
}

// Get retrieves a resource by its handle.
func (t *Table[T]) Get(handle Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res, ok := t.handles[handle]
	return res, ok
}

// Take removes the resource from the table and returns it, consuming the
// handle. Any later operation on the handle fails its Get.
func (t *Table[T]) Take(handle Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, ok := t.handles[handle]
	if ok {
		delete(t.handles, handle)
	}
	return res, ok
}

// Remove destroys the resource behind the handle. Removing an unknown or
// zero handle is a no-op.
func (t *Table[T]) Remove(handle Handle) {
	t.mu.Lock()
	res, ok := t.handles[handle]
	if ok {
		delete(t.handles, handle)
	}
	t.mu.Unlock()
	if ok && t.destroy != nil {
		t.destroy(res)
	}
}

// Len reports the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handles)
}

type sharedEntry[T any] struct {
	value T
	refs  int
}

// SharedTable[T] is a thread-safe handle table for immutable resources
// with shared ownership. Each handle carries a reference count: Add
// starts it at one, Retain increments it, and Release decrements it,
// destroying the resource when the count reaches zero. The resource
// itself must be immutable; the table takes no lock around its use.
type SharedTable[T any] struct {
	mu      sync.Mutex
	handles map[Handle]*sharedEntry[T]
	nextID  Handle
	destroy func(T)
}

// NewSharedTable creates a handle table for shared ref-counted resources.
func NewSharedTable[T any](destroy func(T)) *SharedTable[T] {
	return &SharedTable[T]{
		handles: make(map[Handle]*sharedEntry[T]),
		destroy: destroy,
	}
}

// Add stores a resource with a reference count of one.
func (t *SharedTable[T]) Add(resource T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.handles[t.nextID] = &sharedEntry[T]{value: resource, refs: 1}
	return t.nextID
}

// Get retrieves a resource by its handle without touching the count.
func (t *SharedTable[T]) Get(handle Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[handle]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Retain increments the reference count of a live handle.
func (t *SharedTable[T]) Retain(handle Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[handle]
	if !ok {
		return false
	}
	e.refs++
	return true
}

// Release decrements the reference count, destroying the resource and
// invalidating the handle when the count reaches zero. Releasing an
// unknown or zero handle is a no-op.
func (t *SharedTable[T]) Release(handle Handle) {
	t.mu.Lock()
	e, ok := t.handles[handle]
	var dead bool
	if ok {
		e.refs--
		if e.refs <= 0 {
			delete(t.handles, handle)
			dead = true
		}
	}
	t.mu.Unlock()
	if dead && t.destroy != nil {
		t.destroy(e.value)
	}
}

// Refs reports the current reference count, or zero for a dead handle.
func (t *SharedTable[T]) Refs(handle Handle) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[handle]
	if !ok {
		return 0
	}
	return e.refs
}

// Len reports the number of live handles.
func (t *SharedTable[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

package live

import (
	"slices"
	"sync"
)

// callbackList keeps callbacks in registration order. The slice is replaced
// on every change so get can hand it out without copying.
type callbackList[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	callbacks []callbackEntry[T]
}

type callbackEntry[T any] struct {
	id uint64
	fn T
}

func (l *callbackList[T]) add(fn T) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	next := slices.Clone(l.callbacks)
	next = append(next, callbackEntry[T]{id: id, fn: fn})
	l.callbacks = next

	return func() { l.remove(id) }
}

func (l *callbackList[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := slices.IndexFunc(l.callbacks, func(e callbackEntry[T]) bool { return e.id == id })
	if i < 0 {
		return
	}
	next := slices.Clone(l.callbacks)
	next = slices.Delete(next, i, i+1)
	l.callbacks = next
}

func (l *callbackList[T]) get() []T {
	l.mu.Lock()
	entries := l.callbacks
	l.mu.Unlock()

	fns := make([]T, len(entries))
	for i, e := range entries {
		fns[i] = e.fn
	}
	return fns
}

func (l *callbackList[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.callbacks)
}

package repository

import (
	"context"
	"sync"
)

// MemorySlotLocker serializes callers per key within one process.
type MemorySlotLocker struct {
	mu    sync.Mutex
	slots map[string]*slotEntry
}

type slotEntry struct {
	sem  chan struct{}
	refs int
}

func NewMemorySlotLocker() *MemorySlotLocker {
	return &MemorySlotLocker{slots: make(map[string]*slotEntry)}
}

func (l *MemorySlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.slots[key]
	if !ok {
		entry = &slotEntry{sem: make(chan struct{}, 1)}
		l.slots[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(key, entry)
		})
	}, nil
}

func (l *MemorySlotLocker) release(key string, entry *slotEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.slots, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (l *MemorySlotLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

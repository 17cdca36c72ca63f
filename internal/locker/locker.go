// Package locker serializes work per key. The dialog router holds a lock
// on the user key for the whole of one inbound event, and the scheduled
// jobs use TryLock so overlapping runs are skipped instead of queued.
package locker

import (
	"context"
	"sync"
)

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

type Locker interface {
	// Lock blocks until key is free or ctx is done.
	Lock(ctx context.Context, key string) (Unlock, error)
	// TryLock acquires key only if it is free right now.
	TryLock(ctx context.Context, key string) (Unlock, bool, error)
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex. Entries are dropped as soon as
// nobody holds or waits on them so the map does not grow with every user.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewLocal() *Local {
	return &Local{entries: make(map[string]*entry)}
}

func (l *Local) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	e := l.acquire(key)
	select {
	case e.ch <- struct{}{}:
		return l.unlocker(key, e), nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *Local) TryLock(ctx context.Context, key string) (Unlock, bool, error) {
	e := l.acquire(key)
	select {
	case e.ch <- struct{}{}:
		return l.unlocker(key, e), true, nil
	default:
		l.release(key, e)
		return nil, false, nil
	}
}

func (l *Local) unlocker(key string, e *entry) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}
}

// size reports how many keys are tracked.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

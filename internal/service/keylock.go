package service

import (
	"context"
	"sync"
)

// keyedMutex serializes work per key. Entries are reference counted and
// removed once no goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{} // capacity 1; holding the token holds the lock
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*keyedEntry)}
}

// Lock blocks until key is free or ctx is done. On success it returns the
// matching unlock function.
func (k *keyedMutex) Lock(ctx context.Context, key int64) (unlock func(), err error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	release := func() {
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
	// A waiter may win the race against an already cancelled context.
	if err := ctx.Err(); err != nil {
		<-e.sem
		release()
		return nil, err
	}
	return func() {
		<-e.sem
		release()
	}, nil
}

func (k *keyedMutex) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

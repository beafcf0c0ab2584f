// Package lock provides exclusive locks keyed by string, used to serialise
// the check-then-write sequence for one court and day.
package lock

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/civil"
)

// Locker acquires an exclusive lock for key. The returned function releases
// it and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// CourtDayKey is the lock key guarding the reservations of one court on one
// day.
func CourtDayKey(courtID int64, date civil.Date) string {
	return fmt.Sprintf("court:%d:%s", courtID, date)
}

type keyedMutex struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process keyed mutex. Entries are dropped once no goroutine
// holds or waits for them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*keyedMutex)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &keyedMutex{sem: make(chan struct{}, 1)}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, m)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.sem
			l.release(key, m)
		})
	}, nil
}

func (l *Local) release(key string, m *keyedMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

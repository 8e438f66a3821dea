package app

import (
	"context"
	"sync"
)

// sessionLocks сериализует работу с одной чат-сессией, не мешая остальным.
// Захват блокировки прерывается отменой ctx.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sem  chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire ждёт блокировку сессии id. Вернувшийся release нужно вызвать ровно один раз.
func (l *sessionLocks) acquire(ctx context.Context, id string) (release func(), err error) {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sessionLock{sem: make(chan struct{}, 1)}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
		return func() {
			<-lock.sem
			l.drop(id, lock)
		}, nil
	case <-ctx.Done():
		l.drop(id, lock)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) drop(id string, lock *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, id)
	}
}

// size - число сессий, по которым сейчас кто-то держит или ждёт блокировку.
func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

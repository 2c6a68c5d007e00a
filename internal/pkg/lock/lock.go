// Package lock provides per-code locking for concurrent redemption attempts.
// The database row lock is the source of truth for serializability; this
// in-process lock keeps local attempts for the same code from piling up on
// the database.
package lock

import "sync"

// codeMutex wraps a mutex with reference counting for cleanup.
type codeMutex struct {
	mu       sync.Mutex
	refCount int
}

// CodeLock provides per-code locking so that redemption attempts against
// the same promotional code are serialized within this process.
type CodeLock struct {
	locks sync.Map // map[string]*codeMutex
	pool  sync.Pool
}

// NewCodeLock creates a new CodeLock instance.
func NewCodeLock() *CodeLock {
	return &CodeLock{
		pool: sync.Pool{
			New: func() any {
				return &codeMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given code.
func (cl *CodeLock) getLock(code string) *codeMutex {
	if v, ok := cl.locks.Load(code); ok {
		return v.(*codeMutex)
	}

	newLock := cl.pool.Get().(*codeMutex)
	newLock.refCount = 0

	// Store or load existing (handles race condition)
	actual, loaded := cl.locks.LoadOrStore(code, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		cl.pool.Put(newLock)
	}
	return actual.(*codeMutex)
}

// Lock acquires the lock for a code.
func (cl *CodeLock) Lock(code string) {
	lock := cl.getLock(code)
	lock.mu.Lock()
	lock.refCount++
}

// Unlock releases the lock for a code.
func (cl *CodeLock) Unlock(code string) {
	if v, ok := cl.locks.Load(code); ok {
		lock := v.(*codeMutex)
		lock.refCount--
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (cl *CodeLock) TryLock(code string) bool {
	lock := cl.getLock(code)
	if lock.mu.TryLock() {
		lock.refCount++
		return true
	}
	return false
}

// WithLock executes a function while holding the code's lock.
func (cl *CodeLock) WithLock(code string, fn func() error) error {
	cl.Lock(code)
	defer cl.Unlock(code)
	return fn()
}

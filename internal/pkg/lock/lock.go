// Package lock provides user-level locking for draw sessions.
// A user holding the lock has a draw in flight; a second request from the
// same user can detect that with TryLock instead of queueing behind it.
package lock

import "sync"

// userMutex wraps a mutex with reference counting for cleanup.
type userMutex struct {
	mu   sync.Mutex
	refs int // holders plus pending TryLock calls, guarded by UserLock.mu
}

// UserLock provides per-user locking keyed by opaque user ID.
type UserLock struct {
	mu    sync.Mutex
	locks map[string]*userMutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{locks: make(map[string]*userMutex)}
}

// acquire returns the mutex for userID with its reference count bumped.
func (ul *UserLock) acquire(userID string) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m, ok := ul.locks[userID]
	if !ok {
		m = &userMutex{}
		ul.locks[userID] = m
	}
	m.refs++
	return m
}

// release drops one reference and forgets the mutex once nobody uses it.
func (ul *UserLock) release(userID string, m *userMutex) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(ul.locks, userID)
	}
}

// Unlock releases the lock for a user taken with TryLock.
// Unlocking a user nobody holds is a no-op.
func (ul *UserLock) Unlock(userID string) {
	ul.mu.Lock()
	m, ok := ul.locks[userID]
	ul.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	ul.release(userID, m)
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (ul *UserLock) TryLock(userID string) bool {
	m := ul.acquire(userID)
	if m.mu.TryLock() {
		return true
	}
	ul.release(userID, m)
	return false
}

// Len returns the number of users with a held lock.
func (ul *UserLock) Len() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.locks)
}

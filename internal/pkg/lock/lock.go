// Package lock provides per-user locking for balance-mutating operations.
// The database is the final authority (row locks and the daily_claims
// primary key), but serialising per user inside the process keeps the
// check-then-record paths from ever contending in the common case.
package lock

import "sync"

// UserLock serialises operations per user ID.
type UserLock struct {
	locks sync.Map // map[int64]*sync.Mutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{}
}

func (ul *UserLock) get(userID int64) *sync.Mutex {
	if v, ok := ul.locks.Load(userID); ok {
		return v.(*sync.Mutex)
	}
	v, _ := ul.locks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	ul.get(userID).Lock()
}

// Unlock releases the lock for a user.
func (ul *UserLock) Unlock(userID int64) {
	ul.get(userID).Unlock()
}

// TryLock attempts to acquire the lock without blocking.
func (ul *UserLock) TryLock(userID int64) bool {
	return ul.get(userID).TryLock()
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(userID int64, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}

/*
locks.go - Per-account mutual exclusion

PURPOSE:
  Serializes read-modify-write sequences against the same account within
  this process. A webhook-triggered point award and a user-initiated
  redemption can arrive concurrently; without this lock they would race
  on the account document and the last write would win.

SCOPE:
  Single-process only. Multi-process deployments are covered by the
  version compare-and-swap enforced in Store.SaveAccount.
*/
package rewards

import "sync"

// accountLocks hands out one mutex per account id.
// Locks are never removed; the set of active accounts per process is small
// and a stale mutex is cheaper than racing on deletion.
type accountLocks struct {
	mu    sync.Mutex
	locks map[AccountID]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[AccountID]*sync.Mutex)}
}

// Lock acquires the mutex for id and returns its unlock function.
func (l *accountLocks) Lock(id AccountID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

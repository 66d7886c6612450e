package services

import (
	"sync"

	"github.com/google/uuid"
)

// keyedMutex hands out one mutex per entity id. Mutexes are never evicted;
// the table grows with the number of distinct entities, which is bounded by
// the catalog and subscriber base.
type keyedMutex struct {
	mutexes sync.Map
}

// lock acquires the mutex for id and returns its release function.
func (k *keyedMutex) lock(id uuid.UUID) func() {
	v, _ := k.mutexes.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// LockTable serializes all mutating operations per book and per subscriber.
// Every client action and every sweep step acquires the relevant lock before
// opening its transaction, so the read-then-write sequences over available
// copies and reservation priorities never interleave for the same book.
type LockTable struct {
	books       keyedMutex
	subscribers keyedMutex
}

func NewLockTable() *LockTable {
	return &LockTable{}
}

func (l *LockTable) LockBook(id uuid.UUID) func() {
	return l.books.lock(id)
}

func (l *LockTable) LockSubscriber(id uuid.UUID) func() {
	return l.subscribers.lock(id)
}

package service

import (
	"sync"

	"github.com/google/uuid"
)

// LoanLocker serializes the read-validate-write sequence per loan. Two
// operators committing investments, or recording principal payments, against
// the same loan must not both pass checks on a stale read; everything between
// Lock and the returned unlock runs exclusively for that loan. Entries are
// reference-counted so the map does not grow with every loan ever touched.
type LoanLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*loanLock
}

type loanLock struct {
	mu   sync.Mutex
	refs int
}

// NewLoanLocker creates an empty LoanLocker.
func NewLoanLocker() *LoanLocker {
	return &LoanLocker{
		locks: make(map[uuid.UUID]*loanLock),
	}
}

// Lock acquires the per-loan lock and returns the unlock function.
func (l *LoanLocker) Lock(loanID uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[loanID]
	if !ok {
		entry = &loanLock{}
		l.locks[loanID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, loanID)
		}
		l.mu.Unlock()
	}
}

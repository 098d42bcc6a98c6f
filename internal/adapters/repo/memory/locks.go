package memory

import (
	"sync"

	"github.com/bnema/marketwin/internal/domain"
)

// accountLocks hands out one mutex per account and drops it once unused.
type accountLocks struct {
	mu    sync.Mutex
	locks map[domain.AccountID]*accountLock
}

type accountLock struct {
	sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[domain.AccountID]*accountLock)}
}

func (a *accountLocks) lock(id domain.AccountID) (unlock func()) {
	a.mu.Lock()
	l, ok := a.locks[id]
	if !ok {
		l = &accountLock{}
		a.locks[id] = l
	}
	l.refs++
	a.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, id)
		}
		a.mu.Unlock()
	}
}

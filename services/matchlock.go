package services

import (
	"context"
	"sync"
	"time"
)

// matchLocks serializes every mutation of a match's ledger, projection
// and pending-vote set through one lock per match id. Different matches
// share nothing and proceed fully in parallel. Entries are refcounted
// and dropped once no caller holds or waits on them, so the registry
// does not accumulate finished matches.
type matchLocks struct {
	mu    sync.Mutex
	locks map[int]*matchLock
}

type matchLock struct {
	ch   chan struct{}
	refs int
}

// NewMatchLocks builds the shared lock set. The match and vote services
// must receive the same instance so their commit paths exclude each
// other.
func NewMatchLocks() *matchLocks {
	return &matchLocks{locks: make(map[int]*matchLock)}
}

func (l *matchLocks) retain(matchID int) *matchLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[matchID]
	if !ok {
		entry = &matchLock{ch: make(chan struct{}, 1)}
		l.locks[matchID] = entry
	}
	entry.refs++
	return entry
}

func (l *matchLocks) put(matchID int, entry *matchLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, matchID)
	}
}

// AcquireTimeout takes the match commit path, waiting at most wait.
// Returns ErrConcurrencyTimeout when the path is held unexpectedly long
// so callers fail loudly instead of silently dropping a vote.
func (l *matchLocks) AcquireTimeout(ctx context.Context, matchID int, wait time.Duration) (release func(), err error) {
	entry := l.retain(matchID)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			l.put(matchID, entry)
		}, nil
	case <-timer.C:
		l.put(matchID, entry)
		return nil, ErrConcurrencyTimeout
	case <-ctx.Done():
		l.put(matchID, entry)
		return nil, ctx.Err()
	}
}

func (l *matchLocks) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// Package locks provides reconcile.Locker implementations: an in-process
// per-project mutex and a Redis lease for deployments with several writers.
package locks

import (
	"context"
	"sync"
	"time"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// Local serializes writers inside one process. Entries are reference
// counted and dropped once nobody holds or waits for them.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocal returns a Locker that gives up after wait with ErrProjectBusy.
// wait <= 0 waits until ctx is done.
func NewLocal(wait time.Duration) *Local {
	return &Local{wait: wait, locks: make(map[string]*localEntry)}
}

func (l *Local) Lock(ctx context.Context, projectID string) (func(), error) {
	e := l.acquire(projectID)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case e.sem <- struct{}{}:
	case <-timeout:
		l.release(projectID, e)
		return nil, reconcile.ErrProjectBusy
	case <-ctx.Done():
		l.release(projectID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(projectID, e)
		})
	}, nil
}

func (l *Local) acquire(projectID string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[projectID]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.locks[projectID] = e
	}
	e.refs++
	return e
}

func (l *Local) release(projectID string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, projectID)
	}
}

// held returns the number of projects with a live entry.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

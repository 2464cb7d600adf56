//go:build !debug

package scheduler

import "sync"

// mutex is a plain sync.Mutex in production builds. Under the debug
// build tag (mutex_debug.go) it is swapped for a deadlock-detecting
// mutex to catch lock-ordering bugs in State during test runs.
type mutex struct {
	inner sync.Mutex
}

func (m *mutex) Lock()   { m.inner.Lock() }
func (m *mutex) Unlock() { m.inner.Unlock() }

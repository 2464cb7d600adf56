//go:build debug

package scheduler

import "github.com/sasha-s/go-deadlock"

// mutex is a deadlock-detecting mutex under the debug build tag,
// exercised by `go test -tags debug ./internal/scheduler/...`.
type mutex struct {
	inner deadlock.Mutex
}

func (m *mutex) Lock()   { m.inner.Lock() }
func (m *mutex) Unlock() { m.inner.Unlock() }

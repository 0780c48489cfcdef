// Package lock implements non-blocking locks on sets of keys.
package lock

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrLocked is returned when acquiring a key that is already held.
var ErrLocked = errors.New("[lock] - already locked")

// Map holds exclusive locks on keys. Acquire never blocks: it fails if any of the keys is held.
type Map[K comparable] struct {
	mu   sync.Mutex
	held map[K]struct{}
}

func NewMap[K comparable]() *Map[K] {
	return &Map[K]{held: make(map[K]struct{})}
}

// Acquire locks every key or none of them. Returns an error wrapping ErrLocked if any key is held.
func (m *Map[K]) Acquire(keys ...K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, ok := m.held[k]; ok {
			return errors.Wrapf(ErrLocked, "key %v", k)
		}
	}
	for _, k := range keys {
		m.held[k] = struct{}{}
	}
	return nil
}

// Release unlocks the keys. Releasing a key that isn't held is a no-op.
func (m *Map[K]) Release(keys ...K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.held, k)
	}
}

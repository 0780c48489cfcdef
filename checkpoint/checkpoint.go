// Package checkpoint persists the watermark of a chunked iteration so a failed run can resume where the last
// successfully processed chunk left off.
package checkpoint

import (
	"github.com/arya-analytics/chunker/entity"
	"github.com/arya-analytics/chunker/internal/lock"
	"github.com/arya-analytics/chunker/kv"
	"github.com/cockroachdb/errors"
)

var prefix = kv.Prefix("chunker/checkpoint/")

// ErrLocked is returned by Lock when another iteration holds the checkpoint.
var ErrLocked = lock.ErrLocked

// Store persists named watermarks in a kv.Engine.
type Store struct {
	kve   kv.Engine
	locks *lock.Map[string]
}

// New returns a Store that persists watermarks in kve.
func New(kve kv.Engine) *Store { return &Store{kve: kve, locks: lock.NewMap[string]()} }

// Lock claims the checkpoint under name for a single iteration. Returns an error wrapping ErrLocked if another
// iteration holds it. The returned function releases the claim.
func (s *Store) Lock(name string) (release func(), err error) {
	if err := s.locks.Acquire(name); err != nil {
		return nil, errors.Wrapf(err, "[checkpoint] - %s is in use", name)
	}
	return func() { s.locks.Release(name) }, nil
}

// Load returns the watermark saved under name. Returns false if nothing has been saved.
func (s *Store) Load(name string) (entity.Key, bool, error) {
	b, err := s.kve.Get(key(name))
	if kv.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	k, ok := kv.DecodeKey(nil, b)
	if !ok {
		return 0, false, errors.Newf("[checkpoint] - corrupt watermark for %s", name)
	}
	return k, true, nil
}

// Save persists the watermark under name, replacing any previous value.
func (s *Store) Save(name string, watermark entity.Key) error {
	return s.kve.Set(key(name), kv.EncodeKey(nil, watermark))
}

// Clear removes the watermark saved under name.
func (s *Store) Clear(name string) error { return s.kve.Delete(key(name)) }

func key(name string) []byte { return kv.PrefixedKey(prefix, []byte(name)) }

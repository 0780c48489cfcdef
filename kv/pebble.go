package kv

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

const kvDirectory = "kv"

// Open opens a pebble backed Engine in the given directory. Use MemBacked to keep everything in memory.
func Open(dirname string, opts ...Option) (Engine, error) {
	o := newOptions(dirname, opts...)
	db, err := pebble.Open(filepath.Join(o.dirname, kvDirectory), &pebble.Options{FS: o.fs})
	if err != nil {
		return nil, errors.Wrap(err, "[kv] - failed to open pebble")
	}
	o.logger.Debug("opened kv engine", zap.String("dirname", o.dirname), zap.Bool("memBacked", o.memBacked))
	return pebbleEngine{DB: db}, nil
}

// pebbleEngine implements Engine and wraps a Pebble DB instance.
type pebbleEngine struct {
	DB *pebble.DB
}

// Get implements the Engine interface.
func (pe pebbleEngine) Get(key []byte) ([]byte, error) {
	v, c, err := pe.DB.Get(key)
	if err != nil {
		return nil, err
	}
	// v is only valid until c is closed.
	b := make([]byte, len(v))
	copy(b, v)
	return b, c.Close()
}

// Set implements the Engine interface.
func (pe pebbleEngine) Set(key []byte, value []byte) error {
	return pe.DB.Set(key, value, pebble.NoSync)
}

// Delete implements the Engine interface.
func (pe pebbleEngine) Delete(key []byte) error {
	return pe.DB.Delete(key, pebble.NoSync)
}

// NewIterator implements the Engine interface.
func (pe pebbleEngine) NewIterator(lower, upper []byte) Iterator {
	return pe.DB.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
}

// Close implements the Engine interface.
func (pe pebbleEngine) Close() error {
	return pe.DB.Close()
}

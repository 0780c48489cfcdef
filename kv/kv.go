// Package kv wraps an embedded pebble database behind a small key-value Engine interface.
package kv

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Engine.Get when the key doesn't exist.
var ErrNotFound = pebble.ErrNotFound

// Engine is a sorted key-value store.
type Engine interface {
	// Get returns the value for the given key. Returns ErrNotFound if the key doesn't exist.
	Get(key []byte) ([]byte, error)
	// Set sets the value for the given key.
	Set(key []byte, value []byte) error
	// Delete removes the given key. Deleting a key that doesn't exist is not an error.
	Delete(key []byte) error
	// NewIterator opens an Iterator over the range [lower, upper). A nil bound leaves that side open.
	NewIterator(lower, upper []byte) Iterator
	// Close closes the Engine.
	Close() error
}

// Iterator iterates over the key-value pairs of an Engine in key order. Key and Value are only valid until the next
// movement call.
type Iterator interface {
	First() bool
	Last() bool
	SeekGE(key []byte) bool
	SeekLT(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// IsNotFound returns true if err signals a missing key.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

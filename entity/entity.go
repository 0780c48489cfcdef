// Package entity describes the records a chunker iterates over: their integer key and
// the schema metadata (key column, auto-increment flag, backing connection) a source
// exposes for them.
package entity

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// Key is the unique, strictly increasing integer key of a record.
type Key int64

// String implements fmt.Stringer.
func (k Key) String() string { return strconv.FormatInt(int64(k), 10) }

// Entity is a record addressed by a Key.
type Entity interface {
	Key() Key
}

// Schema is the metadata a source exposes for the entities it stores.
type Schema struct {
	// Name is a human-readable name for the entity (usually the table name).
	Name string
	// KeyColumn is the name of the primary key column.
	KeyColumn string
	// Incrementing is true if the primary key is auto-incrementing and unique.
	Incrementing bool
	// Connection is the name of the connection backing the entity. An empty name
	// refers to the default connection.
	Connection string
}

// ErrNotIncrementing is returned by Schema.Validate when the entity's key can't be
// used for keyset iteration.
var ErrNotIncrementing = errors.New("entity lacks an auto-incrementing primary key")

// Validate checks that the schema declares an auto-incrementing primary key.
func (s Schema) Validate() error {
	if s.KeyColumn == "" || !s.Incrementing {
		return errors.Mark(
			errors.Newf("entity %s lacks an auto-incrementing primary key", s.name()),
			ErrNotIncrementing,
		)
	}
	return nil
}

func (s Schema) name() string {
	if s.Name == "" {
		return "<unnamed>"
	}
	return s.Name
}

// MaxKey returns the largest key in entries. Returns false if entries is empty.
func MaxKey[E Entity](entries []E) (max Key, ok bool) {
	for i, e := range entries {
		if k := e.Key(); i == 0 || k > max {
			max = k
		}
	}
	return max, len(entries) > 0
}

// Keys returns the keys of entries in order.
func Keys[E Entity](entries []E) []Key {
	keys := make([]Key, len(entries))
	for i, e := range entries {
		keys[i] = e.Key()
	}
	return keys
}

package testutil

import (
	"fmt"

	"github.com/arya-analytics/chunker/entity"
)

// Record is a keyed fixture entity.
type Record struct {
	ID     entity.Key `msgpack:"id"`
	Name   string     `msgpack:"name"`
	Active bool       `msgpack:"active"`
}

// Key implements entity.Entity.
func (r Record) Key() entity.Key { return r.ID }

// Schema is the schema of the records table.
var Schema = entity.Schema{Name: "records", KeyColumn: "id", Incrementing: true}

// Records returns one active Record per key, named after its key.
func Records(keys ...entity.Key) []Record {
	res := make([]Record, len(keys))
	for i, k := range keys {
		res[i] = Record{ID: k, Name: fmt.Sprintf("record-%d", k), Active: true}
	}
	return res
}

// Range returns the keys [start, end).
func Range(start, end entity.Key) []entity.Key {
	keys := make([]entity.Key, 0, end-start)
	for k := start; k < end; k++ {
		keys = append(keys, k)
	}
	return keys
}

// Package query defines the descriptor a chunker clones and narrows for every request it issues, and the
// Source interface that executes it.
package query

import (
	"fmt"
	"sort"
	"strings"
)

// Query is a container that describes a set of keyed records to retrieve from a Source.
//
// The parameters for a Query are defined as a set of options. Each option is an arbitrary key-value pair that
// tells the Source how to narrow, order, or limit its results. Query has value semantics over a shared option
// map: copies of a Query see each other's writes. Use Clone to derive an independent Query.
type Query struct {
	opts map[OptionKey]interface{}
}

// New returns a new Query with empty options.
func New() Query { return Query{opts: make(map[OptionKey]interface{})} }

// Clone returns a copy of the Query that shares no mutable state with the original. Cloning the zero Query
// returns an empty Query.
func (q Query) Clone() Query {
	c := New()
	for k, v := range q.opts {
		c.opts[k] = v
	}
	return c
}

// String implements fmt.Stringer.
func (q Query) String() string {
	keys := make([]string, 0, len(q.opts))
	for k := range q.opts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	b := new(strings.Builder)
	b.WriteString("[QUERY]")
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, q.opts[OptionKey(k)])
	}
	return b.String()
}

// |||||| OPTIONS ||||||

// OptionKey is a type representing the key for a given option. OptionKey should be unique for each option.
// If writing a new option, ensure that the key is unique, or else unpredictable behavior may occur.
type OptionKey string

// Get returns the option with the given key. If the option is not set, returns false as its second argument.
func (q Query) Get(key OptionKey) (interface{}, bool) {
	v, ok := q.opts[key]
	return v, ok
}

// GetRequired returns the option with the given key. Panics if the option is not set.
func (q Query) GetRequired(key OptionKey) interface{} {
	v, ok := q.Get(key)
	if !ok {
		panic(fmt.Sprintf("[query] - required option %s not set", key))
	}
	return v
}

// Set sets the option with the given key. Panics if called on the zero Query.
func (q Query) Set(key OptionKey, value interface{}) {
	if q.opts == nil {
		panic("[query] - set called on an uninitialized query. use query.New")
	}
	q.opts[key] = value
}

// SetOnce sets the option with the given key. If the option is already set, it panics.
func (q Query) SetOnce(key OptionKey, value interface{}) {
	if _, ok := q.opts[key]; ok {
		panic(fmt.Sprintf("[query] - option %s already set", key))
	}
	q.Set(key, value)
}

// Delete removes the option with the given key.
func (q Query) Delete(key OptionKey) { delete(q.opts, key) }

func getOpt[T any](q Query, k OptionKey) (T, bool) {
	opt, ok := q.Get(k)
	if !ok {
		var t T
		return t, false
	}
	ro, ok := opt.(T)
	return ro, ok
}

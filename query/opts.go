package query

import (
	"fmt"

	"github.com/arya-analytics/chunker/entity"
)

// |||| KEY AFTER ||||

const keyAfterOptKey OptionKey = "keyAfter"

// SetKeyAfter restricts the query to records whose key is strictly greater than k.
func SetKeyAfter(q Query, k entity.Key) { q.Set(keyAfterOptKey, k) }

// KeyAfter returns the exclusive lower key bound of the query. Returns false if the query has no lower bound.
func KeyAfter(q Query) (entity.Key, bool) { return getOpt[entity.Key](q, keyAfterOptKey) }

// |||| KEY AT MOST ||||

const keyAtMostOptKey OptionKey = "keyAtMost"

// SetKeyAtMost restricts the query to records whose key is less than or equal to k.
func SetKeyAtMost(q Query, k entity.Key) { q.Set(keyAtMostOptKey, k) }

// KeyAtMost returns the inclusive upper key bound of the query. Returns false if the query has no upper bound.
func KeyAtMost(q Query) (entity.Key, bool) { return getOpt[entity.Key](q, keyAtMostOptKey) }

// |||| LIMIT ||||

const limitOptKey OptionKey = "limit"

// SetLimit caps the number of records the query returns.
func SetLimit(q Query, n int) { q.Set(limitOptKey, n) }

// Limit returns the maximum number of records the query returns. Returns false if the query is unbounded.
func Limit(q Query) (int, bool) { return getOpt[int](q, limitOptKey) }

// |||| ORDER ||||

// Order is the direction records are returned in, sorted by key.
type Order uint8

const (
	// Ascending returns records from the lowest key to the highest.
	Ascending Order = iota
	// Descending returns records from the highest key to the lowest.
	Descending
)

// String implements fmt.Stringer.
func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

const orderOptKey OptionKey = "order"

// SetOrder sets the key order records are returned in.
func SetOrder(q Query, o Order) { q.Set(orderOptKey, o) }

// GetOrder returns the key order of the query. Defaults to Ascending.
func GetOrder(q Query) Order {
	o, _ := getOpt[Order](q, orderOptKey)
	return o
}

// |||| FILTER ||||

const filterOptKey OptionKey = "filter"

type filter[E any] func(E) bool

func (f filter[E]) String() string { return "<predicate>" }

// SetFilter restricts the query to records that satisfy f. Sources that evaluate records in process
// (memory, key-value) honor the filter. Sources that push filtering down to an external engine define
// their own filter options.
func SetFilter[E any](q Query, f func(E) bool) { q.Set(filterOptKey, filter[E](f)) }

// Filter returns the record predicate of the query. Returns a predicate that accepts everything if no filter
// is set. Panics if the filter was set for a record type other than E.
func Filter[E any](q Query) func(E) bool {
	v, ok := q.Get(filterOptKey)
	if !ok {
		return func(E) bool { return true }
	}
	f, ok := v.(filter[E])
	if !ok {
		var e E
		panic(fmt.Sprintf("[query] - filter of type %T can't evaluate records of type %T", v, e))
	}
	if f == nil {
		return func(E) bool { return true }
	}
	return f
}

// InKeyRange returns true if k satisfies the key bounds of the query.
func InKeyRange(q Query, k entity.Key) bool {
	if after, ok := KeyAfter(q); ok && k <= after {
		return false
	}
	if atMost, ok := KeyAtMost(q); ok && k > atMost {
		return false
	}
	return true
}

// Matches returns true if e satisfies both the key bounds and the filter of the query.
func Matches[E entity.Entity](q Query, e E) bool {
	return InKeyRange(q, e.Key()) && Filter[E](q)(e)
}

package query

import (
	"context"

	"github.com/arya-analytics/chunker/entity"
)

// Source is a store of keyed records that can execute a Query. Implementations must treat the Query as
// read-only and must be able to execute several independent queries derived from the same base Query.
type Source[E entity.Entity] interface {
	// Schema returns the metadata of the entities the Source stores.
	Schema() entity.Schema
	// Min returns the smallest key of the records matching the query, ignoring any limit. Returns false if no
	// records match.
	Min(ctx context.Context, q Query) (entity.Key, bool, error)
	// Max returns the largest key of the records matching the query, ignoring any limit. Returns false if no
	// records match.
	Max(ctx context.Context, q Query) (entity.Key, bool, error)
	// Exec returns the records matching the query sorted by key in the query's order, truncated to the query's
	// limit.
	Exec(ctx context.Context, q Query) ([]E, error)
}

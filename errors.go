package chunker

import "github.com/cockroachdb/errors"

// Errors returned by a Chunker are marked with one of the following. Use errors.Is to classify them. Marking
// doesn't alter the message of the original error, and errors.Is still matches it.
var (
	// ErrPrecondition is returned by New when the Chunker can't be constructed. No query is issued.
	ErrPrecondition = errors.New("[chunker] - precondition failed")
	// ErrSourceQuery marks errors returned by the source while computing bounds or fetching chunks.
	ErrSourceQuery = errors.New("[chunker] - source query failed")
	// ErrCallback marks errors returned by the callback.
	ErrCallback = errors.New("[chunker] - callback failed")
)

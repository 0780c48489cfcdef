// Package memsource implements an in-memory query.Source. It is a goroutine safe table of records ordered by
// key, useful for tests and small embedded datasets.
package memsource

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/arya-analytics/chunker/entity"
	"github.com/arya-analytics/chunker/query"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrDuplicateKey is returned when inserting a record whose key is already present.
var ErrDuplicateKey = errors.New("[memsource] - duplicate key")

// Table is an in-memory query.Source.
type Table[E entity.Entity] struct {
	schema entity.Schema
	opts   *options
	mu     sync.RWMutex
	// rows is sorted by key.
	rows    []E
	queries int
}

var _ query.Source[entity.Entity] = (*Table[entity.Entity])(nil)

// New returns an empty Table with the given schema.
func New[E entity.Entity](schema entity.Schema, opts ...Option) *Table[E] {
	return &Table[E]{schema: schema, opts: newOptions(opts...)}
}

// Schema implements query.Source.
func (t *Table[E]) Schema() entity.Schema { return t.schema }

// Min implements query.Source.
func (t *Table[E]) Min(ctx context.Context, q query.Query) (entity.Key, bool, error) {
	return t.aggregate(ctx, "min", q, func(rows []E) (int, int, int) { return 0, len(rows), 1 })
}

// Max implements query.Source.
func (t *Table[E]) Max(ctx context.Context, q query.Query) (entity.Key, bool, error) {
	return t.aggregate(ctx, "max", q, func(rows []E) (int, int, int) { return len(rows) - 1, -1, -1 })
}

func (t *Table[E]) aggregate(
	ctx context.Context,
	op string,
	q query.Query,
	bounds func([]E) (start, end, step int),
) (entity.Key, bool, error) {
	defer t.record(time.Now(), op, q)
	if err := t.before(ctx); err != nil {
		return 0, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	start, end, step := bounds(t.rows)
	for i := start; i != end; i += step {
		if query.Matches(q, t.rows[i]) {
			return t.rows[i].Key(), true, nil
		}
	}
	return 0, false, nil
}

// Exec implements query.Source.
func (t *Table[E]) Exec(ctx context.Context, q query.Query) ([]E, error) {
	defer t.record(time.Now(), "select", q)
	if err := t.before(ctx); err != nil {
		return nil, err
	}
	limit, limited := query.Limit(q)
	if limited && limit <= 0 {
		return nil, nil
	}
	atMost, bounded := query.KeyAtMost(q)
	t.mu.RLock()
	defer t.mu.RUnlock()
	var res []E
	add := func(e E) bool {
		if query.Matches(q, e) {
			res = append(res, e)
		}
		return !limited || len(res) < limit
	}
	if query.GetOrder(q) == query.Descending {
		for i := len(t.rows) - 1; i >= 0 && add(t.rows[i]); i-- {
		}
	} else {
		i := 0
		if after, ok := query.KeyAfter(q); ok {
			if after == math.MaxInt64 {
				return nil, nil
			}
			i = t.search(after + 1)
		}
		for ; i < len(t.rows) && !(bounded && t.rows[i].Key() > atMost) && add(t.rows[i]); i++ {
		}
	}
	t.opts.logger.Debug("executed select", zap.Stringer("query", q), zap.Int("rows", len(res)))
	return res, nil
}

// |||||| WRITES ||||||

// Insert adds records to the table. Returns ErrDuplicateKey if any key is already present, in which case no
// records are inserted.
func (t *Table[E]) Insert(entries ...E) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[entity.Key]bool, len(entries))
	for _, e := range entries {
		k := e.Key()
		if _, ok := t.find(k); ok || seen[k] {
			return errors.Wrapf(ErrDuplicateKey, "key %d", k)
		}
		seen[k] = true
	}
	t.rows = append(t.rows, entries...)
	sort.SliceStable(t.rows, func(i, j int) bool { return t.rows[i].Key() < t.rows[j].Key() })
	return nil
}

// Put replaces the record with key k by e. e may carry a different key than k, in which case the record moves.
// Returns false if no record with key k exists or if e's key belongs to another record.
func (t *Table[E]) Put(k entity.Key, e E) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.find(k)
	if !ok {
		return false
	}
	if j, taken := t.find(e.Key()); taken && j != i {
		return false
	}
	t.rows[i] = e
	if e.Key() != k {
		sort.SliceStable(t.rows, func(i, j int) bool { return t.rows[i].Key() < t.rows[j].Key() })
	}
	return true
}

// Delete removes the records with the given keys. Missing keys are ignored.
func (t *Table[E]) Delete(keys ...entity.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		if i, ok := t.find(k); ok {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
		}
	}
}

// |||||| READS ||||||

// Get returns the record with key k.
func (t *Table[E]) Get(k entity.Key) (E, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.find(k)
	if !ok {
		var e E
		return e, false
	}
	return t.rows[i], true
}

// Len returns the number of records in the table.
func (t *Table[E]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Keys returns every key in the table in ascending order.
func (t *Table[E]) Keys() []entity.Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return entity.Keys(t.rows)
}

// Queries returns the number of queries the table has executed.
func (t *Table[E]) Queries() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.queries
}

func (t *Table[E]) before(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.opts.fail != nil {
		return t.opts.fail()
	}
	return nil
}

func (t *Table[E]) record(start time.Time, op string, q query.Query) {
	t.mu.Lock()
	t.queries++
	t.mu.Unlock()
	t.opts.recorder.Record(fmt.Sprintf("%s %s %s", op, t.schema.Name, q), nil, time.Since(start))
}

// search returns the index of the first row whose key is >= k.
func (t *Table[E]) search(k entity.Key) int {
	return sort.Search(len(t.rows), func(i int) bool { return t.rows[i].Key() >= k })
}

func (t *Table[E]) find(k entity.Key) (int, bool) {
	i := t.search(k)
	return i, i < len(t.rows) && t.rows[i].Key() == k
}

// Package kvsource implements a query.Source backed by a kv.Engine. Each record is stored msgpack encoded under
// its table prefix and an order preserving encoding of its key, so key order in the engine is key order in the
// table.
package kvsource

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/arya-analytics/chunker/entity"
	"github.com/arya-analytics/chunker/kv"
	"github.com/arya-analytics/chunker/query"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Table is a query.Source over the records stored under a single prefix of a kv.Engine.
type Table[E entity.Entity] struct {
	kve    kv.Engine
	schema entity.Schema
	prefix kv.Prefix
	opts   *options
}

// New returns a Table that stores records with the given schema in kve. Records are namespaced by the schema
// name unless WithPrefix is given.
func New[E entity.Entity](kve kv.Engine, schema entity.Schema, opts ...Option) *Table[E] {
	o := newOptions(schema, opts...)
	return &Table[E]{kve: kve, schema: schema, prefix: o.prefix, opts: o}
}

// Schema implements query.Source.
func (t *Table[E]) Schema() entity.Schema { return t.schema }

// Min implements query.Source.
func (t *Table[E]) Min(ctx context.Context, q query.Query) (k entity.Key, ok bool, err error) {
	defer t.record(time.Now(), "min", q)
	err = t.scan(ctx, q, query.Ascending, func(e E) bool {
		k, ok = e.Key(), true
		return false
	})
	return k, ok, err
}

// Max implements query.Source.
func (t *Table[E]) Max(ctx context.Context, q query.Query) (k entity.Key, ok bool, err error) {
	defer t.record(time.Now(), "max", q)
	err = t.scan(ctx, q, query.Descending, func(e E) bool {
		k, ok = e.Key(), true
		return false
	})
	return k, ok, err
}

// Exec implements query.Source.
func (t *Table[E]) Exec(ctx context.Context, q query.Query) (res []E, err error) {
	defer t.record(time.Now(), "select", q)
	limit, limited := query.Limit(q)
	if limited && limit <= 0 {
		return nil, nil
	}
	err = t.scan(ctx, q, query.GetOrder(q), func(e E) bool {
		res = append(res, e)
		return !limited || len(res) < limit
	})
	t.opts.logger.Debug("executed select", zap.Stringer("query", q), zap.Int("rows", len(res)))
	return res, err
}

// scan visits the records matching q in the given order until f returns false.
func (t *Table[E]) scan(ctx context.Context, q query.Query, order query.Order, f func(E) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lower, upper, ok := t.bounds(q)
	if !ok {
		return nil
	}
	iter := t.kve.NewIterator(lower, upper)
	var (
		valid   bool
		advance func() bool
	)
	if order == query.Descending {
		valid, advance = iter.Last(), iter.Prev
	} else {
		valid, advance = iter.First(), iter.Next
	}
	filter := query.Filter[E](q)
	for ; valid; valid = advance() {
		e, err := t.decode(iter.Value())
		if err != nil {
			return errors.CombineErrors(err, iter.Close())
		}
		if filter(e) && !f(e) {
			break
		}
	}
	return errors.CombineErrors(iter.Error(), iter.Close())
}

// bounds translates the key range of q into engine bounds. Returns false if the range is empty.
func (t *Table[E]) bounds(q query.Query) (lower, upper []byte, ok bool) {
	lower, upper = t.prefix, kv.PrefixUpperBound(t.prefix)
	if after, ok := query.KeyAfter(q); ok {
		if after == math.MaxInt64 {
			return nil, nil, false
		}
		lower = kv.EncodeKey(t.prefix, after+1)
	}
	if atMost, ok := query.KeyAtMost(q); ok && atMost != math.MaxInt64 {
		upper = kv.EncodeKey(t.prefix, atMost+1)
	}
	return lower, upper, upper == nil || bytes.Compare(lower, upper) < 0
}

// |||||| WRITES ||||||

// Put stores e under its key, replacing any record with the same key.
func (t *Table[E]) Put(entries ...E) error {
	for _, e := range entries {
		b, err := msgpack.Marshal(e)
		if err != nil {
			return errors.Wrapf(err, "[kvsource] - failed to encode record %d", e.Key())
		}
		if err := t.kve.Set(kv.EncodeKey(t.prefix, e.Key()), b); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the records with the given keys.
func (t *Table[E]) Delete(keys ...entity.Key) error {
	for _, k := range keys {
		if err := t.kve.Delete(kv.EncodeKey(t.prefix, k)); err != nil {
			return err
		}
	}
	return nil
}

// |||||| READS ||||||

// Get returns the record with key k. Returns kv.ErrNotFound if it doesn't exist.
func (t *Table[E]) Get(k entity.Key) (e E, err error) {
	b, err := t.kve.Get(kv.EncodeKey(t.prefix, k))
	if err != nil {
		return e, err
	}
	return t.decode(b)
}

func (t *Table[E]) decode(b []byte) (e E, err error) {
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return e, errors.Wrap(err, "[kvsource] - failed to decode record")
	}
	return e, nil
}

func (t *Table[E]) record(start time.Time, op string, q query.Query) {
	t.opts.recorder.Record(fmt.Sprintf("%s %s %s", op, t.schema.Name, q), nil, time.Since(start))
}

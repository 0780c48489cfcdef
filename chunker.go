// Package chunker iterates over every record of a keyed dataset in fixed-size chunks without loading the dataset
// into memory. Chunks are selected by key range (keyset pagination) rather than by offset: each chunk starts
// after the largest key of the previous one, and the iteration stops at the largest key that existed when it
// started. This keeps the iteration stable while the dataset changes underneath it, including changes the
// callback makes to the records it receives.
//
// A simple iteration looks like the following:
//
//	users := memsource.New[User](entity.Schema{Name: "users", KeyColumn: "id", Incrementing: true})
//
//	err := chunker.Chunk[User](ctx, users, query.New(), 500, func(ctx context.Context, chunk []User) error {
//		for _, u := range chunk {
//			users.Delete(u.ID)
//		}
//		return nil
//	})
//
// Constructing a Chunker with New validates its inputs without touching the source, and Exec runs it.
package chunker

import (
	"context"

	"github.com/arya-analytics/chunker/entity"
	"github.com/arya-analytics/chunker/query"
	"github.com/arya-analytics/chunker/querylog"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Callback processes a single chunk. Chunks are delivered in ascending key order, one at a time. The callback
// may modify, re-key, or delete the records it receives without affecting which records later chunks contain.
type Callback[E entity.Entity] func(ctx context.Context, chunk []E) error

// State is the progress of a Chunker.
type State struct {
	// Min and Max are the smallest and largest keys matching the base query when the iteration started. Max is
	// the snapshot boundary: records with larger keys are never visited.
	Min, Max entity.Key
	// Empty is true if no records matched the base query when the iteration started.
	Empty bool
	// Watermark is the largest key delivered so far. Only valid if Started is true.
	Watermark entity.Key
	// Started is true once a lower bound has been established, either by delivering a chunk or by resuming
	// from a checkpoint.
	Started bool
	// Chunks and Records count what was delivered to the callback.
	Chunks, Records int
}

// Chunker iterates over the records of a query.Source in chunks. A Chunker is not goroutine safe, but distinct
// Chunkers can run concurrently (see RunAll).
type Chunker[E entity.Entity] struct {
	src     query.Source[E]
	base    query.Query
	size    int
	cb      Callback[E]
	schema  entity.Schema
	opts    *options
	metrics metrics
	state   State
}

// New validates the arguments and returns a Chunker that delivers the records matching base to cb in chunks of
// at most size records. New performs no I/O. Returns an error marked with ErrPrecondition if the entities of
// src lack an auto-incrementing primary key, if size is less than one, or if src or cb is nil.
func New[E entity.Entity](
	src query.Source[E],
	base query.Query,
	size int,
	cb Callback[E],
	opts ...Option,
) (*Chunker[E], error) {
	if src == nil {
		return nil, errors.Mark(errors.New("[chunker] - source is nil"), ErrPrecondition)
	}
	if cb == nil {
		return nil, errors.Mark(errors.New("[chunker] - callback is nil"), ErrPrecondition)
	}
	if size < 1 {
		return nil, errors.Mark(errors.Newf("[chunker] - chunk size must be positive, got %d", size), ErrPrecondition)
	}
	schema := src.Schema()
	if err := schema.Validate(); err != nil {
		return nil, errors.Mark(err, ErrPrecondition)
	}
	o := newOptions(opts...)
	return &Chunker[E]{
		src:     src,
		base:    base.Clone(),
		size:    size,
		cb:      cb,
		schema:  schema,
		opts:    o,
		metrics: newMetrics(o.exp),
	}, nil
}

// Chunk is a shorthand for New followed by Exec.
func Chunk[E entity.Entity](
	ctx context.Context,
	src query.Source[E],
	base query.Query,
	size int,
	cb Callback[E],
	opts ...Option,
) error {
	c, err := New(src, base, size, cb, opts...)
	if err != nil {
		return err
	}
	return c.Exec(ctx)
}

// State returns the progress of the current or last execution.
func (c *Chunker[E]) State() State { return c.state }

// Exec runs the iteration to completion. Exec can be called more than once; each call starts over (or from the
// configured checkpoint).
//
// Errors from the source are marked with ErrSourceQuery and errors from the callback with ErrCallback. Their
// messages are left untouched, so errors.Is matches both the marker and the original error. Exec doesn't retry:
// a failure abandons the iteration at the current watermark. Query logging suspended on the entity's connection
// is restored on every exit path.
func (c *Chunker[E]) Exec(ctx context.Context) error {
	c.state = State{}
	logger := c.opts.logger.With(
		zap.Stringer("run", uuid.New()),
		zap.String("entity", c.schema.Name),
		zap.String("key", c.schema.KeyColumn),
	)

	release, err := c.claim()
	if err != nil {
		return err
	}
	defer release()

	if err := c.bounds(ctx); err != nil {
		return errors.Mark(err, ErrSourceQuery)
	}
	if c.state.Empty {
		logger.Debug("nothing to iterate")
		return c.clear()
	}
	logger.Debug("computed bounds", zap.Stringer("min", c.state.Min), zap.Stringer("max", c.state.Max))

	if err := c.resume(logger); err != nil {
		return err
	}

	defer querylog.Suspend(c.opts.controller(c.schema.Connection))()

	for !c.state.Started || c.state.Watermark < c.state.Max {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := c.fetch(ctx)
		if err != nil {
			return errors.Mark(err, ErrSourceQuery)
		}
		if len(chunk) == 0 {
			break
		}
		if err := c.advance(chunk); err != nil {
			return errors.Mark(err, ErrSourceQuery)
		}
		logger.Debug(
			"processing chunk",
			zap.Int("chunk", c.state.Chunks),
			zap.Int("size", len(chunk)),
			zap.Stringer("watermark", c.state.Watermark),
		)
		if err := c.invoke(ctx, chunk); err != nil {
			return errors.Mark(err, ErrCallback)
		}
		if err := c.save(); err != nil {
			return err
		}
	}

	logger.Debug("iteration complete", zap.Int("chunks", c.state.Chunks), zap.Int("records", c.state.Records))
	return c.clear()
}

// bounds computes the snapshot key range of the base query.
func (c *Chunker[E]) bounds(ctx context.Context) (err error) {
	sw := c.metrics.bounds.Stopwatch()
	sw.Start()
	defer sw.Stop()
	var hasMax bool
	if c.state.Min, _, err = c.src.Min(ctx, c.base.Clone()); err != nil {
		return err
	}
	if c.state.Max, hasMax, err = c.src.Max(ctx, c.base.Clone()); err != nil {
		return err
	}
	c.state.Empty = !hasMax
	return nil
}

// fetch retrieves the chunk following the current watermark.
func (c *Chunker[E]) fetch(ctx context.Context) ([]E, error) {
	sw := c.metrics.fetch.Stopwatch()
	sw.Start()
	defer sw.Stop()
	q := c.base.Clone()
	if c.state.Started {
		query.SetKeyAfter(q, c.state.Watermark)
	}
	query.SetKeyAtMost(q, c.state.Max)
	query.SetLimit(q, c.size)
	query.SetOrder(q, query.Ascending)
	return c.src.Exec(ctx, q)
}

// advance moves the watermark to the largest key of the chunk. The watermark is taken from the chunk as the
// source returned it, before the callback gets a chance to modify it.
func (c *Chunker[E]) advance(chunk []E) error {
	max, _ := entity.MaxKey(chunk)
	if c.state.Started && max <= c.state.Watermark {
		return errors.AssertionFailedf(
			"[chunker] - source returned a chunk ending at %d, which doesn't advance past watermark %d",
			max,
			c.state.Watermark,
		)
	}
	c.state.Watermark, c.state.Started = max, true
	c.state.Chunks++
	c.state.Records += len(chunk)
	c.metrics.chunkSize.Record(len(chunk))
	return nil
}

func (c *Chunker[E]) invoke(ctx context.Context, chunk []E) error {
	sw := c.metrics.callback.Stopwatch()
	sw.Start()
	defer sw.Stop()
	return c.cb(ctx, chunk)
}

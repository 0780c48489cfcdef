package chunker_test

import (
	"context"

	"github.com/arya-analytics/chunker"
	"github.com/arya-analytics/chunker/alamos"
	"github.com/arya-analytics/chunker/checkpoint"
	"github.com/arya-analytics/chunker/entity"
	"github.com/arya-analytics/chunker/internal/testutil"
	"github.com/arya-analytics/chunker/kv"
	"github.com/arya-analytics/chunker/memsource"
	"github.com/arya-analytics/chunker/query"
	"github.com/arya-analytics/chunker/querylog"
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type collector struct {
	chunks [][]entity.Key
}

func (c *collector) exec(_ context.Context, chunk []testutil.Record) error {
	c.chunks = append(c.chunks, entity.Keys(chunk))
	return nil
}

func (c *collector) keys() (keys []entity.Key) {
	for _, ch := range c.chunks {
		keys = append(keys, ch...)
	}
	return keys
}

// stuckSource ignores the key range of every query it receives.
type stuckSource struct {
	*memsource.Table[testutil.Record]
}

func (s stuckSource) Exec(ctx context.Context, _ query.Query) ([]testutil.Record, error) {
	q := query.New()
	query.SetLimit(q, 3)
	return s.Table.Exec(ctx, q)
}

var _ = Describe("Chunker", func() {
	var (
		qlg *querylog.Log
		tbl *memsource.Table[testutil.Record]
		col *collector
	)
	BeforeEach(func() {
		qlg = querylog.New("default", querylog.Enabled())
		tbl = memsource.New[testutil.Record](testutil.Schema, memsource.WithQueryLog(qlg))
		Expect(tbl.Insert(testutil.Records(1, 2, 3, 4, 5, 7, 10)...)).To(Succeed())
		col = &collector{}
	})
	Describe("Iteration", func() {
		It("Should deliver every record in ascending chunks", func() {
			var (
				c          *chunker.Chunker[testutil.Record]
				watermarks []entity.Key
			)
			c, err := chunker.New[testutil.Record](
				tbl,
				query.New(),
				3,
				func(ctx context.Context, chunk []testutil.Record) error {
					watermarks = append(watermarks, c.State().Watermark)
					return col.exec(ctx, chunk)
				},
			)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Exec(ctx)).To(Succeed())
			Expect(col.chunks).To(Equal([][]entity.Key{{1, 2, 3}, {4, 5, 7}, {10}}))
			Expect(watermarks).To(Equal([]entity.Key{3, 7, 10}))
			Expect(c.State()).To(Equal(chunker.State{
				Min:       1,
				Max:       10,
				Watermark: 10,
				Started:   true,
				Chunks:    3,
				Records:   7,
			}))
		})
		It("Should deliver a single chunk when the size exceeds the dataset", func() {
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 100, col.exec)).To(Succeed())
			Expect(col.chunks).To(Equal([][]entity.Key{{1, 2, 3, 4, 5, 7, 10}}))
		})
		It("Should deliver one record per chunk when the size is one", func() {
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 1, col.exec)).To(Succeed())
			Expect(col.chunks).To(HaveLen(7))
			Expect(col.keys()).To(Equal([]entity.Key{1, 2, 3, 4, 5, 7, 10}))
		})
		It("Should bound every chunk by the size and never repeat a key", func() {
			tbl = memsource.New[testutil.Record](testutil.Schema)
			Expect(tbl.Insert(testutil.Records(testutil.Range(1, 101)...)...)).To(Succeed())
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 7, col.exec)).To(Succeed())
			Expect(col.chunks).To(HaveLen(15))
			for _, ch := range col.chunks {
				Expect(len(ch)).To(BeNumerically("<=", 7))
			}
			Expect(col.keys()).To(Equal(testutil.Range(1, 101)))
		})
		It("Should handle negative and zero keys", func() {
			tbl = memsource.New[testutil.Record](testutil.Schema)
			Expect(tbl.Insert(testutil.Records(-5, -1, 0, 2)...)).To(Succeed())
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 2, col.exec)).To(Succeed())
			Expect(col.chunks).To(Equal([][]entity.Key{{-5, -1}, {0, 2}}))
		})
		It("Should only deliver records matching the base query", func() {
			q := query.New()
			query.SetFilter(q, func(r testutil.Record) bool { return r.ID%2 == 0 })
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, q, 2, col.exec)).To(Succeed())
			Expect(col.chunks).To(Equal([][]entity.Key{{2, 4}, {10}}))
		})
		It("Should stop at the largest key matching the base query", func() {
			q := query.New()
			query.SetFilter(q, func(r testutil.Record) bool { return r.ID < 5 })
			c, err := chunker.New[testutil.Record](tbl, q, 3, col.exec)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Exec(ctx)).To(Succeed())
			Expect(col.chunks).To(Equal([][]entity.Key{{1, 2, 3}, {4}}))
			Expect(c.State().Max).To(Equal(entity.Key(4)))
		})
		It("Should panic on a filter written for another record type", func() {
			q := query.New()
			query.SetFilter(q, func(r *testutil.Record) bool { return r.ID%2 == 0 })
			Expect(func() {
				_ = chunker.Chunk[testutil.Record](ctx, tbl, q, 3, col.exec)
			}).To(Panic())
			Expect(col.chunks).To(BeEmpty())
		})
		It("Should ignore the order of the base query", func() {
			q := query.New()
			query.SetOrder(q, query.Descending)
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, q, 3, col.exec)).To(Succeed())
			Expect(col.chunks).To(Equal([][]entity.Key{{1, 2, 3}, {4, 5, 7}, {10}}))
		})
		It("Should not modify the base query", func() {
			q := query.New()
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, q, 3, col.exec)).To(Succeed())
			_, ok := query.KeyAfter(q)
			Expect(ok).To(BeFalse())
			_, ok = query.Limit(q)
			Expect(ok).To(BeFalse())
		})
		It("Should start over when executed again", func() {
			c, err := chunker.New[testutil.Record](tbl, query.New(), 3, col.exec)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Exec(ctx)).To(Succeed())
			Expect(c.Exec(ctx)).To(Succeed())
			Expect(col.chunks).To(Equal([][]entity.Key{{1, 2, 3}, {4, 5, 7}, {10}, {1, 2, 3}, {4, 5, 7}, {10}}))
			Expect(c.State().Chunks).To(Equal(3))
		})
	})
	Describe("Empty dataset", func() {
		It("Should never invoke the callback", func() {
			tbl = memsource.New[testutil.Record](testutil.Schema)
			c, err := chunker.New[testutil.Record](tbl, query.New(), 3, col.exec)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Exec(ctx)).To(Succeed())
			Expect(col.chunks).To(BeEmpty())
			Expect(c.State().Empty).To(BeTrue())
			Expect(tbl.Queries()).To(Equal(2))
		})
		It("Should never invoke the callback when nothing matches the base query", func() {
			q := query.New()
			query.SetFilter(q, func(r testutil.Record) bool { return r.ID > 100 })
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, q, 3, col.exec)).To(Succeed())
			Expect(col.chunks).To(BeEmpty())
		})
	})
	Describe("Preconditions", func() {
		It("Should refuse an entity without an auto-incrementing key before querying", func() {
			schema := testutil.Schema
			schema.Incrementing = false
			tbl = memsource.New[testutil.Record](schema)
			Expect(tbl.Insert(testutil.Records(1, 2)...)).To(Succeed())
			_, err := chunker.New[testutil.Record](tbl, query.New(), 3, col.exec)
			Expect(errors.Is(err, chunker.ErrPrecondition)).To(BeTrue())
			Expect(errors.Is(err, entity.ErrNotIncrementing)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("lacks an auto-incrementing primary key"))
			Expect(tbl.Queries()).To(BeZero())
		})
		It("Should refuse a chunk size below one", func() {
			_, err := chunker.New[testutil.Record](tbl, query.New(), 0, col.exec)
			Expect(errors.Is(err, chunker.ErrPrecondition)).To(BeTrue())
			_, err = chunker.New[testutil.Record](tbl, query.New(), -3, col.exec)
			Expect(errors.Is(err, chunker.ErrPrecondition)).To(BeTrue())
			Expect(tbl.Queries()).To(BeZero())
		})
		It("Should refuse a nil callback", func() {
			err := chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, nil)
			Expect(errors.Is(err, chunker.ErrPrecondition)).To(BeTrue())
			Expect(tbl.Queries()).To(BeZero())
		})
		It("Should refuse a nil source", func() {
			_, err := chunker.New[testutil.Record](nil, query.New(), 3, col.exec)
			Expect(errors.Is(err, chunker.ErrPrecondition)).To(BeTrue())
		})
	})
	Describe("Modifications during iteration", func() {
		It("Should not visit records inserted past the snapshot boundary", func() {
			next := entity.Key(100)
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, func(ctx context.Context, chunk []testutil.Record) error {
				Expect(tbl.Insert(testutil.Records(next)...)).To(Succeed())
				next++
				return col.exec(ctx, chunk)
			})).To(Succeed())
			Expect(col.keys()).To(Equal([]entity.Key{1, 2, 3, 4, 5, 7, 10}))
			Expect(tbl.Len()).To(Equal(10))
		})
		It("Should visit every record when the callback deletes each chunk", func() {
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, func(ctx context.Context, chunk []testutil.Record) error {
				tbl.Delete(entity.Keys(chunk)...)
				return col.exec(ctx, chunk)
			})).To(Succeed())
			Expect(col.keys()).To(Equal([]entity.Key{1, 2, 3, 4, 5, 7, 10}))
			Expect(tbl.Len()).To(BeZero())
		})
		It("Should stop when the callback deletes every record", func() {
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, func(ctx context.Context, chunk []testutil.Record) error {
				tbl.Delete(tbl.Keys()...)
				return col.exec(ctx, chunk)
			})).To(Succeed())
			Expect(col.chunks).To(Equal([][]entity.Key{{1, 2, 3}}))
		})
		It("Should visit every record exactly once when the callback moves records past the boundary", func() {
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, func(ctx context.Context, chunk []testutil.Record) error {
				for _, r := range chunk {
					moved := r
					moved.ID += 1000
					Expect(tbl.Put(r.ID, moved)).To(BeTrue())
				}
				return col.exec(ctx, chunk)
			})).To(Succeed())
			Expect(col.keys()).To(Equal([]entity.Key{1, 2, 3, 4, 5, 7, 10}))
			Expect(tbl.Keys()).To(Equal([]entity.Key{1001, 1002, 1003, 1004, 1005, 1007, 1010}))
		})
		It("Should visit every record exactly once when the callback moves records below the watermark", func() {
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, func(ctx context.Context, chunk []testutil.Record) error {
				for _, r := range chunk {
					moved := r
					moved.ID = -r.ID
					Expect(tbl.Put(r.ID, moved)).To(BeTrue())
				}
				return col.exec(ctx, chunk)
			})).To(Succeed())
			Expect(col.keys()).To(Equal([]entity.Key{1, 2, 3, 4, 5, 7, 10}))
		})
		It("Should take the watermark from the chunk before the callback runs", func() {
			c, err := chunker.New[testutil.Record](tbl, query.New(), 3, func(ctx context.Context, chunk []testutil.Record) error {
				chunk[len(chunk)-1].ID = 0
				return col.exec(ctx, chunk)
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Exec(ctx)).To(Succeed())
			Expect(col.chunks).To(HaveLen(3))
			Expect(c.State().Watermark).To(Equal(entity.Key(10)))
		})
	})
	Describe("Query logging", func() {
		It("Should suspend logging while iterating and restore it afterwards", func() {
			var logging []bool
			Expect(chunker.Chunk[testutil.Record](
				ctx,
				tbl,
				query.New(),
				3,
				func(ctx context.Context, chunk []testutil.Record) error {
					logging = append(logging, qlg.Logging())
					return col.exec(ctx, chunk)
				},
				chunker.WithQueryLog(qlg),
			)).To(Succeed())
			Expect(logging).To(Equal([]bool{false, false, false}))
			Expect(qlg.Logging()).To(BeTrue())
			Expect(qlg.Entries()).To(HaveLen(2))
		})
		It("Should resolve the log of the entity's connection", func() {
			reg := querylog.NewRegistry(querylog.Enabled())
			var logging bool
			Expect(chunker.Chunk[testutil.Record](
				ctx,
				tbl,
				query.New(),
				3,
				func(ctx context.Context, chunk []testutil.Record) error {
					logging = logging || reg.Connection(testutil.Schema.Connection).Logging()
					return nil
				},
				chunker.WithQueryLogs(reg),
			)).To(Succeed())
			Expect(logging).To(BeFalse())
			Expect(reg.Connection(testutil.Schema.Connection).Logging()).To(BeTrue())
		})
		It("Should leave a disabled log disabled", func() {
			disabled := querylog.New("default")
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, col.exec, chunker.WithQueryLog(disabled))).To(Succeed())
			Expect(disabled.Logging()).To(BeFalse())
		})
		It("Should restore logging when the callback fails", func() {
			err := chunker.Chunk[testutil.Record](
				ctx,
				tbl,
				query.New(),
				3,
				func(context.Context, []testutil.Record) error { return errors.New("boom") },
				chunker.WithQueryLog(qlg),
			)
			Expect(err).To(HaveOccurred())
			Expect(qlg.Logging()).To(BeTrue())
		})
		It("Should restore logging when the callback panics", func() {
			Expect(func() {
				_ = chunker.Chunk[testutil.Record](
					ctx,
					tbl,
					query.New(),
					3,
					func(context.Context, []testutil.Record) error { panic("boom") },
					chunker.WithQueryLog(qlg),
				)
			}).To(Panic())
			Expect(qlg.Logging()).To(BeTrue())
		})
	})
	Describe("Errors", func() {
		It("Should mark callback errors without altering them", func() {
			errBoom := errors.New("boom")
			err := chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, func(context.Context, []testutil.Record) error {
				return errBoom
			})
			Expect(errors.Is(err, chunker.ErrCallback)).To(BeTrue())
			Expect(errors.Is(err, errBoom)).To(BeTrue())
			Expect(errors.Is(err, chunker.ErrSourceQuery)).To(BeFalse())
			Expect(err.Error()).To(Equal("boom"))
		})
		It("Should abandon the iteration after a callback error", func() {
			calls := 0
			err := chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, func(context.Context, []testutil.Record) error {
				calls++
				return errors.New("boom")
			})
			Expect(err).To(HaveOccurred())
			Expect(calls).To(Equal(1))
		})
		It("Should mark source errors while fetching a chunk", func() {
			var (
				errFetch = errors.New("connection reset")
				queries  = 0
			)
			tbl = memsource.New[testutil.Record](testutil.Schema, memsource.WithFailure(func() error {
				queries++
				if queries > 2 {
					return errFetch
				}
				return nil
			}))
			Expect(tbl.Insert(testutil.Records(1, 2, 3)...)).To(Succeed())
			err := chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, col.exec, chunker.WithQueryLog(qlg))
			Expect(errors.Is(err, chunker.ErrSourceQuery)).To(BeTrue())
			Expect(errors.Is(err, errFetch)).To(BeTrue())
			Expect(err.Error()).To(Equal("connection reset"))
			Expect(col.chunks).To(BeEmpty())
			Expect(qlg.Logging()).To(BeTrue())
		})
		It("Should mark source errors while computing bounds", func() {
			errBounds := errors.New("no such table")
			tbl = memsource.New[testutil.Record](testutil.Schema, memsource.WithFailure(func() error { return errBounds }))
			err := chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, col.exec)
			Expect(errors.Is(err, chunker.ErrSourceQuery)).To(BeTrue())
			Expect(errors.Is(err, errBounds)).To(BeTrue())
		})
		It("Should fail when the source doesn't advance past the watermark", func() {
			err := chunker.Chunk[testutil.Record](ctx, stuckSource{Table: tbl}, query.New(), 3, col.exec)
			Expect(errors.Is(err, chunker.ErrSourceQuery)).To(BeTrue())
			Expect(col.chunks).To(Equal([][]entity.Key{{1, 2, 3}}))
		})
	})
	Describe("Cancellation", func() {
		It("Should stop between chunks when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			err := chunker.Chunk[testutil.Record](cctx, tbl, query.New(), 3, func(ctx context.Context, chunk []testutil.Record) error {
				cancel()
				return col.exec(ctx, chunk)
			}, chunker.WithQueryLog(qlg))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(col.chunks).To(HaveLen(1))
			Expect(qlg.Logging()).To(BeTrue())
		})
	})
	Describe("Checkpoints", func() {
		var (
			kve   kv.Engine
			store *checkpoint.Store
		)
		BeforeEach(func() {
			var err error
			kve, err = kv.Open("", kv.MemBacked())
			Expect(err).ToNot(HaveOccurred())
			store = checkpoint.New(kve)
		})
		AfterEach(func() {
			Expect(kve.Close()).To(Succeed())
		})
		It("Should resume after the last chunk processed successfully", func() {
			calls := 0
			err := chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, func(ctx context.Context, chunk []testutil.Record) error {
				calls++
				if calls == 2 {
					return errors.New("boom")
				}
				return col.exec(ctx, chunk)
			}, chunker.WithCheckpoint(store, "records"))
			Expect(errors.Is(err, chunker.ErrCallback)).To(BeTrue())
			wm, ok, err := store.Load("records")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(wm).To(Equal(entity.Key(3)))

			resumed := &collector{}
			Expect(chunker.Chunk[testutil.Record](
				ctx,
				tbl,
				query.New(),
				3,
				resumed.exec,
				chunker.WithCheckpoint(store, "records"),
			)).To(Succeed())
			Expect(resumed.chunks).To(Equal([][]entity.Key{{4, 5, 7}, {10}}))
			_, ok, err = store.Load("records")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
		It("Should clear the checkpoint when the remaining records are gone", func() {
			calls := 0
			err := chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 2, func(_ context.Context, chunk []testutil.Record) error {
				calls++
				if calls == 2 {
					tbl.Delete(tbl.Keys()...)
					return errors.New("boom")
				}
				tbl.Delete(entity.Keys(chunk)...)
				return nil
			}, chunker.WithCheckpoint(store, "records"))
			Expect(errors.Is(err, chunker.ErrCallback)).To(BeTrue())
			wm, ok, err := store.Load("records")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(wm).To(Equal(entity.Key(2)))
			Expect(tbl.Len()).To(BeZero())
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 2, col.exec, chunker.WithCheckpoint(store, "records"))).To(Succeed())
			Expect(col.chunks).To(BeEmpty())
			_, ok, err = store.Load("records")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
		It("Should log the resume with the fields of the run", func() {
			Expect(store.Save("records", 3)).To(Succeed())
			core, logs := observer.New(zap.DebugLevel)
			Expect(chunker.Chunk[testutil.Record](
				ctx,
				tbl,
				query.New(),
				3,
				col.exec,
				chunker.WithCheckpoint(store, "records"),
				chunker.WithLogger(zap.New(core)),
			)).To(Succeed())
			Expect(col.chunks).To(Equal([][]entity.Key{{4, 5, 7}, {10}}))
			entries := logs.FilterMessage("resuming from checkpoint").All()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].ContextMap()).To(HaveKey("run"))
			Expect(entries[0].ContextMap()).To(HaveKeyWithValue("entity", "records"))
			Expect(entries[0].ContextMap()).To(HaveKeyWithValue("key", "id"))
		})
		It("Should refuse to run while another iteration holds the checkpoint", func() {
			release, err := store.Lock("records")
			Expect(err).ToNot(HaveOccurred())
			defer release()
			err = chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, col.exec, chunker.WithCheckpoint(store, "records"))
			Expect(errors.Is(err, checkpoint.ErrLocked)).To(BeTrue())
			Expect(tbl.Queries()).To(BeZero())
		})
	})
	Describe("Instrumentation", func() {
		It("Should log every chunk", func() {
			core, logs := observer.New(zap.DebugLevel)
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, col.exec, chunker.WithLogger(zap.New(core)))).To(Succeed())
			Expect(logs.FilterMessage("processing chunk").Len()).To(Equal(3))
			Expect(logs.FilterMessage("iteration complete").Len()).To(Equal(1))
		})
		It("Should record metrics in the experiment", func() {
			exp := alamos.New("test")
			Expect(chunker.Chunk[testutil.Record](ctx, tbl, query.New(), 3, col.exec, chunker.WithExperiment(exp))).To(Succeed())
			sub, ok := exp.Report()["chunker"].(alamos.Report)
			Expect(ok).To(BeTrue())
			Expect(sub).To(HaveKey("chunkSize"))
			Expect(sub).To(HaveKey("fetchDur"))
			Expect(sub).To(HaveKey("callbackDur"))
		})
	})
	Describe("Performance", func() {
		It("Should chunk through a large table", func() {
			large := memsource.New[testutil.Record](testutil.Schema)
			Expect(large.Insert(testutil.Records(testutil.Range(0, 10000)...)...)).To(Succeed())
			testutil.RunDurationExp("chunk 10000 records", 5, func() {
				n := 0
				Expect(chunker.Chunk[testutil.Record](ctx, large, query.New(), 500, func(_ context.Context, chunk []testutil.Record) error {
					n += len(chunk)
					return nil
				})).To(Succeed())
				Expect(n).To(Equal(10000))
			})
		})
	})
})

package chunker

import (
	"github.com/arya-analytics/chunker/entity"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Checkpointer persists the watermark of an iteration between executions. *checkpoint.Store implements it.
type Checkpointer interface {
	Lock(name string) (release func(), err error)
	Load(name string) (entity.Key, bool, error)
	Save(name string, watermark entity.Key) error
	Clear(name string) error
}

// claim locks the checkpoint so no other iteration advances it concurrently.
func (c *Chunker[E]) claim() (release func(), err error) {
	if c.opts.checkpoint.store == nil {
		return func() {}, nil
	}
	return c.opts.checkpoint.store.Lock(c.opts.checkpoint.name)
}

// resume starts the iteration after the saved watermark, if there is one.
func (c *Chunker[E]) resume(logger *zap.Logger) error {
	if c.opts.checkpoint.store == nil {
		return nil
	}
	wm, ok, err := c.opts.checkpoint.store.Load(c.opts.checkpoint.name)
	if err != nil {
		return errors.Wrapf(err, "[chunker] - failed to load checkpoint %s", c.opts.checkpoint.name)
	}
	if ok {
		c.state.Watermark, c.state.Started = wm, true
		logger.Debug(
			"resuming from checkpoint",
			zap.String("checkpoint", c.opts.checkpoint.name),
			zap.Stringer("watermark", wm),
		)
	}
	return nil
}

// save persists the watermark of the last chunk the callback processed successfully.
func (c *Chunker[E]) save() error {
	if c.opts.checkpoint.store == nil {
		return nil
	}
	return errors.Wrapf(
		c.opts.checkpoint.store.Save(c.opts.checkpoint.name, c.state.Watermark),
		"[chunker] - failed to save checkpoint %s",
		c.opts.checkpoint.name,
	)
}

// clear discards the checkpoint of a completed iteration.
func (c *Chunker[E]) clear() error {
	if c.opts.checkpoint.store == nil {
		return nil
	}
	return errors.Wrapf(
		c.opts.checkpoint.store.Clear(c.opts.checkpoint.name),
		"[chunker] - failed to clear checkpoint %s",
		c.opts.checkpoint.name,
	)
}

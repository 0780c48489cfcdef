package chunker

import (
	"github.com/arya-analytics/chunker/alamos"
	"github.com/arya-analytics/chunker/querylog"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	logger     *zap.Logger
	exp        alamos.Experiment
	queryLogs  *querylog.Registry
	queryLog   querylog.Controller
	checkpoint struct {
		store Checkpointer
		name  string
	}
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaultOptions(o)
	return o
}

func mergeDefaultOptions(o *options) {
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
}

// controller resolves the query log to suspend for the given connection. Returns nil if query logging isn't
// configured.
func (o *options) controller(connection string) querylog.Controller {
	if o.queryLog != nil {
		return o.queryLog
	}
	if o.queryLogs != nil {
		return o.queryLogs.Connection(connection)
	}
	return nil
}

// WithLogger sets the logger the Chunker writes its progress to.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithExperiment records the Chunker's metrics in a "chunker" sub-experiment of exp.
func WithExperiment(exp alamos.Experiment) Option {
	return func(o *options) {
		o.exp = exp
	}
}

// WithQueryLogs suspends query logging on the connection named by the entity schema while the Chunker runs.
func WithQueryLogs(reg *querylog.Registry) Option {
	return func(o *options) {
		o.queryLogs = reg
	}
}

// WithQueryLog suspends query logging on c while the Chunker runs. Takes precedence over WithQueryLogs.
func WithQueryLog(c querylog.Controller) Option {
	return func(o *options) {
		o.queryLog = c
	}
}

// WithCheckpoint persists the watermark under name after every chunk the callback processes successfully, and
// resumes from it on the next execution. The checkpoint is cleared once the iteration completes.
func WithCheckpoint(store Checkpointer, name string) Option {
	return func(o *options) {
		o.checkpoint.store = store
		o.checkpoint.name = name
	}
}

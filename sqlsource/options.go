package sqlsource

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/arya-analytics/chunker/querylog"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	placeholder sq.PlaceholderFormat
	logger      *zap.Logger
	recorder    querylog.Recorder
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaults(o)
	return o
}

func mergeDefaults(o *options) {
	if o.placeholder == nil {
		o.placeholder = sq.Question
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.recorder == nil {
		o.recorder = querylog.Nop
	}
}

// WithPlaceholder sets the bind parameter format of the driver (e.g. sq.Dollar for postgres). Defaults to
// sq.Question.
func WithPlaceholder(p sq.PlaceholderFormat) Option {
	return func(o *options) {
		o.placeholder = p
	}
}

// WithLogger sets the logger the table reports to.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithQueryLog records every statement the table executes into r.
func WithQueryLog(r querylog.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

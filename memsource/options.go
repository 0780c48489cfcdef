package memsource

import (
	"github.com/arya-analytics/chunker/querylog"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	logger   *zap.Logger
	recorder querylog.Recorder
	fail     func() error
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
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.recorder == nil {
		o.recorder = querylog.Nop
	}
}

// WithLogger sets the logger the table reports to.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithQueryLog records every query the table executes into r.
func WithQueryLog(r querylog.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithFailure makes every query call f first and fail with its error if it returns one. Used to simulate a
// failing source.
func WithFailure(f func() error) Option {
	return func(o *options) {
		o.fail = f
	}
}

package kv

import (
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	dirname   string
	memBacked bool
	fs        vfs.FS
	logger    *zap.Logger
}

func newOptions(dirname string, opts ...Option) *options {
	o := &options{dirname: dirname}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaultOptions(o)
	return o
}

func mergeDefaultOptions(o *options) {
	if o.fs == nil {
		o.fs = vfs.Default
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
}

// MemBacked keeps the Engine entirely in memory.
func MemBacked() Option {
	return func(o *options) {
		o.dirname = ""
		o.memBacked = true
		o.fs = vfs.NewMem()
	}
}

// WithLogger sets the logger the Engine reports to.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

package kvsource

import (
	"github.com/arya-analytics/chunker/entity"
	"github.com/arya-analytics/chunker/kv"
	"github.com/arya-analytics/chunker/querylog"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	prefix   kv.Prefix
	logger   *zap.Logger
	recorder querylog.Recorder
}

func newOptions(schema entity.Schema, opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaults(schema, o)
	return o
}

func mergeDefaults(schema entity.Schema, o *options) {
	if o.prefix == nil {
		o.prefix = kv.Prefix(schema.Name + "/")
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.recorder == nil {
		o.recorder = querylog.Nop
	}
}

// WithPrefix stores the table's records under p.
func WithPrefix(p kv.Prefix) Option {
	return func(o *options) {
		o.prefix = p
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

package querylog

import "go.uber.org/zap"

type Option func(*options)

type options struct {
	enabled bool
	logger  *zap.Logger
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
}

// Enabled starts the log with logging turned on. Logs start disabled by default.
func Enabled() Option {
	return func(o *options) {
		o.enabled = true
	}
}

// WithLogger mirrors recorded statements to the given logger at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Package alamos is a small in-process metrics library. Metrics are registered in an Experiment, which can be
// nested into sub-experiments and rendered as a Report. Passing a nil Experiment anywhere yields no-op metrics,
// so instrumented code never needs to check whether metrics are enabled.
package alamos

import "sync"

// Level is the verbosity of a metric. An Experiment only records metrics at or above its own Level.
type Level uint8

const (
	// Debug metrics are fine-grained and usually only recorded while investigating performance.
	Debug Level = iota
	// Production metrics are always recorded.
	Production
)

// Experiment is a named collection of metrics and sub-experiments.
type Experiment interface {
	// Key returns the key of the experiment.
	Key() string
	// Sub returns the sub-experiment with the given key, creating it if it doesn't exist.
	Sub(key string) Experiment
	// Report returns a snapshot of the experiment's metrics and sub-experiments.
	Report() Report
	addMetric(m baseMetric)
	records(level Level) bool
}

type experiment struct {
	key      string
	level    Level
	mu       sync.Mutex
	children map[string]Experiment
	metrics  map[string]baseMetric
}

// New creates a new Experiment that records metrics at or above the given level. Defaults to Debug.
func New(key string, level ...Level) Experiment {
	e := &experiment{
		key:      key,
		children: make(map[string]Experiment),
		metrics:  make(map[string]baseMetric),
	}
	if len(level) > 0 {
		e.level = level[0]
	}
	return e
}

// Sub returns a sub-experiment of exp with the given key. Returns nil if exp is nil.
func Sub(exp Experiment, key string) Experiment {
	if exp == nil {
		return nil
	}
	return exp.Sub(key)
}

func (e *experiment) Key() string { return e.key }

func (e *experiment) Sub(key string) Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.children[key]; ok {
		return c
	}
	c := New(key, e.level)
	e.children[key] = c
	return c
}

func (e *experiment) addMetric(m baseMetric) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics[m.key()] = m
}

func (e *experiment) records(level Level) bool { return level >= e.level }

func (e *experiment) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := make(Report, len(e.metrics)+len(e.children))
	for k, m := range e.metrics {
		r[k] = m.report()
	}
	for k, c := range e.children {
		r[k] = c.Report()
	}
	return r
}

// Report is a snapshot of an Experiment. Values are either metric reports or nested Reports.
type Report map[string]interface{}

func enabled(exp Experiment, level Level) bool { return exp != nil && exp.records(level) }

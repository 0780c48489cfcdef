package alamos

import "time"

// |||||| INTERFACE ||||||

// Duration is a Metric that records time.Duration values, typically through a Stopwatch.
type Duration interface {
	Metric[time.Duration]
	// Stopwatch returns a new Stopwatch that records into the Duration when stopped.
	Stopwatch() Stopwatch
}

// Stopwatch times a single interval.
type Stopwatch interface {
	Start()
	Stop() time.Duration
	Elapsed() time.Duration
}

// |||||| BASE ||||||

type duration struct {
	Metric[time.Duration]
}

// NewSeriesDuration creates a Duration that keeps every interval recorded.
func NewSeriesDuration(exp Experiment, level Level, key string) Duration {
	return duration{Metric: NewSeries[time.Duration](exp, level, key)}
}

// NewGaugeDuration creates a Duration that keeps the last interval recorded.
func NewGaugeDuration(exp Experiment, level Level, key string) Duration {
	return duration{Metric: NewGauge[time.Duration](exp, level, key)}
}

func (d duration) Stopwatch() Stopwatch { return &stopwatch{metric: d} }

// |||||| STOPWATCH ||||||

type stopwatch struct {
	start  time.Time
	metric Metric[time.Duration]
}

func (s *stopwatch) Start() {
	if !s.start.IsZero() {
		panic("[alamos] - stopwatch already started. please call Stop() first")
	}
	s.start = time.Now()
}

func (s *stopwatch) Elapsed() time.Duration {
	if s.start.IsZero() {
		return 0
	}
	return time.Since(s.start)
}

func (s *stopwatch) Stop() time.Duration {
	if s.start.IsZero() {
		panic("[alamos] - stopwatch not started. please call Start() first")
	}
	t := time.Since(s.start)
	s.start = time.Time{}
	s.metric.Record(t)
	return t
}

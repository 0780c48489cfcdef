package alamos

import "sync"

// Metric records values of type T.
type Metric[T any] interface {
	// Record records a value.
	Record(T)
	// Values returns the recorded values.
	Values() []T
	// Count returns the number of values recorded.
	Count() int
}

type baseMetric interface {
	key() string
	report() interface{}
}

type entry struct {
	k string
}

func (e entry) key() string { return e.k }

// |||||| GAUGE ||||||

type gauge[T any] struct {
	entry
	mu    sync.Mutex
	count int
	value T
}

// NewGauge creates a Metric that keeps the last value recorded. Returns a no-op Metric if exp is nil or doesn't
// record the given level.
func NewGauge[T any](exp Experiment, level Level, key string) Metric[T] {
	if !enabled(exp, level) {
		return empty[T]{}
	}
	m := &gauge[T]{entry: entry{k: key}}
	exp.addMetric(m)
	return m
}

func (g *gauge[T]) Record(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
	g.value = v
}

func (g *gauge[T]) Values() []T {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count == 0 {
		return nil
	}
	return []T{g.value}
}

func (g *gauge[T]) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

func (g *gauge[T]) report() interface{} {
	return map[string]interface{}{"value": g.Values(), "count": g.Count()}
}

// |||||| SERIES ||||||

type series[T any] struct {
	entry
	mu     sync.Mutex
	values []T
}

// NewSeries creates a Metric that keeps every value recorded. Returns a no-op Metric if exp is nil or doesn't
// record the given level.
func NewSeries[T any](exp Experiment, level Level, key string) Metric[T] {
	if !enabled(exp, level) {
		return empty[T]{}
	}
	m := &series[T]{entry: entry{k: key}}
	exp.addMetric(m)
	return m
}

func (s *series[T]) Record(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, v)
}

func (s *series[T]) Values() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.values...)
}

func (s *series[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func (s *series[T]) report() interface{} {
	return map[string]interface{}{"values": s.Values(), "count": s.Count()}
}

// |||||| EMPTY ||||||

type empty[T any] struct{}

func (empty[T]) Record(T) {}

func (empty[T]) Values() []T { return nil }

func (empty[T]) Count() int { return 0 }

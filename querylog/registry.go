package querylog

import "sync"

// Registry resolves connection names to their query logs, opening logs on first use. The empty name is the
// default connection.
type Registry struct {
	opts  []Option
	mu    sync.Mutex
	conns map[string]*Log
}

// NewRegistry returns an empty Registry. opts are applied to every Log the Registry opens.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{opts: opts, conns: make(map[string]*Log)}
}

// Connection returns the query log for the named connection.
func (r *Registry) Connection(name string) *Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.conns[name]
	if !ok {
		l = New(name, r.opts...)
		r.conns[name] = l
	}
	return l
}

// Names returns the names of the connections opened so far.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.conns))
	for n := range r.conns {
		names = append(names, n)
	}
	return names
}

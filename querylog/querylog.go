// Package querylog keeps an in-memory log of the statements executed against named connections. Logging can be
// suspended for the duration of a bulk operation so the log doesn't grow with every statement it issues.
package querylog

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is a single statement recorded in a Log.
type Entry struct {
	// Statement is a textual representation of what was executed.
	Statement string
	// Args are the arguments bound to the statement.
	Args []interface{}
	// Duration is how long the statement took to execute.
	Duration time.Duration
	// At is when the statement was recorded.
	At time.Time
}

// Controller toggles query logging on a connection.
type Controller interface {
	// Logging returns true if statements are currently being recorded.
	Logging() bool
	// DisableLogging stops recording statements.
	DisableLogging()
	// EnableLogging resumes recording statements.
	EnableLogging()
}

// Recorder records executed statements.
type Recorder interface {
	Record(stmt string, args []interface{}, d time.Duration)
}

// Nop is a Recorder that discards everything.
var Nop Recorder = nopRecorder{}

type nopRecorder struct{}

func (nopRecorder) Record(string, []interface{}, time.Duration) {}

// Log is the query log of a single connection. Log is goroutine safe.
type Log struct {
	name    string
	logger  *zap.Logger
	mu      sync.Mutex
	enabled bool
	entries []Entry
}

// New opens a query log for the connection with the given name.
func New(name string, opts ...Option) *Log {
	o := newOptions(opts...)
	return &Log{
		name:    name,
		enabled: o.enabled,
		logger:  o.logger.With(zap.String("connection", name)),
	}
}

// Name returns the name of the connection the log belongs to.
func (l *Log) Name() string { return l.name }

// Logging implements Controller.
func (l *Log) Logging() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// DisableLogging implements Controller.
func (l *Log) DisableLogging() {
	l.mu.Lock()
	l.enabled = false
	l.mu.Unlock()
	l.logger.Debug("query log disabled")
}

// EnableLogging implements Controller.
func (l *Log) EnableLogging() {
	l.mu.Lock()
	l.enabled = true
	l.mu.Unlock()
	l.logger.Debug("query log enabled")
}

// Record implements Recorder. Statements recorded while logging is disabled are dropped.
func (l *Log) Record(stmt string, args []interface{}, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}
	l.entries = append(l.entries, Entry{Statement: stmt, Args: args, Duration: d, At: time.Now()})
	l.logger.Debug("query", zap.String("stmt", stmt), zap.Any("args", args), zap.Duration("duration", d))
}

// Entries returns a snapshot of the recorded statements.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Flush returns the recorded statements and clears the log.
func (l *Log) Flush() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries
	l.entries = nil
	return e
}

// Suspend disables logging on c if it is enabled, and returns a function that restores it. The returned function
// is safe to call if logging was never disabled. Callers should defer it so logging is restored on every exit
// path.
func Suspend(c Controller) (restore func()) {
	if c == nil || !c.Logging() {
		return func() {}
	}
	c.DisableLogging()
	return c.EnableLogging
}

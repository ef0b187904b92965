// Package audit collects data-quality warnings emitted by the pipeline
// stages so that they can be surfaced together at the end of a run,
// rather than scrolling past in the middle of progress output.
package audit

import (
	"fmt"
	"io"
	"sync"
)

// Warning is a single data-quality decision made during a run.
type Warning struct {
	Stage   string
	Message string
}

func (w Warning) String() string {
	return w.Stage + ": " + w.Message
}

// Log accumulates warnings. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	warnings []Warning
}

func New() *Log {
	return &Log{}
}

// Warnf records a warning for the given pipeline stage.
func (l *Log) Warnf(stage, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, Warning{Stage: stage, Message: fmt.Sprintf(format, args...)})
}

// Warnings returns a copy of all recorded warnings in order of occurrence.
func (l *Log) Warnings() []Warning {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := make([]Warning, len(l.warnings))
	copy(w, l.warnings)
	return w
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warnings)
}

// Flush writes all recorded warnings to w. The log is not cleared,
// Flush may be called more than once.
func (l *Log) Flush(w io.Writer) {
	for _, warning := range l.Warnings() {
		fmt.Fprintf(w, "WARNING %s\n", warning)
	}
}

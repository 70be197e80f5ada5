// Package common holds timing and runtime statistics shared by the
// pipeline, the CLI and the server.
package common

import (
	"fmt"
	"time"
)

// Timer measures one named span of work.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer starts an unnamed timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer starts a timer labelled name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop records and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the time recorded by Stop.
func (t *Timer) Duration() time.Duration { return t.duration }

// Name returns the label, empty for unnamed timers.
func (t *Timer) Name() string { return t.name }

func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration.Round(time.Microsecond))
	}
	return t.duration.Round(time.Microsecond).String()
}

// Measure runs fn under a named timer.
func Measure(name string, fn func() error) (time.Duration, error) {
	t := NewNamedTimer(name)
	err := fn()
	return t.Stop(), err
}

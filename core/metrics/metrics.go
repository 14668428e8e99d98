// Package metrics provides backend-agnostic instrumentation primitives so
// that the core packages never import a specific metrics library.
package metrics

import "time"

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes:
//
//	defer m.DispatchDuration(kind, msgKind).ObserveDuration()
type Timer interface {
	ObserveDuration()
}

type funcTimer struct {
	start   time.Time
	observe func(seconds float64)
}

func (t funcTimer) ObserveDuration() { t.observe(time.Since(t.start).Seconds()) }

// NewTimer starts a Timer that reports the elapsed seconds to observe.
func NewTimer(observe func(seconds float64)) Timer {
	return funcTimer{start: time.Now(), observe: observe}
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a Timer that records nothing.
func NopTimer() Timer { return nopTimer{} }

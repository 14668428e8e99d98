package runtime

import "github.com/codewandler/pactor/core/metrics"

// Metrics defines the instrumentation hooks of the runtime.
// All methods are thread-safe.
type Metrics interface {
	// Dispatch
	DispatchDuration(actorKind, msgKind string) metrics.Timer
	DispatchCompleted(actorKind, msgKind, outcome string)
	DispatchPanic(actorKind, msgKind string)

	// Log
	MessagesAppended(actorKind string, n int)
	ReplayLag(actorID string, lag uint64)

	// Storage
	CacheLookup(actorKind string, hit bool)
}

type nopMetrics struct{}

func (nopMetrics) DispatchDuration(string, string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) DispatchCompleted(string, string, string)      {}
func (nopMetrics) DispatchPanic(string, string)                  {}

func (nopMetrics) MessagesAppended(string, int) {}
func (nopMetrics) ReplayLag(string, uint64)     {}

func (nopMetrics) CacheLookup(string, bool) {}

// NopMetrics returns a Metrics implementation that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

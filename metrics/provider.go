// Package metrics defines the minimal instrumentation surface used by the
// throttle primitives and two implementations of it: an in-memory provider
// with snapshot accessors (suitable for tests and lightweight apps) and a
// no-op provider used as the default.
package metrics

// Provider constructs instruments used to record metrics. Instruments are
// keyed by name; asking for the same name twice returns the same instrument.
// Implementations must be safe for concurrent use.
type Provider interface {
	Counter(name string) Counter
	UpDownCounter(name string) UpDownCounter
	Histogram(name string) Histogram
}

// Counter records monotonic counts (e.g., tasks executed).
// Methods must be safe for concurrent use.
type Counter interface {
	Add(n int64)
}

// UpDownCounter records values that move up and down (e.g., queue depth).
// Methods must be safe for concurrent use.
type UpDownCounter interface {
	Add(n int64)
}

// Histogram records a distribution of float64 measurements
// (e.g., backoff delays in seconds). Methods must be safe for concurrent use.
type Histogram interface {
	Record(v float64)
}

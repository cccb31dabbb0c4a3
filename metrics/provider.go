// Package metrics defines the instruments troupe runtimes record and two providers:
// NoopProvider (the default) and BasicProvider, an in-memory aggregator for tests and
// small programs. Adapt any other backend by implementing Provider.
package metrics

import "github.com/duke-git/lancet/v2/maputil"

// Provider constructs named instruments. Asking twice for the same name returns
// the same instrument. Implementations must be safe for concurrent use.
type Provider interface {
	Counter(name string, opts ...InstrumentOption) Counter
	UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter
	Histogram(name string, opts ...InstrumentOption) Histogram
}

// Counter records monotonic counts, e.g. messages received.
type Counter interface {
	Add(n int64)
}

// UpDownCounter records a value that moves both ways, e.g. live workers.
type UpDownCounter interface {
	Add(n int64)
}

// Histogram records measurements, e.g. receive durations in seconds.
type Histogram interface {
	Record(v float64)
}

// InstrumentConfig is advisory instrument metadata.
type InstrumentConfig struct {
	Description string
	Unit        string
	// Attributes are static labels of the instrument. Keep cardinality bounded.
	Attributes map[string]string
}

// InstrumentOption mutates InstrumentConfig.
type InstrumentOption func(*InstrumentConfig)

// WithDescription sets the instrument description.
func WithDescription(desc string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Description = desc }
}

// WithUnit sets the instrument unit ("1", "seconds").
func WithUnit(unit string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Unit = unit }
}

// WithAttributes merges static attributes into the instrument. attrs is copied.
func WithAttributes(attrs map[string]string) InstrumentOption {
	return func(c *InstrumentConfig) {
		if len(attrs) == 0 {
			return
		}
		c.Attributes = maputil.Merge(c.Attributes, attrs)
	}
}

func newInstrumentConfig(opts []InstrumentOption) InstrumentConfig {
	var cfg InstrumentConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

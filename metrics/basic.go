package metrics

import (
	"math"
	"sync"

	"go.uber.org/atomic"
)

// BasicProvider keeps every instrument in memory.
// Instruments are created on first use and looked up by name afterwards.
type BasicProvider struct {
	mu         sync.Mutex
	counters   map[string]*BasicCounter
	updowns    map[string]*BasicUpDownCounter
	histograms map[string]*BasicHistogram
	meta       map[string]InstrumentConfig
}

// NewBasicProvider returns an empty BasicProvider.
func NewBasicProvider() *BasicProvider {
	return &BasicProvider{
		counters:   make(map[string]*BasicCounter),
		updowns:    make(map[string]*BasicUpDownCounter),
		histograms: make(map[string]*BasicHistogram),
		meta:       make(map[string]InstrumentConfig),
	}
}

// lookup returns m[name], creating it with create and recording its metadata on first use.
func lookup[I any](p *BasicProvider, m map[string]I, name string, opts []InstrumentOption, create func() I) I {
	p.mu.Lock()
	defer p.mu.Unlock()
	if in, ok := m[name]; ok {
		return in
	}
	in := create()
	m[name] = in
	p.meta[name] = newInstrumentConfig(opts)
	return in
}

func (p *BasicProvider) Counter(name string, opts ...InstrumentOption) Counter {
	return lookup(p, p.counters, name, opts, func() *BasicCounter {
		return &BasicCounter{val: atomic.NewInt64(0)}
	})
}

func (p *BasicProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	return lookup(p, p.updowns, name, opts, func() *BasicUpDownCounter {
		return &BasicUpDownCounter{val: atomic.NewInt64(0)}
	})
}

func (p *BasicProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	return lookup(p, p.histograms, name, opts, func() *BasicHistogram {
		return &BasicHistogram{min: math.Inf(1), max: math.Inf(-1)}
	})
}

// Describe returns the metadata an instrument was created with.
func (p *BasicProvider) Describe(name string) (InstrumentConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg, ok := p.meta[name]
	return cfg, ok
}

// CounterValue returns the value of a counter, or 0 if it was never created.
func (p *BasicProvider) CounterValue(name string) int64 {
	p.mu.Lock()
	c, ok := p.counters[name]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	return c.Value()
}

// UpDownValue returns the value of an up/down counter, or 0 if it was never created.
func (p *BasicProvider) UpDownValue(name string) int64 {
	p.mu.Lock()
	u, ok := p.updowns[name]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	return u.Value()
}

// HistogramStats returns the stats of a histogram. The boolean is false if it was never created.
func (p *BasicProvider) HistogramStats(name string) (HistogramStats, bool) {
	p.mu.Lock()
	h, ok := p.histograms[name]
	p.mu.Unlock()
	if !ok {
		return HistogramStats{}, false
	}
	return h.Stats(), true
}

// BasicCounter is a monotonic counter.
type BasicCounter struct {
	val *atomic.Int64
}

func (c *BasicCounter) Add(n int64) { c.val.Add(n) }

// Value returns the current count.
func (c *BasicCounter) Value() int64 { return c.val.Load() }

// BasicUpDownCounter is a counter that may go down.
type BasicUpDownCounter struct {
	val *atomic.Int64
}

func (u *BasicUpDownCounter) Add(n int64) { u.val.Add(n) }

// Value returns the current value.
func (u *BasicUpDownCounter) Value() int64 { return u.val.Load() }

// BasicHistogram aggregates count, sum, min and max. It keeps no buckets.
type BasicHistogram struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

func (h *BasicHistogram) Record(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	h.min = math.Min(h.min, v)
	h.max = math.Max(h.max, v)
}

// HistogramStats is a point-in-time copy of a BasicHistogram.
type HistogramStats struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// Mean returns Sum/Count, or 0 for an empty histogram.
func (s HistogramStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Stats returns the current aggregate.
func (h *BasicHistogram) Stats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HistogramStats{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
}
